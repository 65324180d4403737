package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrJobAlreadyTerminal = errors.New("job already in a terminal state")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// ValidationError reports malformed or out-of-contract caller input.
// It is surfaced before a job is created and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports missing or unusable process configuration,
// such as an absent vendor credential or an unknown model identifier.
// Jobs failing with it are not retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Reason }

// VendorError carries a non-2xx vendor response. Eligible for automatic retry.
type VendorError struct {
	Vendor     string
	StatusCode int
	Body       string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Vendor, e.StatusCode, e.Body)
}

// UnreachableResourceError reports a caller-supplied URL that a vendor
// requiring genuinely public URLs cannot fetch. Validation-time, not retried.
type UnreachableResourceError struct {
	URL   string
	Label string
}

func (e *UnreachableResourceError) Error() string {
	return fmt.Sprintf("%s must be publicly accessible URLs. Got: %s. Use a public object storage/CDN or presigned URL.", e.Label, e.URL)
}

// Retryable reports whether err is an unexpected or vendor-side failure
// that a re-execution of the whole job body may recover from.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	var ce *ConfigurationError
	var ue *UnreachableResourceError
	if errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &ue) {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) {
		return false
	}
	return true
}
