package repository

import "context"

// CancelStore records best-effort cancellation requests keyed by the
// externally visible task reference. Observing a request does not abort an
// in-flight vendor call; it only stops further state transitions by the
// execution that sees it.
type CancelStore interface {
	RequestCancel(ctx context.Context, taskRef string) error
	Cancelled(ctx context.Context, taskRef string) (bool, error)
}
