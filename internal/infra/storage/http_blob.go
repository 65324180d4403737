// Package storage backs the ingestion ports: blob reads go through the
// object-storage service's HTTP endpoint, text extraction is pluggable.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/storage"
)

const maxBlobBytes = 50 << 20

var _ storage.BlobStore = (*HTTPBlobStore)(nil)

// HTTPBlobStore reads uploaded objects back over plain GETs against the
// storage service, which serves them by key.
type HTTPBlobStore struct {
	baseURL string
	http    *http.Client
}

func NewHTTPBlobStore(baseURL string) (*HTTPBlobStore, error) {
	if baseURL == "" {
		return nil, &domain.ConfigurationError{Reason: "storage base url not set"}
	}
	return &HTTPBlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *HTTPBlobStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	url := s.baseURL + "/" + strings.TrimLeft(key, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build blob request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch blob %s: status %d", key, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}
