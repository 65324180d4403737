package storage

import "context"

// BlobStore abstracts the external object-storage service. The ingestion
// worker only ever reads uploaded objects back by key.
type BlobStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Page is one page of extracted document text.
type Page struct {
	Number int
	Text   string
}

// TextExtractor turns raw uploaded bytes into per-page text. PDF parsing
// itself lives behind this port; the orchestrator only consumes pages.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) ([]Page, error)
}
