package storage

import (
	"context"
	"strings"

	"genstudio-backend/internal/domain/ports/storage"
)

var _ storage.TextExtractor = (*PlainTextExtractor)(nil)

// PlainTextExtractor handles documents that arrive as pre-extracted text,
// one page per form feed. The upload pipeline runs PDF extraction before the
// object lands in storage, so by the time ingestion sees it the bytes are
// already text.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor { return &PlainTextExtractor{} }

func (PlainTextExtractor) Extract(_ context.Context, data []byte) ([]storage.Page, error) {
	var pages []storage.Page
	for i, part := range strings.Split(string(data), "\f") {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		pages = append(pages, storage.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}
