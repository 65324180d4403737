package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
	"genstudio-backend/internal/domain/ports/retrieval"
	"genstudio-backend/internal/domain/ports/storage"
	"genstudio-backend/internal/infra/logging"
)

const (
	ingestChunkSize    = 1000
	ingestChunkOverlap = 100
)

// IngestUseCase drives the document lifecycle: fetch uploaded bytes, extract
// per-page text, chunk and index it into the retrieval store, and record the
// terminal document status.
type IngestUseCase struct {
	docs    repository.DocumentRepository
	blobs   storage.BlobStore
	extract storage.TextExtractor
	indexer retrieval.Indexer
	log     *zerolog.Logger
}

func NewIngestUseCase(
	docs repository.DocumentRepository,
	blobs storage.BlobStore,
	extract storage.TextExtractor,
	indexer retrieval.Indexer,
	log *zerolog.Logger,
) *IngestUseCase {
	return &IngestUseCase{docs: docs, blobs: blobs, extract: extract, indexer: indexer, log: log}
}

// Process runs the ingestion body for one claimed document. The caller owns
// retries; a retry re-runs the whole body.
func (u *IngestUseCase) Process(ctx context.Context, doc *model.Document) error {
	defer logging.TraceDuration(u.log, "IngestUC.Process")()
	data, err := u.blobs.Fetch(ctx, doc.FileName)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", doc.FileName, err)
	}
	pages, err := u.extract.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	indexed := 0
	for _, page := range pages {
		for _, chunk := range chunkText(page.Text, ingestChunkSize, ingestChunkOverlap) {
			err := u.indexer.Add(ctx, doc.SessionID, chunk, map[string]any{
				"source":      "pdf",
				"document_id": doc.ID,
				"page":        page.Number,
				"filename":    doc.FileName,
			})
			if err != nil {
				return fmt.Errorf("index page %d: %w", page.Number, err)
			}
			indexed++
		}
	}

	if indexed == 0 {
		doc.Status = model.DocumentStatusFailed
		doc.ErrorMessage = "no text extracted"
	} else {
		doc.Status = model.DocumentStatusCompleted
		doc.ErrorMessage = ""
	}
	doc.UpdatedAt = time.Now()
	if err := u.docs.Save(ctx, nil, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	u.log.Info().Str("document_id", doc.ID).Int("chunks", indexed).Str("status", string(doc.Status)).Msg("document ingested")
	return nil
}

// Fail records a terminal ingestion failure after retries are exhausted.
func (u *IngestUseCase) Fail(ctx context.Context, doc *model.Document, cause error) {
	doc.Status = model.DocumentStatusFailed
	doc.ErrorMessage = cause.Error()
	doc.UpdatedAt = time.Now()
	if err := u.docs.Save(ctx, nil, doc); err != nil {
		u.log.Error().Err(err).Str("document_id", doc.ID).Msg("could not record ingestion failure")
	}
}

func chunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
