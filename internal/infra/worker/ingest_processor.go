package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
	"genstudio-backend/internal/usecase"
)

// Ingestion tolerates more retries than generation jobs; document
// processing is slow anyway and nobody is blocked on the reply.
const maxIngestAttempts = 4

// IngestProcessor drives pending documents through the ingestion use case.
// Retries happen inline inside one claim, with a short backoff, instead of
// round-tripping the document through pending again.
type IngestProcessor struct {
	docs   repository.DocumentRepository
	ingest *usecase.IngestUseCase
	pool   *Pool

	poll    time.Duration
	backoff time.Duration
	log     *zerolog.Logger
}

func NewIngestProcessor(
	docs repository.DocumentRepository,
	ingest *usecase.IngestUseCase,
	pool *Pool,
	poll time.Duration,
	log *zerolog.Logger,
) *IngestProcessor {
	return &IngestProcessor{
		docs:    docs,
		ingest:  ingest,
		pool:    pool,
		poll:    poll,
		backoff: 2 * time.Second,
		log:     log,
	}
}

func (p *IngestProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *IngestProcessor) drain(ctx context.Context) {
	for {
		doc, err := p.docs.ClaimPending(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				p.log.Error().Err(err).Msg("claim pending document")
			}
			return
		}

		claimed := doc
		if err := p.pool.Submit(func(ctx context.Context) error {
			p.process(ctx, claimed)
			return nil
		}); err != nil {
			// Pool is full; release the document for the next poll.
			claimed.Status = model.DocumentStatusPending
			if saveErr := p.docs.Save(ctx, nil, claimed); saveErr != nil {
				p.log.Error().Err(saveErr).Str("document_id", claimed.ID).Msg("release document")
			}
			return
		}
	}
}

func (p *IngestProcessor) process(ctx context.Context, doc *model.Document) {
	var lastErr error
	for attempt := 1; attempt <= maxIngestAttempts; attempt++ {
		lastErr = p.ingest.Process(ctx, doc)
		if lastErr == nil {
			return
		}
		if !domain.Retryable(lastErr) {
			break
		}
		p.log.Warn().Err(lastErr).
			Str("document_id", doc.ID).
			Int("attempt", attempt).
			Msg("ingestion attempt failed")
		select {
		case <-ctx.Done():
			p.ingest.Fail(ctx, doc, ctx.Err())
			return
		case <-time.After(p.backoff):
		}
	}
	p.ingest.Fail(ctx, doc, lastErr)
}
