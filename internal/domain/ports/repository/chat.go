package repository

import (
	"context"

	"genstudio-backend/internal/domain/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Session, error)
	// UpdateTitle sets the title on first use; it must not overwrite an
	// existing one.
	UpdateTitle(ctx context.Context, tx Tx, id, title string) error
}

type MessageRepository interface {
	Save(ctx context.Context, tx Tx, msg *model.Message) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Message, error)
	// Recent returns the newest messages of a session, oldest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
}

type ImageRecordRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.ImageRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ImageRecord, error)
}

type DocumentRepository interface {
	Save(ctx context.Context, tx Tx, doc *model.Document) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)
	// BySession returns a session's documents, newest first.
	BySession(ctx context.Context, sessionID string) ([]model.Document, error)
	// ClaimPending fetches the oldest pending document and marks it
	// processing, for the ingestion worker.
	ClaimPending(ctx context.Context) (*model.Document, error)
}
