package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

type documentRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewDocumentRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *documentRepo {
	return &documentRepo{pool: pool, tm: tm}
}

const documentColumns = `id, session_id, file_name, COALESCE(original_name, ''),
  status, error_message, created_at, updated_at`

func (r *documentRepo) Save(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UpdatedAt = time.Now()

	const q = `
INSERT INTO documents (id, session_id, file_name, original_name, status, error_message, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  error_message = EXCLUDED.error_message,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		doc.ID, doc.SessionID, doc.FileName, doc.OriginalName, string(doc.Status),
		doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (r *documentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1;`
	return scanDocument(pickRow(ctx, r.pool, tx, q, id))
}

func (r *documentRepo) BySession(ctx context.Context, sessionID string) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE session_id = $1 ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *documentRepo) ClaimPending(ctx context.Context) (*model.Document, error) {
	var doc *model.Document
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		q := `
SELECT ` + documentColumns + `
FROM documents
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		claimed, err := scanDocument(pickRow(ctx, r.pool, tx, q))
		if err != nil {
			return err
		}

		claimed.Status = model.DocumentStatusProcessing
		if err := r.Save(ctx, tx, claimed); err != nil {
			return err
		}

		doc = claimed
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	var status string
	err := row.Scan(
		&d.ID, &d.SessionID, &d.FileName, &d.OriginalName,
		&status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	d.Status = model.DocumentStatus(status)
	return &d, nil
}
