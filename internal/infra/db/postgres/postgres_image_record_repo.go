package postgres

import (
	"context"
	"encoding/json"
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

var _ repository.ImageRecordRepository = (*imageRecordRepo)(nil)

type imageRecordRepo struct {
	pool *pgxpool.Pool
}

func NewImageRecordRepo(pool *pgxpool.Pool) *imageRecordRepo {
	return &imageRecordRepo{pool: pool}
}

func (r *imageRecordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.ImageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal image metadata: %w", err)
	}

	const q = `
INSERT INTO image_records (id, session_id, prompt, image_url, model, seed,
                           mask_url, reference_image_id, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)
ON CONFLICT (id) DO UPDATE SET
  image_url = EXCLUDED.image_url,
  metadata = EXCLUDED.metadata;`

	_, err = execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.SessionID, rec.Prompt, rec.ImageURL, rec.Model, rec.Seed,
		rec.MaskURL, rec.ReferenceImageID, meta, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("save image record: %w", err)
	}
	return nil
}

func (r *imageRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ImageRecord, error) {
	const q = `
SELECT id, session_id, prompt, image_url, model, seed,
       COALESCE(mask_url, ''), COALESCE(reference_image_id, ''), metadata, created_at
FROM image_records WHERE id = $1;`

	var rec model.ImageRecord
	var meta []byte
	err := pickRow(ctx, r.pool, tx, q, id).Scan(
		&rec.ID, &rec.SessionID, &rec.Prompt, &rec.ImageURL, &rec.Model, &rec.Seed,
		&rec.MaskURL, &rec.ReferenceImageID, &meta, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal image metadata: %w", err)
		}
	}
	return &rec, nil
}
