package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
)

// Session rows are created by the session management layer; the only write
// this side makes is the first-message title.
var _ repository.SessionRepository = (*sessionRepo)(nil)

type sessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *sessionRepo {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	const q = `SELECT id, kind, COALESCE(title, ''), created_at, updated_at FROM sessions WHERE id = $1;`
	var s model.Session
	var kind string
	err := pickRow(ctx, r.pool, tx, q, id).Scan(&s.ID, &kind, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.Kind = model.SessionKind(kind)
	return &s, nil
}

// UpdateTitle only fills an empty title, so a concurrent enqueue cannot
// overwrite an earlier one.
func (r *sessionRepo) UpdateTitle(ctx context.Context, tx repository.Tx, id, title string) error {
	const q = `UPDATE sessions SET title = $2, updated_at = NOW() WHERE id = $1 AND COALESCE(title, '') = '';`
	if _, err := execSQL(ctx, r.pool, tx, q, id, title); err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	return nil
}
