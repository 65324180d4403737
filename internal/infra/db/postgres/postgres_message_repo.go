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

var _ repository.MessageRepository = (*messageRepo)(nil)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) Save(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	citations, err := json.Marshal(msg.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	const q = `
INSERT INTO messages (id, session_id, role, content, citations, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  content = EXCLUDED.content,
  citations = EXCLUDED.citations;`

	_, err = execSQL(ctx, r.pool, tx, q,
		msg.ID, msg.SessionID, msg.Role, msg.Content, citations, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *messageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Message, error) {
	const q = `SELECT id, session_id, role, content, citations, created_at FROM messages WHERE id = $1;`
	return scanMessage(pickRow(ctx, r.pool, tx, q, id))
}

func (r *messageRepo) Recent(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	const q = `
SELECT id, session_id, role, content, citations, created_at
FROM (
  SELECT id, session_id, role, content, citations, created_at
  FROM messages
  WHERE session_id = $1
  ORDER BY created_at DESC
  LIMIT $2
) recent
ORDER BY created_at ASC;`

	rows, err := r.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var citations []byte
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &citations, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &m.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
	}
	return &m, nil
}
