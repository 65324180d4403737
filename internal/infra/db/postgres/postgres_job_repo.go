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

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, session_id, kind, status, task_ref,
  COALESCE(message_id, ''), COALESCE(image_record_id, ''),
  error_message, attempts, payload, created_at, updated_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (id, session_id, kind, status, task_ref, message_id, image_record_id,
                  error_message, attempts, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  message_id = EXCLUDED.message_id,
  image_record_id = EXCLUDED.image_record_id,
  error_message = EXCLUDED.error_message,
  attempts = EXCLUDED.attempts,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.SessionID, string(job.Kind), string(job.Status), job.TaskRef,
		job.MessageID, job.ImageRecordID, job.ErrorMessage, job.Attempts, job.Payload,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	return scanJob(pickRow(ctx, r.pool, tx, q, id))
}

func (r *jobRepo) FindByTaskRef(ctx context.Context, tx repository.Tx, taskRef string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE task_ref = $1;`
	return scanJob(pickRow(ctx, r.pool, tx, q, taskRef))
}

func (r *jobRepo) ClaimPending(ctx context.Context, kinds ...model.JobKind) (*model.Job, error) {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	var job *model.Job
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		q := `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending' AND kind = ANY($1)
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		claimed, err := scanJob(pickRow(ctx, r.pool, tx, q, kindStrs))
		if err != nil {
			return err
		}

		from := claimed.Status
		claimed.Status = model.JobStatusRunning
		claimed.Attempts++
		if err := r.Save(ctx, tx, claimed); err != nil {
			return err
		}
		if err := r.AppendTransition(ctx, tx, &model.JobTransition{
			JobID:   claimed.ID,
			Attempt: claimed.Attempts,
			From:    from,
			To:      model.JobStatusRunning,
		}); err != nil {
			return err
		}

		job = claimed
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *jobRepo) AppendTransition(ctx context.Context, tx repository.Tx, t *model.JobTransition) error {
	if t.Occurred.IsZero() {
		t.Occurred = time.Now()
	}
	const q = `
INSERT INTO job_transitions (job_id, attempt, from_status, to_status, detail, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6);`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.JobID, t.Attempt, string(t.From), string(t.To), t.Detail, t.Occurred)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (r *jobRepo) Transitions(ctx context.Context, jobID string) ([]model.JobTransition, error) {
	const q = `
SELECT id, job_id, attempt, from_status, to_status, detail, occurred_at
FROM job_transitions
WHERE job_id = $1
ORDER BY id;`
	rows, err := r.pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []model.JobTransition
	for rows.Next() {
		var t model.JobTransition
		var from, to string
		if err := rows.Scan(&t.ID, &t.JobID, &t.Attempt, &from, &to, &t.Detail, &t.Occurred); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		t.From = model.JobStatus(from)
		t.To = model.JobStatus(to)
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var kind, status string
	err := row.Scan(
		&j.ID, &j.SessionID, &kind, &status, &j.TaskRef,
		&j.MessageID, &j.ImageRecordID, &j.ErrorMessage, &j.Attempts, &j.Payload,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Kind = model.JobKind(kind)
	j.Status = model.JobStatus(status)
	return &j, nil
}
