package repository

import (
	"context"

	"genstudio-backend/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	FindByTaskRef(ctx context.Context, tx Tx, taskRef string) (*model.Job, error)

	// ClaimPending atomically fetches the oldest pending job of the given
	// kinds and marks it running, so no two workers pick up the same job.
	ClaimPending(ctx context.Context, kinds ...model.JobKind) (*model.Job, error)

	// AppendTransition records one entry of the append-only transition log.
	AppendTransition(ctx context.Context, tx Tx, t *model.JobTransition) error
	Transitions(ctx context.Context, jobID string) ([]model.JobTransition, error)
}
