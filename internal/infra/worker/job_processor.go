package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
	"genstudio-backend/internal/infra/logging"
	"genstudio-backend/internal/infra/metrics"
	"genstudio-backend/internal/usecase"
)

// maxJobAttempts caps automatic re-execution of chat and image jobs. The
// first attempt plus two retries; only infrastructure errors are retried.
const maxJobAttempts = 3

// JobProcessor polls for pending jobs, claims them one at a time and hands
// them to the pool. The claim marks the job running, so a crashed worker
// leaves at most one orphaned running job per replica.
type JobProcessor struct {
	jobs repository.JobRepository
	exec *usecase.Executor
	pool *Pool

	kinds []model.JobKind
	poll  time.Duration
	log   *zerolog.Logger
}

func NewJobProcessor(
	jobs repository.JobRepository,
	exec *usecase.Executor,
	pool *Pool,
	kinds []model.JobKind,
	poll time.Duration,
	log *zerolog.Logger,
) *JobProcessor {
	return &JobProcessor{jobs: jobs, exec: exec, pool: pool, kinds: kinds, poll: poll, log: log}
}

// Run blocks until ctx is cancelled.
func (p *JobProcessor) Run(ctx context.Context) {
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

// drain claims and submits jobs until the backlog is empty or the pool is
// saturated.
func (p *JobProcessor) drain(ctx context.Context) {
	for {
		job, err := p.jobs.ClaimPending(ctx, p.kinds...)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				p.log.Error().Err(err).Msg("claim pending job")
			}
			return
		}
		metrics.IncJobClaimed(string(job.Kind))

		claimed := job
		if err := p.pool.Submit(func(ctx context.Context) error {
			p.process(ctx, claimed)
			return nil
		}); err != nil {
			// Pool is full. Put the job back so another poll picks it up.
			p.requeue(ctx, claimed, "worker queue full")
			return
		}
	}
}

func (p *JobProcessor) process(ctx context.Context, job *model.Job) {
	ctx = logging.WithJobID(logging.WithSessID(ctx, job.SessionID), job.ID)
	ctx = logging.WithTaskRef(ctx, job.TaskRef)
	log := logging.With(ctx, p.log)

	start := time.Now()
	err := p.exec.Execute(ctx, job)
	if err == nil {
		metrics.IncJobFinished(string(job.Kind), string(job.Status))
		metrics.ObserveJobDuration(string(job.Kind), time.Since(start))
		return
	}

	if domain.Retryable(err) && job.Attempts < maxJobAttempts {
		log.Warn().Err(err).Int("attempt", job.Attempts).Msg("job attempt failed, requeueing")
		p.requeue(ctx, job, err.Error())
		return
	}

	log.Error().Err(err).Int("attempt", job.Attempts).Msg("job failed")
	p.fail(ctx, job, err)
	metrics.IncJobFinished(string(job.Kind), string(model.JobStatusFailure))
	metrics.ObserveJobDuration(string(job.Kind), time.Since(start))
}

// requeue moves a running job back to pending so a later claim re-runs it.
func (p *JobProcessor) requeue(ctx context.Context, job *model.Job, detail string) {
	from := job.Status
	job.Status = model.JobStatusPending
	if err := p.jobs.Save(ctx, nil, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("requeue job")
		return
	}
	p.appendTransition(ctx, job, from, model.JobStatusPending, detail)
}

// fail records the terminal failure with the cause verbatim, so the status
// endpoint can surface it.
func (p *JobProcessor) fail(ctx context.Context, job *model.Job, cause error) {
	from := job.Status
	job.Status = model.JobStatusFailure
	job.ErrorMessage = cause.Error()
	if err := p.jobs.Save(ctx, nil, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("record job failure")
		return
	}
	p.appendTransition(ctx, job, from, model.JobStatusFailure, cause.Error())
}

func (p *JobProcessor) appendTransition(ctx context.Context, job *model.Job, from, to model.JobStatus, detail string) {
	err := p.jobs.AppendTransition(ctx, nil, &model.JobTransition{
		JobID:   job.ID,
		Attempt: job.Attempts,
		From:    from,
		To:      to,
		Detail:  detail,
	})
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("append transition")
	}
}
