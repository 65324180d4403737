package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
	"genstudio-backend/internal/domain/ports/vendor"
)

// JobStatusView is the poll response shape consumed by the request layer.
type JobStatusView struct {
	TaskRef      string             `json:"task_ref"`
	JobID        string             `json:"job_id"`
	Status       model.JobStatus    `json:"status"`
	Message      *model.Message     `json:"message,omitempty"`
	ImageRecord  *model.ImageRecord `json:"image_record,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// EnqueueDefaults are the configured model identifiers substituted when a
// request names none. Zero values fall back to built-in defaults.
type EnqueueDefaults struct {
	ChatModel  string
	ImageModel string
}

// JobUseCase creates jobs from validated enqueue requests and serves status
// polls. Validation failures surface immediately; no job row is created.
type JobUseCase struct {
	jobs     repository.JobRepository
	sessions repository.SessionRepository
	messages repository.MessageRepository
	images   repository.ImageRecordRepository
	cancels  repository.CancelStore
	tm       repository.TransactionManager
	registry *vendor.Registry
	defaults EnqueueDefaults
}

func NewJobUseCase(
	jobs repository.JobRepository,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	images repository.ImageRecordRepository,
	cancels repository.CancelStore,
	tm repository.TransactionManager,
	registry *vendor.Registry,
	defaults EnqueueDefaults,
) *JobUseCase {
	if defaults.ChatModel == "" {
		defaults.ChatModel = "google/gemini-2.5-flash"
	}
	if defaults.ImageModel == "" {
		defaults.ImageModel = string(vendor.ModelImagen4)
	}
	return &JobUseCase{
		jobs:     jobs,
		sessions: sessions,
		messages: messages,
		images:   images,
		cancels:  cancels,
		tm:       tm,
		registry: registry,
		defaults: defaults,
	}
}

// EnqueueChat validates a chat request, records the user message and creates
// a pending job in one transaction.
func (u *JobUseCase) EnqueueChat(ctx context.Context, sessionID string, params ChatParams) (*model.Job, string, error) {
	if params.Prompt == "" {
		return nil, "", &domain.ValidationError{Field: "prompt", Reason: "required"}
	}
	if params.Model == "" {
		params.Model = u.defaults.ChatModel
	}
	session, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session.Kind != model.SessionKindChat {
		return nil, "", &domain.ValidationError{Field: "session_id", Reason: "not a chat session"}
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, "", fmt.Errorf("marshal params: %w", err)
	}
	userMsg := &model.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "user",
		Content:   params.Prompt,
		CreatedAt: time.Now(),
	}
	job := newJob(sessionID, model.JobKindChat, payload)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if session.Title == "" {
			if err := u.sessions.UpdateTitle(ctx, tx, sessionID, sessionTitle(params.Prompt)); err != nil {
				return err
			}
		}
		if err := u.messages.Save(ctx, tx, userMsg); err != nil {
			return err
		}
		if err := u.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		return u.jobs.AppendTransition(ctx, tx, &model.JobTransition{
			JobID:    job.ID,
			Attempt:  0,
			To:       model.JobStatusPending,
			Occurred: time.Now(),
		})
	})
	if err != nil {
		return nil, "", err
	}
	return job, userMsg.ID, nil
}

// EnqueueImage validates per-model attachment limits before creating the job.
// The limits mirror what each vendor endpoint can actually accept; routing
// handles the rest at execution time.
func (u *JobUseCase) EnqueueImage(ctx context.Context, sessionID string, params ImageParams) (*model.Job, error) {
	if params.Prompt == "" {
		return nil, &domain.ValidationError{Field: "prompt", Reason: "required"}
	}
	if params.Model == "" {
		params.Model = u.defaults.ImageModel
	}
	// The identifier set is closed; a nominal model outside it would only
	// fail at execution time, so reject it here instead.
	if !u.registry.Known(vendor.ImageModel(params.Model)) {
		return nil, &domain.ValidationError{Field: "model", Reason: "unknown image model: " + params.Model}
	}
	if params.AspectRatio == "" {
		params.AspectRatio = "1:1"
	}

	attachments := make([]string, 0, len(params.ImageURLs))
	for _, url := range params.ImageURLs {
		if url != "" {
			attachments = append(attachments, url)
		}
	}
	params.ImageURLs = attachments
	hasReference := params.ReferenceImageID != "" || params.ReferenceImageURL != ""

	if len(attachments) > 0 {
		switch vendor.ImageModel(params.Model) {
		case vendor.ModelImagen4, vendor.ModelFluxUltra, vendor.ModelGemini3Pro:
			return nil, &domain.ValidationError{Field: "image_urls", Reason: "이 모델은 이미지 첨부를 지원하지 않습니다. Nano Banana 또는 Kling을 사용하세요."}
		case vendor.ModelKling:
			if hasReference {
				return nil, &domain.ValidationError{Field: "image_urls", Reason: "Kling은 참조 이미지 사용 시 추가 첨부를 지원하지 않습니다. Nano Banana를 사용하세요."}
			}
			if len(attachments) > 1 {
				return nil, &domain.ValidationError{Field: "image_urls", Reason: "Kling은 이미지 첨부를 1개까지만 지원합니다. Nano Banana를 사용하세요."}
			}
		case vendor.ModelNanoBanana:
			maxAllowed := 2
			if hasReference {
				maxAllowed = 1
			}
			if len(attachments) > maxAllowed {
				return nil, &domain.ValidationError{Field: "image_urls", Reason: fmt.Sprintf("Nano Banana는 이미지 첨부를 최대 %d개까지 지원합니다.", maxAllowed)}
			}
		}
	}

	session, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Kind != model.SessionKindImage {
		return nil, &domain.ValidationError{Field: "session_id", Reason: "not an image session"}
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	job := newJob(sessionID, model.JobKindImage, payload)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if session.Title == "" {
			if err := u.sessions.UpdateTitle(ctx, tx, sessionID, sessionTitle(params.Prompt)); err != nil {
				return err
			}
		}
		if err := u.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		return u.jobs.AppendTransition(ctx, tx, &model.JobTransition{
			JobID:    job.ID,
			Attempt:  0,
			To:       model.JobStatusPending,
			Occurred: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Status resolves a task reference to the job state plus the produced result
// payload on success or the recorded error on failure.
func (u *JobUseCase) Status(ctx context.Context, taskRef string) (*JobStatusView, error) {
	job, err := u.jobs.FindByTaskRef(ctx, nil, taskRef)
	if err != nil {
		return nil, err
	}
	view := &JobStatusView{TaskRef: job.TaskRef, JobID: job.ID, Status: job.Status}
	switch job.Status {
	case model.JobStatusSuccess:
		if job.MessageID != "" {
			msg, err := u.messages.FindByID(ctx, nil, job.MessageID)
			if err != nil {
				return nil, err
			}
			view.Message = msg
		}
		if job.ImageRecordID != "" {
			rec, err := u.images.FindByID(ctx, nil, job.ImageRecordID)
			if err != nil {
				return nil, err
			}
			view.ImageRecord = rec
		}
	case model.JobStatusFailure:
		view.ErrorMessage = job.ErrorMessage
	}
	return view, nil
}

// Cancel records a best-effort cancellation request for an in-flight task.
func (u *JobUseCase) Cancel(ctx context.Context, taskRef string) error {
	job, err := u.jobs.FindByTaskRef(ctx, nil, taskRef)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return domain.ErrJobAlreadyTerminal
	}
	return u.cancels.RequestCancel(ctx, taskRef)
}

// Transitions exposes the append-only state history of one job.
func (u *JobUseCase) Transitions(ctx context.Context, jobID string) ([]model.JobTransition, error) {
	return u.jobs.Transitions(ctx, jobID)
}

// sessionTitle derives a first-message session title from the prompt.
func sessionTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	runes := []rune(title)
	if len(runes) > 50 {
		title = string(runes[:50])
	}
	return title
}

func newJob(sessionID string, kind model.JobKind, payload []byte) *model.Job {
	now := time.Now()
	return &model.Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Status:    model.JobStatusPending,
		TaskRef:   ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
