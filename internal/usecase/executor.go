package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
	"genstudio-backend/internal/domain/ports/retrieval"
	"genstudio-backend/internal/domain/ports/vendor"
	"genstudio-backend/internal/infra/i18n"
	"genstudio-backend/internal/infra/logging"
	"genstudio-backend/internal/infra/metrics"
)

// ChatParams is the serialized body of a chat job.
type ChatParams struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ImageParams is the serialized body of an image job.
type ImageParams struct {
	Prompt            string   `json:"prompt"`
	Model             string   `json:"model"`
	AspectRatio       string   `json:"aspect_ratio"`
	NumImages         int      `json:"num_images"`
	Seed              *int64   `json:"seed,omitempty"`
	ReferenceImageID  string   `json:"reference_image_id,omitempty"`
	ReferenceImageURL string   `json:"reference_image_url,omitempty"`
	ImageURLs         []string `json:"image_urls,omitempty"`
	MaskURL           string   `json:"mask_url,omitempty"`
	Resolution        string   `json:"resolution,omitempty"`
	OutputFormat      string   `json:"output_format,omitempty"`
}

// Executor runs one claimed job end-to-end: context resolution, vendor call,
// transactional result write, then asynchronous memory indexing. All
// collaborators are injected at bootstrap.
type Executor struct {
	jobs     repository.JobRepository
	sessions repository.SessionRepository
	messages repository.MessageRepository
	images   repository.ImageRecordRepository
	docs     repository.DocumentRepository
	registry *vendor.Registry
	builder  *ContextBuilder
	store    retrieval.Store
	cancels  repository.CancelStore
	tm       repository.TransactionManager
	tr       *i18n.Translator
	log      *zerolog.Logger
}

func NewExecutor(
	jobs repository.JobRepository,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	images repository.ImageRecordRepository,
	docs repository.DocumentRepository,
	registry *vendor.Registry,
	builder *ContextBuilder,
	store retrieval.Store,
	cancels repository.CancelStore,
	tm repository.TransactionManager,
	tr *i18n.Translator,
	log *zerolog.Logger,
) *Executor {
	return &Executor{
		jobs:     jobs,
		sessions: sessions,
		messages: messages,
		images:   images,
		docs:     docs,
		registry: registry,
		builder:  builder,
		store:    store,
		cancels:  cancels,
		tm:       tm,
		tr:       tr,
		log:      log,
	}
}

// Execute runs a job body. Returning nil means the job reached a terminal
// status; a non-nil error leaves the retry decision to the caller.
func (e *Executor) Execute(ctx context.Context, job *model.Job) error {
	defer logging.TraceDuration(e.log, "Executor.Execute")()
	switch job.Kind {
	case model.JobKindChat:
		var params ChatParams
		if err := json.Unmarshal(job.Payload, &params); err != nil {
			return &domain.ValidationError{Field: "payload", Reason: err.Error()}
		}
		return e.runChat(ctx, job, params)
	case model.JobKindImage:
		var params ImageParams
		if err := json.Unmarshal(job.Payload, &params); err != nil {
			return &domain.ValidationError{Field: "payload", Reason: err.Error()}
		}
		return e.runImage(ctx, job, params)
	default:
		return &domain.ValidationError{Field: "kind", Reason: "unknown job kind " + string(job.Kind)}
	}
}

func (e *Executor) runChat(ctx context.Context, job *model.Job, params ChatParams) error {
	recent, err := e.messages.Recent(ctx, job.SessionID, RecentTurnLimit)
	if err != nil {
		return fmt.Errorf("load recent messages: %w", err)
	}
	documents, err := e.docs.BySession(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	cc, err := e.builder.Build(ctx, job.SessionID, params.Prompt, params.SystemPrompt, recent, documents)
	if err != nil {
		return err
	}

	switch cc.Kind {
	case ContextDocNotFound:
		return e.finishChat(ctx, job, e.tr.T("chat.doc_not_found", cc.DocumentName), nil, false, params.Model)
	case ContextDocProcessing:
		return e.finishChat(ctx, job, e.tr.T("chat.doc_processing", cc.DocumentName), nil, false, params.Model)
	}

	chat, err := e.registry.Chat()
	if err != nil {
		return err
	}
	start := time.Now()
	reply, err := chat.Complete(ctx, vendor.ChatRequest{
		Prompt:       cc.Prompt,
		Model:        params.Model,
		SystemPrompt: cc.SystemPrompt,
		Temperature:  0.7,
	})
	metrics.ObserveVendorCall("chat", params.Model, time.Since(start), err == nil)
	if err != nil {
		return err
	}

	if e.observedCancel(ctx, job) {
		return nil
	}
	return e.finishChat(ctx, job, reply, cc.Citations, true, params.Model)
}

// finishChat persists the assistant message and the success status in one
// transaction, then indexes the reply into the retrieval store. Indexing is
// deliberately ordered after the commit so a memory can never point at a
// message row that does not exist.
func (e *Executor) finishChat(ctx context.Context, job *model.Job, reply string, citations []model.Citation, index bool, chatModel string) error {
	msg := &model.Message{
		ID:        uuid.NewString(),
		SessionID: job.SessionID,
		Role:      "assistant",
		Content:   reply,
		Citations: citations,
		CreatedAt: time.Now(),
	}
	err := e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := e.messages.Save(ctx, tx, msg); err != nil {
			return err
		}
		prev := job.Status
		job.MessageID = msg.ID
		job.Status = model.JobStatusSuccess
		job.ErrorMessage = ""
		if err := e.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		return e.jobs.AppendTransition(ctx, tx, &model.JobTransition{
			JobID:    job.ID,
			Attempt:  job.Attempts,
			From:     prev,
			To:       model.JobStatusSuccess,
			Occurred: time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("persist chat result: %w", err)
	}

	if index {
		go e.indexAfterCommit(job.SessionID, reply, map[string]any{
			"role":       "assistant",
			"message_id": msg.ID,
			"model":      chatModel,
		})
	}
	return nil
}

func (e *Executor) runImage(ctx context.Context, job *model.Job, params ImageParams) error {
	refURL := params.ReferenceImageURL
	refID := ""
	if refURL == "" && params.ReferenceImageID != "" {
		rec, err := e.images.FindByID(ctx, nil, params.ReferenceImageID)
		if err == nil {
			refURL = rec.ImageURL
			refID = rec.ID
		}
	}

	route := RouteImage(vendor.ImageModel(params.Model), refURL, params.ImageURLs)
	adapter, err := e.registry.Image(route.Model)
	if err != nil {
		return err
	}

	prompt := params.Prompt
	if memCtx := e.builder.MemoryContext(ctx, job.SessionID, params.Prompt); memCtx != "" {
		prompt = memCtx + "\n\nRequest: " + params.Prompt
	}

	start := time.Now()
	results, err := adapter.Generate(ctx, vendor.ImageRequest{
		Prompt:            prompt,
		AspectRatio:       params.AspectRatio,
		NumImages:         params.NumImages,
		Seed:              params.Seed,
		ReferenceImageURL: route.ReferenceURL,
		ImageURLs:         route.ImageURLs,
		MaskURL:           params.MaskURL,
		Resolution:        params.Resolution,
		OutputFormat:      params.OutputFormat,
	})
	metrics.ObserveVendorCall("image", string(route.Model), time.Since(start), err == nil)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return &domain.VendorError{Vendor: string(route.Model), StatusCode: 200, Body: "no image URL returned"}
	}

	if e.observedCancel(ctx, job) {
		return nil
	}

	first := results[0]
	rec := &model.ImageRecord{
		ID:               uuid.NewString(),
		SessionID:        job.SessionID,
		Prompt:           params.Prompt,
		ImageURL:         first.URL,
		Model:            string(route.Model),
		Seed:             firstSeed(first.Seed, params.Seed),
		MaskURL:          params.MaskURL,
		ReferenceImageID: refID,
		Metadata:         map[string]any{"aspect_ratio": params.AspectRatio},
		CreatedAt:        time.Now(),
	}
	err = e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := e.images.Save(ctx, tx, rec); err != nil {
			return err
		}
		prev := job.Status
		job.ImageRecordID = rec.ID
		job.Status = model.JobStatusSuccess
		job.ErrorMessage = ""
		if err := e.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		return e.jobs.AppendTransition(ctx, tx, &model.JobTransition{
			JobID:    job.ID,
			Attempt:  job.Attempts,
			From:     prev,
			To:       model.JobStatusSuccess,
			Occurred: time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("persist image result: %w", err)
	}

	go e.indexAfterCommit(job.SessionID, "Generated image with prompt: "+params.Prompt, map[string]any{
		"type":            "image_generation",
		"image_record_id": rec.ID,
		"image_url":       rec.ImageURL,
		"model":           string(route.Model),
	})
	return nil
}

// observedCancel checks the best-effort cancellation flag. Once observed,
// this execution attempts no further state transition; the vendor call it
// already made is an accepted cost.
func (e *Executor) observedCancel(ctx context.Context, job *model.Job) bool {
	if e.cancels == nil {
		return false
	}
	cancelled, err := e.cancels.Cancelled(ctx, job.TaskRef)
	if err != nil {
		return false
	}
	if cancelled {
		e.log.Info().Str("job_id", job.ID).Str("task_ref", job.TaskRef).Msg("cancellation observed, dropping result")
	}
	return cancelled
}

func (e *Executor) indexAfterCommit(sessionID, content string, metadata map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.store.Add(ctx, sessionID, content, metadata); err != nil {
		e.log.Warn().Err(err).Str("session_id", sessionID).Msg("memory indexing failed")
	}
	metrics.IncMemoryIndexed()
}

func firstSeed(imageSeed, requestSeed *int64) *int64 {
	if imageSeed != nil {
		return imageSeed
	}
	return requestSeed
}
