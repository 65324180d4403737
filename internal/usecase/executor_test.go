//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/retrieval"
	"genstudio-backend/internal/domain/ports/vendor"
	"genstudio-backend/internal/infra/i18n"
)

type executorFixture struct {
	exec    *Executor
	jobs    *memJobRepo
	msgs    *memMessageRepo
	images  *memImageRepo
	docs    *memDocRepo
	store   *memRetrievalStore
	cancels *memCancelStore
	chat    *fakeChatVendor
	image   *fakeImageVendor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	f := &executorFixture{
		jobs:    newMemJobRepo(),
		msgs:    &memMessageRepo{},
		images:  newMemImageRepo(),
		docs:    &memDocRepo{},
		store:   &memRetrievalStore{},
		cancels: newMemCancelStore(),
		chat:    &fakeChatVendor{reply: "the answer"},
		image:   &fakeImageVendor{results: []vendor.GeneratedImage{{URL: "https://cdn/img.png"}}},
	}

	registry := vendor.NewRegistry(f.chat, &fakeSpeechVendor{})
	registry.RegisterImage(vendor.ModelImagen4, f.image)
	registry.RegisterImage(vendor.ModelGemini3Pro, f.image)
	registry.RegisterImage(vendor.ModelNanoBananaEdit, f.image)

	builder, err := NewContextBuilder(f.store, 0, nopLogger())
	if err != nil {
		t.Fatalf("NewContextBuilder: %v", err)
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "ko")
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	sessions := newMemSessionRepo(
		&model.Session{ID: "chat-s", Kind: model.SessionKindChat},
		&model.Session{ID: "img-s", Kind: model.SessionKindImage},
	)
	f.exec = NewExecutor(
		f.jobs, sessions, f.msgs, f.images, f.docs,
		registry, builder, f.store, f.cancels, &memTxManager{}, tr, nopLogger(),
	)
	return f
}

func chatJob(t *testing.T, sessionID string, params ChatParams) *model.Job {
	t.Helper()
	payload, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return &model.Job{
		ID:        "job-1",
		SessionID: sessionID,
		Kind:      model.JobKindChat,
		Status:    model.JobStatusRunning,
		TaskRef:   "ref-1",
		Attempts:  1,
		Payload:   payload,
	}
}

func imageJob(t *testing.T, params ImageParams) *model.Job {
	t.Helper()
	payload, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return &model.Job{
		ID:        "job-2",
		SessionID: "img-s",
		Kind:      model.JobKindImage,
		Status:    model.JobStatusRunning,
		TaskRef:   "ref-2",
		Attempts:  1,
		Payload:   payload,
	}
}

func waitIndexed(t *testing.T, store *memRetrievalStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.added)
		store.mu.Unlock()
		if n >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("indexing did not happen within deadline")
}

func TestExecuteChatSuccess(t *testing.T) {
	f := newExecutorFixture(t)
	job := chatJob(t, "chat-s", ChatParams{Prompt: "what is up", Model: "google/gemini-2.5-flash"})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if job.Status != model.JobStatusSuccess {
		t.Errorf("want success, got %s", job.Status)
	}
	if f.chat.calls != 1 {
		t.Errorf("want 1 vendor call, got %d", f.chat.calls)
	}
	if f.chat.last.Temperature != 0.7 {
		t.Errorf("want temperature 0.7, got %v", f.chat.last.Temperature)
	}

	if len(f.msgs.messages) != 1 {
		t.Fatalf("want 1 saved message, got %d", len(f.msgs.messages))
	}
	saved := f.msgs.messages[0]
	if saved.Role != "assistant" || saved.Content != "the answer" {
		t.Errorf("bad assistant message: %+v", saved)
	}
	if job.MessageID != saved.ID {
		t.Errorf("job not linked to result message")
	}

	waitIndexed(t, f.store, 1)
}

func TestExecuteChatDocNotFoundShortCircuits(t *testing.T) {
	f := newExecutorFixture(t)
	job := chatJob(t, "chat-s", ChatParams{Prompt: "summarize @missing.pdf", Model: "m"})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if f.chat.calls != 0 {
		t.Errorf("vendor must not be called, got %d calls", f.chat.calls)
	}
	if job.Status != model.JobStatusSuccess {
		t.Errorf("canned reply is a success, got %s", job.Status)
	}
	if len(f.msgs.messages) != 1 {
		t.Fatalf("want canned reply message, got %d", len(f.msgs.messages))
	}
	content := f.msgs.messages[0].Content
	if !strings.Contains(content, "missing.pdf") || !strings.Contains(content, "찾을 수 없습니다") {
		t.Errorf("unexpected canned reply: %q", content)
	}

	// A canned reply is never indexed into memory.
	time.Sleep(50 * time.Millisecond)
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if len(f.store.added) != 0 {
		t.Errorf("canned reply must not be indexed, got %v", f.store.added)
	}
}

func TestExecuteChatDocProcessingShortCircuits(t *testing.T) {
	f := newExecutorFixture(t)
	f.docs.docs = []model.Document{{
		ID: "d1", SessionID: "chat-s", OriginalName: "report.pdf",
		Status: model.DocumentStatusProcessing,
	}}
	job := chatJob(t, "chat-s", ChatParams{Prompt: "summarize @report.pdf", Model: "m"})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.chat.calls != 0 {
		t.Errorf("vendor must not be called while the document is processing")
	}
	if len(f.msgs.messages) != 1 || !strings.Contains(f.msgs.messages[0].Content, "처리 중") {
		t.Errorf("expected processing reply, got %+v", f.msgs.messages)
	}
}

func TestExecuteChatVendorErrorPropagates(t *testing.T) {
	f := newExecutorFixture(t)
	f.chat.err = &domain.VendorError{Vendor: "fal", StatusCode: 500, Body: "boom"}
	job := chatJob(t, "chat-s", ChatParams{Prompt: "hello", Model: "m"})

	err := f.exec.Execute(context.Background(), job)
	if err == nil {
		t.Fatal("want error")
	}
	if !domain.Retryable(err) {
		t.Errorf("vendor error must be retryable")
	}
	if job.Status == model.JobStatusSuccess {
		t.Errorf("job must not be success")
	}
}

func TestExecuteChatCancelObserved(t *testing.T) {
	f := newExecutorFixture(t)
	job := chatJob(t, "chat-s", ChatParams{Prompt: "hello", Model: "m"})
	_ = f.cancels.RequestCancel(context.Background(), job.TaskRef)

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.chat.calls != 1 {
		t.Errorf("cancellation is checked after the vendor call, want 1 call got %d", f.chat.calls)
	}
	if len(f.msgs.messages) != 0 {
		t.Errorf("cancelled execution must not persist a message")
	}
	if job.Status == model.JobStatusSuccess {
		t.Errorf("cancelled execution must not finish the job")
	}
}

func TestExecuteImageSuccess(t *testing.T) {
	f := newExecutorFixture(t)
	seed := int64(42)
	job := imageJob(t, ImageParams{
		Prompt:      "a red fox",
		Model:       string(vendor.ModelImagen4),
		AspectRatio: "16:9",
		Seed:        &seed,
	})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != model.JobStatusSuccess || job.ImageRecordID == "" {
		t.Fatalf("want success with record, got %+v", job)
	}

	rec, err := f.images.FindByID(context.Background(), nil, job.ImageRecordID)
	if err != nil {
		t.Fatalf("record not saved: %v", err)
	}
	if rec.ImageURL != "https://cdn/img.png" || rec.Model != string(vendor.ModelImagen4) {
		t.Errorf("bad record: %+v", rec)
	}
	if rec.Seed == nil || *rec.Seed != 42 {
		t.Errorf("request seed must be kept when the vendor returns none, got %v", rec.Seed)
	}
	if rec.Metadata["aspect_ratio"] != "16:9" {
		t.Errorf("aspect ratio missing from metadata: %v", rec.Metadata)
	}

	waitIndexed(t, f.store, 1)
}

func TestExecuteImageVendorSeedWins(t *testing.T) {
	f := newExecutorFixture(t)
	vendorSeed := int64(7)
	f.image.results = []vendor.GeneratedImage{{URL: "u", Seed: &vendorSeed}}
	reqSeed := int64(42)
	job := imageJob(t, ImageParams{Prompt: "p", Model: string(vendor.ModelImagen4), Seed: &reqSeed})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rec, _ := f.images.FindByID(context.Background(), nil, job.ImageRecordID)
	if rec.Seed == nil || *rec.Seed != 7 {
		t.Errorf("vendor seed must win, got %v", rec.Seed)
	}
}

func TestExecuteImageNanoBananaRoutesToSibling(t *testing.T) {
	f := newExecutorFixture(t)
	job := imageJob(t, ImageParams{Prompt: "p", Model: string(vendor.ModelNanoBanana)})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rec, _ := f.images.FindByID(context.Background(), nil, job.ImageRecordID)
	if rec.Model != string(vendor.ModelGemini3Pro) {
		t.Errorf("text-only nano banana must record the sibling model, got %s", rec.Model)
	}
}

func TestExecuteImageUnknownModelFailsClosed(t *testing.T) {
	f := newExecutorFixture(t)
	job := imageJob(t, ImageParams{Prompt: "p", Model: "not-a-model"})

	err := f.exec.Execute(context.Background(), job)
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("want configuration error, got %v", err)
	}
	if domain.Retryable(err) {
		t.Errorf("configuration errors are not retryable")
	}
	if f.image.calls != 0 {
		t.Errorf("no vendor call for unknown model")
	}
}

func TestExecuteImageEmptyResultIsVendorError(t *testing.T) {
	f := newExecutorFixture(t)
	f.image.results = nil
	job := imageJob(t, ImageParams{Prompt: "p", Model: string(vendor.ModelImagen4)})

	err := f.exec.Execute(context.Background(), job)
	var ve *domain.VendorError
	if !errors.As(err, &ve) {
		t.Fatalf("want vendor error, got %v", err)
	}
}

func TestExecuteImageMemoryContextPrefix(t *testing.T) {
	f := newExecutorFixture(t)
	f.store.results = []retrieval.Snippet{{Content: "user prefers watercolor style"}}
	job := imageJob(t, ImageParams{Prompt: "a red fox", Model: string(vendor.ModelImagen4)})

	if err := f.exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sent := f.image.last.Prompt
	if !strings.Contains(sent, "user prefers watercolor style") || !strings.HasSuffix(sent, "Request: a red fox") {
		t.Errorf("memory context not prepended: %q", sent)
	}

	rec, _ := f.images.FindByID(context.Background(), nil, job.ImageRecordID)
	if rec.Prompt != "a red fox" {
		t.Errorf("record must keep the original prompt, got %q", rec.Prompt)
	}
}
