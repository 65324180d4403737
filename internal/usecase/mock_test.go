//go:build !integration

package usecase

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/repository"
	"genstudio-backend/internal/domain/ports/retrieval"
	"genstudio-backend/internal/domain/ports/vendor"
)

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

//
// -------------------- transaction manager --------------------
//

type memTx struct{}

type memTxManager struct{}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, memTx{})
}

//
// -------------------- repositories --------------------
//

type memJobRepo struct {
	mu          sync.Mutex
	jobs        map[string]*model.Job
	transitions []model.JobTransition
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.Job{}}
}

func (r *memJobRepo) Save(_ context.Context, _ repository.Tx, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) FindByTaskRef(_ context.Context, _ repository.Tx, ref string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.TaskRef == ref {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) ClaimPending(_ context.Context, kinds ...model.JobKind) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Status != model.JobStatusPending {
			continue
		}
		for _, k := range kinds {
			if j.Kind == k {
				j.Status = model.JobStatusRunning
				j.Attempts++
				cp := *j
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) AppendTransition(_ context.Context, _ repository.Tx, t *model.JobTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = int64(len(r.transitions) + 1)
	r.transitions = append(r.transitions, *t)
	return nil
}

func (r *memJobRepo) Transitions(_ context.Context, jobID string) ([]model.JobTransition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.JobTransition
	for _, t := range r.transitions {
		if t.JobID == jobID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memSessionRepo struct {
	sessions map[string]*model.Session
}

func newMemSessionRepo(sessions ...*model.Session) *memSessionRepo {
	r := &memSessionRepo{sessions: map[string]*model.Session{}}
	for _, s := range sessions {
		r.sessions[s.ID] = s
	}
	return r
}

func (r *memSessionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Session, error) {
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memSessionRepo) UpdateTitle(_ context.Context, _ repository.Tx, id, title string) error {
	if s, ok := r.sessions[id]; ok && s.Title == "" {
		s.Title = title
	}
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []model.Message
}

func (r *memMessageRepo) Save(_ context.Context, _ repository.Tx, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			cp := r.messages[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memMessageRepo) Recent(_ context.Context, sessionID string, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memImageRepo struct {
	mu      sync.Mutex
	records map[string]*model.ImageRecord
}

func newMemImageRepo() *memImageRepo {
	return &memImageRepo{records: map[string]*model.ImageRecord{}}
}

func (r *memImageRepo) Save(_ context.Context, _ repository.Tx, rec *model.ImageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *memImageRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.ImageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

type memDocRepo struct {
	docs []model.Document
}

func (r *memDocRepo) Save(_ context.Context, _ repository.Tx, doc *model.Document) error {
	for i := range r.docs {
		if r.docs[i].ID == doc.ID {
			r.docs[i] = *doc
			return nil
		}
	}
	r.docs = append(r.docs, *doc)
	return nil
}

func (r *memDocRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Document, error) {
	for i := range r.docs {
		if r.docs[i].ID == id {
			cp := r.docs[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memDocRepo) BySession(_ context.Context, sessionID string) ([]model.Document, error) {
	var out []model.Document
	for _, d := range r.docs {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDocRepo) ClaimPending(_ context.Context) (*model.Document, error) {
	for i := range r.docs {
		if r.docs[i].Status == model.DocumentStatusPending {
			r.docs[i].Status = model.DocumentStatusProcessing
			cp := r.docs[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memCancelStore struct {
	mu        sync.Mutex
	cancelled map[string]bool
}

func newMemCancelStore() *memCancelStore {
	return &memCancelStore{cancelled: map[string]bool{}}
}

func (s *memCancelStore) RequestCancel(_ context.Context, taskRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[taskRef] = true
	return nil
}

func (s *memCancelStore) Cancelled(_ context.Context, taskRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[taskRef], nil
}

//
// -------------------- retrieval --------------------
//

type memRetrievalStore struct {
	mu      sync.Mutex
	results []retrieval.Snippet
	err     error
	queries []retrieval.Query
	added   []string
}

func (s *memRetrievalStore) Search(_ context.Context, q retrieval.Query) ([]retrieval.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *memRetrievalStore) Add(_ context.Context, _, content string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, content)
	return nil
}

//
// -------------------- vendors --------------------
//

type fakeChatVendor struct {
	reply string
	err   error
	calls int
	last  vendor.ChatRequest
}

func (v *fakeChatVendor) Complete(_ context.Context, req vendor.ChatRequest) (string, error) {
	v.calls++
	v.last = req
	if v.err != nil {
		return "", v.err
	}
	return v.reply, nil
}

type fakeImageVendor struct {
	results []vendor.GeneratedImage
	err     error
	calls   int
	last    vendor.ImageRequest
}

func (v *fakeImageVendor) Generate(_ context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	v.calls++
	v.last = req
	if v.err != nil {
		return nil, v.err
	}
	return v.results, nil
}

type fakeSpeechVendor struct {
	result vendor.SpeechResult
	err    error
	last   vendor.SpeechRequest
}

func (v *fakeSpeechVendor) Synthesize(_ context.Context, req vendor.SpeechRequest) (vendor.SpeechResult, error) {
	v.last = req
	return v.result, v.err
}
