package model

import "time"

type JobKind string

const (
	JobKindChat  JobKind = "chat"
	JobKindImage JobKind = "image"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailure JobStatus = "failure"
)

// Job tracks one asynchronous generation request's lifecycle. It is created
// pending by the request layer and mutated only by the executor; once a
// terminal status is recorded the row never changes again except for the
// cancellation marker.
type Job struct {
	ID            string
	SessionID     string
	Kind          JobKind
	Status        JobStatus
	TaskRef       string // externally visible task reference, ULID
	MessageID     string // result message, chat jobs
	ImageRecordID string // result image record, image jobs
	ErrorMessage  string
	Attempts      int
	Payload       []byte // serialized enqueue request, re-read on retry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (j *Job) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusFailure
}

// JobTransition is one entry of the append-only transition log. Retried
// attempts write fresh entries instead of editing earlier ones, which keeps
// the history auditable.
type JobTransition struct {
	ID       int64
	JobID    string
	Attempt  int
	From     JobStatus
	To       JobStatus
	Detail   string
	Occurred time.Time
}
