package model

import "time"

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded file whose lifecycle is driven by the ingestion
// worker. Chat jobs only read Status and the names to resolve @mentions and
// to gate document-grounded answers.
type Document struct {
	ID           string
	SessionID    string
	FileName     string // object storage key
	OriginalName string // name shown to and typed by the user
	Status       DocumentStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is the name mention markers are matched against.
func (d *Document) DisplayName() string {
	if d.OriginalName != "" {
		return d.OriginalName
	}
	return d.FileName
}
