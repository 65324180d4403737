package model

import "time"

type SessionKind string

const (
	SessionKindChat  SessionKind = "chat"
	SessionKindImage SessionKind = "image"
)

// Session rows are owned by the (external) session management layer; the
// orchestrator only reads them to bind jobs, messages and documents together.
type Session struct {
	ID        string
	Kind      SessionKind
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
