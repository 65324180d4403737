package model

import "time"

// Citation points a generated answer back to the document region it was
// grounded in. Snippets are capped at 400 characters with an explicit
// length marker appended by the context builder.
type Citation struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Page         int     `json:"page"`
	BBox         []float64 `json:"bbox,omitempty"`
	BBoxNorm     []float64 `json:"bbox_norm,omitempty"`
	PageWidth    float64 `json:"page_width,omitempty"`
	PageHeight   float64 `json:"page_height,omitempty"`
	Snippet      string  `json:"snippet"`
}

type Message struct {
	ID        string
	SessionID string
	Role      string // "user" | "assistant"
	Content   string
	Citations []Citation
	CreatedAt time.Time
}
