package model

import "time"

// ImageRecord is created once per successful generation. Metadata always
// carries the aspect ratio the image was requested with.
type ImageRecord struct {
	ID               string
	SessionID        string
	Prompt           string
	ImageURL         string
	Model            string
	Seed             *int64
	MaskURL          string
	ReferenceImageID string
	Metadata         map[string]any
	CreatedAt        time.Time
}
