package fal

import (
	"time"

	"genstudio-backend/internal/domain/ports/vendor"
)

// imageTimeout bounds every image generation call.
const imageTimeout = 180 * time.Second

// imageResponse is the shape shared by all fal image endpoints. A top-level
// seed acts as fallback for images that lack their own.
type imageResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
		FileName    string `json:"file_name"`
		Seed        *int64 `json:"seed"`
	} `json:"images"`
	Seed *int64 `json:"seed"`
}

func (r *imageResponse) results() []vendor.GeneratedImage {
	out := make([]vendor.GeneratedImage, 0, len(r.Images))
	for _, img := range r.Images {
		if img.URL == "" {
			continue
		}
		seed := img.Seed
		if seed == nil {
			seed = r.Seed
		}
		out = append(out, vendor.GeneratedImage{
			URL:         img.URL,
			ContentType: img.ContentType,
			FileName:    img.FileName,
			Seed:        seed,
		})
	}
	return out
}

// clampNumImages keeps the requested count inside [1, 4]. Out-of-range input
// is never an error.
func clampNumImages(n int) int {
	if n < 1 {
		return 1
	}
	if n > 4 {
		return 4
	}
	return n
}

// pickEnum returns value when it is in the allow-list, otherwise fallback.
func pickEnum(value, fallback string, allowed ...string) string {
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}
