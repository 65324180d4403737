package fal

import (
	"context"

	"genstudio-backend/internal/domain/ports/vendor"
)

const klingEndpoint = "kling-ai/kling-v1"

var _ vendor.ImageVendor = (*KlingAdapter)(nil)

// KlingAdapter targets Kling, which supports visual continuity via seed,
// a single reference image and a mask. Its native contract takes one
// reference URL, never a list.
type KlingAdapter struct {
	client     *Client
	normalizer *Normalizer
}

func NewKlingAdapter(client *Client, normalizer *Normalizer) *KlingAdapter {
	return &KlingAdapter{client: client, normalizer: normalizer}
}

func (a *KlingAdapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	payload := map[string]any{
		"prompt":       req.Prompt,
		"num_images":   clampNumImages(req.NumImages),
		"aspect_ratio": req.AspectRatio,
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	if req.ReferenceImageURL != "" {
		payload["image_url"] = a.normalizer.Normalize(ctx, req.ReferenceImageURL)
	}
	if req.MaskURL != "" {
		// Kling fetches the mask itself and cannot take an embedded payload,
		// so a private mask URL is rejected instead of normalized.
		if err := RequirePublic([]string{req.MaskURL}, "mask_url"); err != nil {
			return nil, err
		}
		payload["mask_url"] = req.MaskURL
	}
	var resp imageResponse
	if err := a.client.Post(ctx, klingEndpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}
