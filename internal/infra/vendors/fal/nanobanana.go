package fal

import (
	"context"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
)

const (
	nanoBananaEndpoint     = "fal-ai/nano-banana-pro"
	nanoBananaEditEndpoint = "fal-ai/nano-banana-pro/edit"
)

var nanoBananaRatios = []string{"auto", "21:9", "16:9", "3:2", "4:3", "5:4", "1:1", "4:5", "3:4", "2:3", "9:16"}

var (
	_ vendor.ImageVendor = (*NanoBananaAdapter)(nil)
	_ vendor.ImageVendor = (*NanoBananaEditAdapter)(nil)
)

// NanoBananaAdapter is the direct text-to-image endpoint of Nano Banana Pro.
// The router normally sends image-less nano-banana traffic to the Gemini 3
// Pro sibling instead; this adapter serves callers that name the endpoint
// explicitly.
type NanoBananaAdapter struct {
	client *Client
}

func NewNanoBananaAdapter(client *Client) *NanoBananaAdapter {
	return &NanoBananaAdapter{client: client}
}

func (a *NanoBananaAdapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	payload := map[string]any{
		"prompt":        req.Prompt,
		"num_images":    clampNumImages(req.NumImages),
		"aspect_ratio":  pickEnum(req.AspectRatio, "auto", nanoBananaRatios...),
		"resolution":    pickEnum(req.Resolution, "1K", "1K", "2K", "4K"),
		"output_format": pickEnum(req.OutputFormat, "png", "png", "jpeg", "webp"),
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	var resp imageResponse
	if err := a.client.Post(ctx, nanoBananaEndpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}

// NanoBananaEditAdapter is the edit endpoint; it accepts up to two source
// images and requires at least one.
type NanoBananaEditAdapter struct {
	client     *Client
	normalizer *Normalizer
}

func NewNanoBananaEditAdapter(client *Client, normalizer *Normalizer) *NanoBananaEditAdapter {
	return &NanoBananaEditAdapter{client: client, normalizer: normalizer}
}

func (a *NanoBananaEditAdapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	if len(req.ImageURLs) == 0 {
		return nil, &domain.ValidationError{Field: "image_urls", Reason: "required for " + nanoBananaEditEndpoint}
	}
	payload := map[string]any{
		"prompt":        req.Prompt,
		"num_images":    clampNumImages(req.NumImages),
		"image_urls":    a.normalizer.NormalizeAll(ctx, req.ImageURLs),
		"aspect_ratio":  pickEnum(req.AspectRatio, "auto", nanoBananaRatios...),
		"output_format": pickEnum(req.OutputFormat, "png", "png", "jpeg", "webp"),
		"resolution":    pickEnum(req.Resolution, "1K", "1K", "2K", "4K"),
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	var resp imageResponse
	if err := a.client.Post(ctx, nanoBananaEditEndpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}
