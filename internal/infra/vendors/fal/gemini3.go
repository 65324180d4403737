package fal

import (
	"context"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
)

const (
	gemini3Endpoint     = "fal-ai/gemini-3-pro-image-preview"
	gemini3EditEndpoint = "fal-ai/gemini-3-pro-image-preview/edit"
)

var gemini3Ratios = []string{"21:9", "16:9", "3:2", "4:3", "5:4", "1:1", "4:5", "3:4", "2:3", "9:16"}

var (
	_ vendor.ImageVendor = (*Gemini3ProAdapter)(nil)
	_ vendor.ImageVendor = (*Gemini3ProEditAdapter)(nil)
)

// Gemini3ProAdapter is the text-to-image half of the Gemini 3 Pro Image
// Preview pair.
type Gemini3ProAdapter struct {
	client *Client
}

func NewGemini3ProAdapter(client *Client) *Gemini3ProAdapter {
	return &Gemini3ProAdapter{client: client}
}

func (a *Gemini3ProAdapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	payload := map[string]any{
		"prompt":        req.Prompt,
		"num_images":    clampNumImages(req.NumImages),
		"aspect_ratio":  pickEnum(req.AspectRatio, "1:1", gemini3Ratios...),
		"resolution":    pickEnum(req.Resolution, "1K", "1K", "2K", "4K"),
		"output_format": pickEnum(req.OutputFormat, "png", "png", "jpeg", "webp"),
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	var resp imageResponse
	if err := a.client.Post(ctx, gemini3Endpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}

// Gemini3ProEditAdapter is the image-based editing half; it requires at
// least one image URL and takes the reference as a one-element list.
type Gemini3ProEditAdapter struct {
	client     *Client
	normalizer *Normalizer
}

func NewGemini3ProEditAdapter(client *Client, normalizer *Normalizer) *Gemini3ProEditAdapter {
	return &Gemini3ProEditAdapter{client: client, normalizer: normalizer}
}

func (a *Gemini3ProEditAdapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	imageURLs := req.ImageURLs
	if len(imageURLs) == 0 && req.ReferenceImageURL != "" {
		imageURLs = []string{req.ReferenceImageURL}
	}
	if len(imageURLs) == 0 {
		return nil, &domain.ValidationError{Field: "image_urls", Reason: "required for " + gemini3EditEndpoint}
	}
	payload := map[string]any{
		"prompt":        req.Prompt,
		"num_images":    clampNumImages(req.NumImages),
		"image_urls":    a.normalizer.NormalizeAll(ctx, imageURLs),
		"aspect_ratio":  pickEnum(req.AspectRatio, "auto", gemini3Ratios...),
		"resolution":    pickEnum(req.Resolution, "1K", "1K", "2K", "4K"),
		"output_format": pickEnum(req.OutputFormat, "png", "png", "jpeg", "webp"),
	}
	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	var resp imageResponse
	if err := a.client.Post(ctx, gemini3EditEndpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}
