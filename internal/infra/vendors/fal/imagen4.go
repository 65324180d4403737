package fal

import (
	"context"

	"genstudio-backend/internal/domain/ports/vendor"
)

const imagen4Endpoint = "fal-ai/imagen4/preview"

var _ vendor.ImageVendor = (*Imagen4Adapter)(nil)

// Imagen4Adapter targets Google's Imagen 4 preview. Text-to-image only;
// reference and attachment images are rejected upstream at enqueue time.
type Imagen4Adapter struct {
	client *Client
}

func NewImagen4Adapter(client *Client) *Imagen4Adapter {
	return &Imagen4Adapter{client: client}
}

func (a *Imagen4Adapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	payload := map[string]any{
		"prompt":        req.Prompt,
		"num_images":    clampNumImages(req.NumImages),
		"aspect_ratio":  pickEnum(req.AspectRatio, "1:1", "1:1", "16:9", "9:16", "4:3", "3:4"),
		"resolution":    pickEnum(req.Resolution, "1K", "1K", "2K"),
		"output_format": pickEnum(req.OutputFormat, "png", "png", "jpeg", "webp"),
	}
	var resp imageResponse
	if err := a.client.Post(ctx, imagen4Endpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}
