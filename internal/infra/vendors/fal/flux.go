package fal

import (
	"context"

	"genstudio-backend/internal/domain/ports/vendor"
)

const fluxUltraEndpoint = "fal-ai/flux-pro/v1.1-ultra"

var _ vendor.ImageVendor = (*FluxUltraAdapter)(nil)

// FluxUltraAdapter targets FLUX Pro v1.1 Ultra, the default text-to-image
// model. Note its wider aspect-ratio vocabulary and jpeg default.
type FluxUltraAdapter struct {
	client *Client
}

func NewFluxUltraAdapter(client *Client) *FluxUltraAdapter {
	return &FluxUltraAdapter{client: client}
}

func (a *FluxUltraAdapter) Generate(ctx context.Context, req vendor.ImageRequest) ([]vendor.GeneratedImage, error) {
	payload := map[string]any{
		"prompt":     req.Prompt,
		"num_images": clampNumImages(req.NumImages),
		"aspect_ratio": pickEnum(req.AspectRatio, "16:9",
			"21:9", "16:9", "4:3", "3:2", "1:1", "2:3", "3:4", "9:16", "9:21"),
		"output_format": pickEnum(req.OutputFormat, "jpeg", "jpeg", "png"),
	}
	var resp imageResponse
	if err := a.client.Post(ctx, fluxUltraEndpoint, payload, imageTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}
