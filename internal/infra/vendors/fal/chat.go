package fal

import (
	"context"
	"time"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
)

const chatEndpoint = "openrouter/router"

var _ vendor.ChatVendor = (*ChatAdapter)(nil)

// ChatAdapter routes unified chat completion requests through the
// openrouter/router endpoint.
type ChatAdapter struct {
	client *Client
}

func NewChatAdapter(client *Client) *ChatAdapter {
	return &ChatAdapter{client: client}
}

func (a *ChatAdapter) Complete(ctx context.Context, req vendor.ChatRequest) (string, error) {
	payload := map[string]any{
		"prompt":      req.Prompt,
		"model":       req.Model,
		"temperature": req.Temperature,
	}
	if req.SystemPrompt != "" {
		payload["system_prompt"] = req.SystemPrompt
	}
	if req.MaxTokens != nil {
		payload["max_tokens"] = *req.MaxTokens
	}

	var resp struct {
		Output string `json:"output"`
		Error  string `json:"error"`
	}
	if err := a.client.Post(ctx, chatEndpoint, payload, 120*time.Second, &resp); err != nil {
		return "", err
	}
	if resp.Output == "" {
		msg := resp.Error
		if msg == "" {
			msg = "no output"
		}
		return "", &domain.VendorError{Vendor: "fal", StatusCode: 200, Body: msg}
	}
	return resp.Output, nil
}
