package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
)

var _ vendor.ChatVendor = (*ChatAdapter)(nil)

// ChatAdapter talks to the Gemini API directly through the official SDK.
// It is registered as the chat vendor when a Gemini key is configured and
// no fal credential is present.
type ChatAdapter struct {
	client       *genai.Client
	defaultModel string
}

func NewChatAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*ChatAdapter, error) {
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Reason: "gemini: empty api key"}
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &ChatAdapter{client: c, defaultModel: defaultModel}, nil
}

func (a *ChatAdapter) Complete(ctx context.Context, req vendor.ChatRequest) (string, error) {
	model := a.defaultModel
	// Caller model names arrive in openrouter form ("google/gemini-2.5-flash");
	// strip the vendor prefix for the direct API.
	if req.Model != "" {
		model = req.Model
		if i := strings.LastIndex(model, "/"); i != -1 {
			model = model[i+1:]
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}
	resp, err := a.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &domain.VendorError{Vendor: "gemini", StatusCode: 200, Body: "empty response"}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
