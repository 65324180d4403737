package fal

import (
	"context"
	"strings"
	"time"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
)

const ttsEndpoint = "fal-ai/minimax/speech-2.6-hd"

const defaultVoiceID = "Wise_Woman"

var _ vendor.SpeechVendor = (*TTSAdapter)(nil)

// TTSAdapter targets MiniMax Speech 2.6 HD. Speed is clamped to [0.5, 2.0]
// before dispatch.
type TTSAdapter struct {
	client *Client
}

func NewTTSAdapter(client *Client) *TTSAdapter {
	return &TTSAdapter{client: client}
}

func (a *TTSAdapter) Synthesize(ctx context.Context, req vendor.SpeechRequest) (vendor.SpeechResult, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = defaultVoiceID
	}
	payload := map[string]any{
		"prompt":        strings.TrimSpace(req.Text),
		"output_format": "url",
		"voice_setting": map[string]any{
			"voice_id": voice,
			"speed":    clampSpeed(req.Speed),
			"vol":      1,
			"pitch":    0,
		},
	}

	var resp struct {
		Audio struct {
			URL string `json:"url"`
		} `json:"audio"`
		DurationMS int64  `json:"duration_ms"`
		Error      string `json:"error"`
	}
	if err := a.client.Post(ctx, ttsEndpoint, payload, 120*time.Second, &resp); err != nil {
		return vendor.SpeechResult{}, err
	}
	if resp.Audio.URL == "" {
		msg := resp.Error
		if msg == "" {
			msg = "no audio URL"
		}
		return vendor.SpeechResult{}, &domain.VendorError{Vendor: "fal", StatusCode: 200, Body: msg}
	}
	return vendor.SpeechResult{URL: resp.Audio.URL, DurationMS: resp.DurationMS}, nil
}

func clampSpeed(speed float64) float64 {
	if speed == 0 {
		return 1.0
	}
	if speed < 0.5 {
		return 0.5
	}
	if speed > 2.0 {
		return 2.0
	}
	return speed
}
