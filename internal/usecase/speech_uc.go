package usecase

import (
	"context"
	"time"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/domain/ports/vendor"
	"genstudio-backend/internal/infra/metrics"
)

// SpeechUseCase fronts the TTS vendor. Synthesis is synchronous; it is not
// part of the job state machine.
type SpeechUseCase struct {
	registry *vendor.Registry
}

func NewSpeechUseCase(registry *vendor.Registry) *SpeechUseCase {
	return &SpeechUseCase{registry: registry}
}

func (u *SpeechUseCase) Synthesize(ctx context.Context, text, voiceID string, speed float64) (vendor.SpeechResult, error) {
	if text == "" {
		return vendor.SpeechResult{}, &domain.ValidationError{Field: "text", Reason: "required"}
	}
	tts, err := u.registry.Speech()
	if err != nil {
		return vendor.SpeechResult{}, err
	}
	start := time.Now()
	res, err := tts.Synthesize(ctx, vendor.SpeechRequest{Text: text, VoiceID: voiceID, Speed: speed})
	metrics.ObserveVendorCall("tts", "minimax-speech", time.Since(start), err == nil)
	return res, err
}
