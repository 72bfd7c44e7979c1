package voice

import (
	"context"
	"fmt"
)

// TranscriptionResult is one committed speech-to-text result.
type TranscriptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider,omitempty"`
}

// ProviderStatusError is a non-200 reply from a provider's HTTP API. It
// carries the status so calling layers can decide whether the failure was
// transient; the providers themselves never retry.
type ProviderStatusError struct {
	Provider string
	Endpoint string
	Status   int
	Body     string
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Endpoint, e.Status, e.Body)
}

// SpeechToText transcribes one utterance of PCM16LE mono audio.
type SpeechToText interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (TranscriptionResult, error)
}

// Voice is one entry in a provider's voice catalog.
type Voice struct {
	ID          string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

// TTSSettings tunes synthesis delivery. Zero values select provider defaults.
type TTSSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	Speed           float64 `json:"speed"`
}

// Normalize fills defaults and clamps every knob to its provider-safe range.
func (s TTSSettings) Normalize() TTSSettings {
	if s.Stability <= 0 {
		s.Stability = 0.42
	}
	if s.Stability > 1 {
		s.Stability = 1
	}
	if s.SimilarityBoost <= 0 {
		s.SimilarityBoost = 0.85
	}
	if s.SimilarityBoost > 1 {
		s.SimilarityBoost = 1
	}
	if s.Style < 0 {
		s.Style = 0
	}
	if s.Style > 1 {
		s.Style = 1
	}
	if s.Speed <= 0 {
		s.Speed = 1.0
	}
	if s.Speed < 0.7 {
		s.Speed = 0.7
	} else if s.Speed > 1.2 {
		s.Speed = 1.2
	}
	return s
}

// SynthesisOptions selects voice and model for one synthesis call.
type SynthesisOptions struct {
	VoiceID  string      `json:"voice_id"`
	ModelID  string      `json:"model_id,omitempty"`
	Settings TTSSettings `json:"settings"`
}

// TextToSpeech renders text into PCM16LE mono audio and exposes the
// provider's voice catalog.
type TextToSpeech interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error)
	Voices(ctx context.Context) ([]Voice, error)
}

// AudioSink receives synthesized audio for delivery to the caller's
// playback path, typically the session websocket.
type AudioSink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// AudioSinkFunc adapts a function to AudioSink.
type AudioSinkFunc func(ctx context.Context, pcm []byte, sampleRate int) error

func (f AudioSinkFunc) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	return f(ctx, pcm, sampleRate)
}
