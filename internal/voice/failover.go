package voice

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// NewFailoverPair builds STT/TTS capabilities that prefer the primary
// backend and switch to fallback when a primary call fails. Once fallback
// succeeds it stays active until a fallback call fails; then primary is
// retried. The two directions share one sticky state so a dead backend is
// avoided on both paths.
func NewFailoverPair(
	primarySTT SpeechToText,
	primaryTTS TextToSpeech,
	fallbackSTT SpeechToText,
	fallbackTTS TextToSpeech,
	fallbackVoiceID string,
) (SpeechToText, TextToSpeech) {
	state := &failoverState{}
	return &failoverSTT{
			state:    state,
			primary:  primarySTT,
			fallback: fallbackSTT,
		}, &failoverTTS{
			state:           state,
			primary:         primaryTTS,
			fallback:        fallbackTTS,
			fallbackVoiceID: strings.TrimSpace(fallbackVoiceID),
		}
}

type failoverState struct {
	fallbackActive atomic.Bool
}

type failoverSTT struct {
	state    *failoverState
	primary  SpeechToText
	fallback SpeechToText
}

func (p *failoverSTT) Name() string {
	if p.state.fallbackActive.Load() {
		return p.fallback.Name()
	}
	return p.primary.Name()
}

func (p *failoverSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (TranscriptionResult, error) {
	if p.state.fallbackActive.Load() {
		res, fbErr := p.fallback.Transcribe(ctx, pcm, sampleRate)
		if fbErr == nil {
			return res, nil
		}
		res, prErr := p.primary.Transcribe(ctx, pcm, sampleRate)
		if prErr == nil {
			p.state.fallbackActive.Store(false)
			return res, nil
		}
		return TranscriptionResult{}, fmt.Errorf("stt fallback failed: %v; stt primary failed: %w", fbErr, prErr)
	}

	res, prErr := p.primary.Transcribe(ctx, pcm, sampleRate)
	if prErr == nil {
		return res, nil
	}
	res, fbErr := p.fallback.Transcribe(ctx, pcm, sampleRate)
	if fbErr != nil {
		return TranscriptionResult{}, fmt.Errorf("stt primary failed: %v; stt fallback failed: %w", prErr, fbErr)
	}
	p.state.fallbackActive.Store(true)
	return res, nil
}

type failoverTTS struct {
	state           *failoverState
	primary         TextToSpeech
	fallback        TextToSpeech
	fallbackVoiceID string
}

func (p *failoverTTS) Name() string {
	if p.state.fallbackActive.Load() {
		return p.fallback.Name()
	}
	return p.primary.Name()
}

func (p *failoverTTS) Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error) {
	if p.state.fallbackActive.Load() {
		audio, fbErr := p.fallback.Synthesize(ctx, text, p.fallbackOpts(opts))
		if fbErr == nil {
			return audio, nil
		}
		audio, prErr := p.primary.Synthesize(ctx, text, opts)
		if prErr == nil {
			p.state.fallbackActive.Store(false)
			return audio, nil
		}
		return nil, fmt.Errorf("tts fallback failed: %v; tts primary failed: %w", fbErr, prErr)
	}

	audio, prErr := p.primary.Synthesize(ctx, text, opts)
	if prErr == nil {
		return audio, nil
	}
	audio, fbErr := p.fallback.Synthesize(ctx, text, p.fallbackOpts(opts))
	if fbErr != nil {
		return nil, fmt.Errorf("tts primary failed: %v; tts fallback failed: %w", prErr, fbErr)
	}
	p.state.fallbackActive.Store(true)
	return audio, nil
}

func (p *failoverTTS) Voices(ctx context.Context) ([]Voice, error) {
	if p.state.fallbackActive.Load() {
		return p.fallback.Voices(ctx)
	}
	voices, err := p.primary.Voices(ctx)
	if err != nil {
		return p.fallback.Voices(ctx)
	}
	return voices, nil
}

func (p *failoverTTS) fallbackOpts(opts SynthesisOptions) SynthesisOptions {
	if p.fallbackVoiceID != "" {
		opts.VoiceID = p.fallbackVoiceID
	}
	return opts
}
