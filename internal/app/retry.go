package app

import (
	"context"
	"errors"
	"time"

	"github.com/leadline-ai/leadline/internal/reliability"
	"github.com/leadline-ai/leadline/internal/voice"
)

// Retry policy for remote speech backends, applied here at configuration
// time. The voice subsystem itself never retries a provider call; this
// layer gives transient upstream statuses (429, 5xx) one more attempt
// before the failure surfaces to the gateway.
const (
	providerRetryAttempts = 2
	providerRetryBase     = 250 * time.Millisecond
	providerRetryCap      = 2 * time.Second
)

func withProviderRetry(stt voice.SpeechToText, tts voice.TextToSpeech) (voice.SpeechToText, voice.TextToSpeech) {
	return &retrySTT{inner: stt}, &retryTTS{inner: tts}
}

func retryableProviderError(err error) bool {
	var se *voice.ProviderStatusError
	return errors.As(err, &se) && reliability.IsRetryableHTTPStatus(se.Status)
}

func retryBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(reliability.ExponentialBackoff(attempt, providerRetryBase, providerRetryCap)):
		return nil
	}
}

type retrySTT struct {
	inner voice.SpeechToText
}

func (p *retrySTT) Name() string { return p.inner.Name() }

func (p *retrySTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (voice.TranscriptionResult, error) {
	var lastErr error
	for attempt := 0; attempt < providerRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := retryBackoff(ctx, attempt); err != nil {
				return voice.TranscriptionResult{}, err
			}
		}
		res, err := p.inner.Transcribe(ctx, pcm, sampleRate)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryableProviderError(err) {
			break
		}
	}
	return voice.TranscriptionResult{}, lastErr
}

type retryTTS struct {
	inner voice.TextToSpeech
}

func (p *retryTTS) Name() string { return p.inner.Name() }

func (p *retryTTS) Synthesize(ctx context.Context, text string, opts voice.SynthesisOptions) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < providerRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := retryBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		pcm, err := p.inner.Synthesize(ctx, text, opts)
		if err == nil {
			return pcm, nil
		}
		lastErr = err
		if !retryableProviderError(err) {
			break
		}
	}
	return nil, lastErr
}

func (p *retryTTS) Voices(ctx context.Context) ([]voice.Voice, error) {
	voices, err := p.inner.Voices(ctx)
	if err == nil || !retryableProviderError(err) {
		return voices, err
	}
	if berr := retryBackoff(ctx, 1); berr != nil {
		return nil, berr
	}
	return p.inner.Voices(ctx)
}
