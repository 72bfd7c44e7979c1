package app

import (
	"context"
	"testing"

	"github.com/leadline-ai/leadline/internal/voice"
)

type sequencedSTT struct {
	errs  []error
	calls int
}

func (s *sequencedSTT) Name() string { return "sequenced" }

func (s *sequencedSTT) Transcribe(context.Context, []byte, int) (voice.TranscriptionResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return voice.TranscriptionResult{}, s.errs[i]
	}
	return voice.TranscriptionResult{Text: "recovered", Confidence: 0.9}, nil
}

type sequencedTTS struct {
	errs  []error
	calls int
}

func (s *sequencedTTS) Name() string { return "sequenced" }

func (s *sequencedTTS) Synthesize(context.Context, string, voice.SynthesisOptions) ([]byte, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return []byte{1, 2, 3, 4}, nil
}

func (s *sequencedTTS) Voices(context.Context) ([]voice.Voice, error) {
	return []voice.Voice{{ID: "v1", Name: "Test"}}, nil
}

func transientStatus(status int) error {
	return &voice.ProviderStatusError{Provider: "sequenced", Endpoint: "/v1/test", Status: status, Body: "upstream"}
}

func TestRetrySTTRecoversFromTransientStatus(t *testing.T) {
	inner := &sequencedSTT{errs: []error{transientStatus(503)}}
	stt, _ := withProviderRetry(inner, &sequencedTTS{})

	res, err := stt.Transcribe(context.Background(), []byte{0, 0}, 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Text != "recovered" || inner.calls != 2 {
		t.Fatalf("res = %+v after %d calls, want recovery on second attempt", res, inner.calls)
	}
}

func TestRetrySTTDoesNotRetryTerminalStatus(t *testing.T) {
	inner := &sequencedSTT{errs: []error{transientStatus(401)}}
	stt, _ := withProviderRetry(inner, &sequencedTTS{})

	if _, err := stt.Transcribe(context.Background(), []byte{0, 0}, 16000); err == nil {
		t.Fatal("terminal status should surface")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want a single attempt on a 401", inner.calls)
	}
}

func TestRetrySTTSurfacesExhaustedFailure(t *testing.T) {
	inner := &sequencedSTT{errs: []error{transientStatus(503), transientStatus(503)}}
	stt, _ := withProviderRetry(inner, &sequencedTTS{})

	if _, err := stt.Transcribe(context.Background(), []byte{0, 0}, 16000); err == nil {
		t.Fatal("exhausted retries should surface the last error")
	}
	if inner.calls != providerRetryAttempts {
		t.Fatalf("calls = %d, want %d", inner.calls, providerRetryAttempts)
	}
}

func TestRetryTTSRecoversFromTransientStatus(t *testing.T) {
	inner := &sequencedTTS{errs: []error{transientStatus(429)}}
	_, tts := withProviderRetry(&sequencedSTT{}, inner)

	pcm, err := tts.Synthesize(context.Background(), "hello", voice.SynthesisOptions{VoiceID: "v1"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(pcm) == 0 || inner.calls != 2 {
		t.Fatalf("pcm = %d bytes after %d calls, want recovery on second attempt", len(pcm), inner.calls)
	}
}
