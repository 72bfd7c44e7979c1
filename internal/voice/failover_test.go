package voice

import (
	"context"
	"errors"
	"testing"
)

type flakySTT struct {
	name  string
	fail  bool
	calls int
}

func (f *flakySTT) Name() string { return f.name }

func (f *flakySTT) Transcribe(context.Context, []byte, int) (TranscriptionResult, error) {
	f.calls++
	if f.fail {
		return TranscriptionResult{}, errors.New(f.name + " down")
	}
	return TranscriptionResult{Text: "from " + f.name, Confidence: 0.8, Provider: f.name}, nil
}

type flakyTTS struct {
	name      string
	fail      bool
	calls     int
	lastVoice string
}

func (f *flakyTTS) Name() string { return f.name }

func (f *flakyTTS) Synthesize(_ context.Context, _ string, opts SynthesisOptions) ([]byte, error) {
	f.calls++
	f.lastVoice = opts.VoiceID
	if f.fail {
		return nil, errors.New(f.name + " down")
	}
	return []byte(f.name), nil
}

func (f *flakyTTS) Voices(context.Context) ([]Voice, error) {
	if f.fail {
		return nil, errors.New(f.name + " down")
	}
	return []Voice{{ID: f.name + "-voice", Name: f.name}}, nil
}

func TestFailoverSwitchesToFallbackAndSticks(t *testing.T) {
	primary := &flakySTT{name: "primary", fail: true}
	fallback := &flakySTT{name: "fallback"}
	stt, _ := NewFailoverPair(primary, &flakyTTS{name: "primary"}, fallback, &flakyTTS{name: "fallback"}, "")

	res, err := stt.Transcribe(context.Background(), []byte{1}, 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Provider != "fallback" {
		t.Fatalf("provider = %s, want fallback", res.Provider)
	}

	// Fallback is sticky: primary is not retried while fallback works.
	primaryCalls := primary.calls
	if _, err := stt.Transcribe(context.Background(), []byte{1}, 16000); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if primary.calls != primaryCalls {
		t.Fatalf("primary retried while fallback active")
	}
}

func TestFailoverRecoversToPrimaryWhenFallbackDies(t *testing.T) {
	primary := &flakySTT{name: "primary", fail: true}
	fallback := &flakySTT{name: "fallback"}
	stt, _ := NewFailoverPair(primary, &flakyTTS{name: "primary"}, fallback, &flakyTTS{name: "fallback"}, "")

	if _, err := stt.Transcribe(context.Background(), []byte{1}, 16000); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	primary.fail = false
	fallback.fail = true
	res, err := stt.Transcribe(context.Background(), []byte{1}, 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Provider != "primary" {
		t.Fatalf("provider = %s, want primary after fallback failure", res.Provider)
	}

	// And the switch back is sticky again.
	fallbackCalls := fallback.calls
	if _, err := stt.Transcribe(context.Background(), []byte{1}, 16000); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if fallback.calls != fallbackCalls {
		t.Fatalf("fallback retried after primary recovered")
	}
}

func TestFailoverBothDeadReturnsCombinedError(t *testing.T) {
	stt, _ := NewFailoverPair(
		&flakySTT{name: "primary", fail: true},
		&flakyTTS{name: "primary"},
		&flakySTT{name: "fallback", fail: true},
		&flakyTTS{name: "fallback"},
		"",
	)
	if _, err := stt.Transcribe(context.Background(), []byte{1}, 16000); err == nil {
		t.Fatalf("expected combined failure")
	}
}

func TestFailoverTTSUsesFallbackVoiceOverride(t *testing.T) {
	primaryTTS := &flakyTTS{name: "primary", fail: true}
	fallbackTTS := &flakyTTS{name: "fallback"}
	_, tts := NewFailoverPair(&flakySTT{name: "primary"}, primaryTTS, &flakySTT{name: "fallback"}, fallbackTTS, "fb-voice")

	audio, err := tts.Synthesize(context.Background(), "hello", SynthesisOptions{VoiceID: "main-voice"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "fallback" {
		t.Fatalf("audio from %q, want fallback", audio)
	}
	if fallbackTTS.lastVoice != "fb-voice" {
		t.Fatalf("fallback voice = %s, want override fb-voice", fallbackTTS.lastVoice)
	}

	// The STT failure path shares the sticky state with TTS.
	if got, _ := tts.Voices(context.Background()); len(got) == 0 || got[0].ID != "fallback-voice" {
		t.Fatalf("voices = %+v, want the fallback catalog", got)
	}
}
