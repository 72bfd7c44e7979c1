package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/leadline-ai/leadline/internal/audio"
)

// MockProvider is an offline provider used when no speech backend is
// configured, and as a scripted backend in tests. Transcriptions come
// from the configured script in order; synthesis renders a short tone
// whose length tracks the text.
type MockProvider struct {
	mu      sync.Mutex
	script  []string
	cursor  int
	failSTT error
	failTTS error
}

func NewMockProvider(script ...string) *MockProvider {
	return &MockProvider{script: script}
}

// FailSTT makes every Transcribe call fail with err (nil restores success).
func (p *MockProvider) FailSTT(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSTT = err
}

// FailTTS makes every Synthesize call fail with err (nil restores success).
func (p *MockProvider) FailTTS(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failTTS = err
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Transcribe(_ context.Context, pcm []byte, _ int) (TranscriptionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSTT != nil {
		return TranscriptionResult{}, p.failSTT
	}
	if len(pcm) == 0 {
		return TranscriptionResult{Provider: p.Name()}, nil
	}

	text := "simulated voice input"
	if len(p.script) > 0 {
		text = p.script[p.cursor%len(p.script)]
		p.cursor++
	}
	return TranscriptionResult{Text: text, Confidence: 0.7, Provider: p.Name()}, nil
}

func (p *MockProvider) Synthesize(_ context.Context, text string, _ SynthesisOptions) ([]byte, error) {
	p.mu.Lock()
	failTTS := p.failTTS
	p.mu.Unlock()

	if failTTS != nil {
		return nil, failTTS
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}

	// Roughly 60ms of audio per word keeps preview durations plausible.
	words := len(strings.Fields(text))
	n := words * audio.DefaultSampleRate * 6 / 100
	samples := audio.Sine(220, 0.4, n, audio.DefaultSampleRate)
	return audio.EncodePCM16LE(samples), nil
}

func (p *MockProvider) Voices(_ context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "mock-avery", Name: "Avery", Description: "neutral"},
		{ID: "mock-jordan", Name: "Jordan", Description: "warm"},
	}, nil
}
