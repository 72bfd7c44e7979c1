package voice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/leadline-ai/leadline/internal/audio"
	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/reliability"
)

// EmotionResult is the vocal-affect estimate for one utterance.
type EmotionResult struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Arousal    float64 `json:"arousal"`
	Valence    float64 `json:"valence"`
}

// Gateway fronts the speech providers for one session: it transcribes,
// synthesizes and plays audio, tracks per-capability latency in a bounded
// rolling window, and classifies every provider failure before emitting
// it as an error event. Playback is fire-and-forget with no queue;
// overlapping Speak calls are the caller's concern.
type Gateway struct {
	stt       SpeechToText
	tts       TextToSpeech
	sink      AudioSink
	bus       *events.Bus
	metrics   *observability.Metrics
	window    *observability.LatencyWindow
	sessionID string

	successes atomic.Int64
	errors    atomic.Int64
}

// GatewayConfig wires one gateway. Metrics and the sink are optional.
type GatewayConfig struct {
	STT       SpeechToText
	TTS       TextToSpeech
	Sink      AudioSink
	Bus       *events.Bus
	Metrics   *observability.Metrics
	SessionID string
}

var errNoSink = errors.New("no audio sink configured")

func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		stt:       cfg.STT,
		tts:       cfg.TTS,
		sink:      cfg.Sink,
		bus:       cfg.Bus,
		metrics:   cfg.Metrics,
		window:    observability.NewLatencyWindow(observability.DefaultWindowSamples),
		sessionID: cfg.SessionID,
	}
}

// TranscribeAudio runs one utterance of PCM16LE audio through the STT
// provider. Success publishes speech_recognized; failure is classified as
// an STT error, published, counted and returned.
func (g *Gateway) TranscribeAudio(ctx context.Context, pcm []byte, sampleRate int) (TranscriptionResult, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	start := time.Now()
	res, err := g.stt.Transcribe(ctx, pcm, sampleRate)
	elapsed := time.Since(start)

	if err != nil {
		return TranscriptionResult{}, g.fail(reliability.CodeSTT, "stt", err)
	}

	g.successes.Add(1)
	g.window.ObserveDuration(observability.StageSpeechToText, elapsed)
	if g.metrics != nil {
		g.metrics.ObserveSTTLatency(elapsed)
	}
	g.publish(events.TypeSpeechRecognized, map[string]any{
		"text":        res.Text,
		"confidence":  res.Confidence,
		"provider":    res.Provider,
		"duration_ms": elapsed.Milliseconds(),
	})
	return res, nil
}

// SynthesizeSpeech renders sanitized text into PCM16LE audio.
func (g *Gateway) SynthesizeSpeech(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error) {
	clean := SanitizeSpeechText(text)
	if clean == "" {
		return nil, g.fail(reliability.CodeTTS, "tts", fmt.Errorf("nothing to synthesize"))
	}

	start := time.Now()
	pcm, err := g.tts.Synthesize(ctx, clean, opts)
	elapsed := time.Since(start)

	if err != nil {
		return nil, g.fail(reliability.CodeTTS, "tts", err)
	}

	g.successes.Add(1)
	g.window.ObserveDuration(observability.StageTextToSpeech, elapsed)
	if g.metrics != nil {
		g.metrics.ObserveTTSLatency(elapsed)
	}
	return pcm, nil
}

// PlayAudio hands synthesized audio to the sink.
func (g *Gateway) PlayAudio(ctx context.Context, pcm []byte, sampleRate int) error {
	if g.sink == nil {
		return g.fail(reliability.CodePlayback, "playback", errNoSink)
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if err := g.sink.Play(ctx, pcm, sampleRate); err != nil {
		return g.fail(reliability.CodePlayback, "playback", err)
	}
	return nil
}

// Speak synthesizes text and plays the result, recording the combined
// round trip in the total stage.
func (g *Gateway) Speak(ctx context.Context, text string, opts SynthesisOptions) error {
	start := time.Now()
	pcm, err := g.SynthesizeSpeech(ctx, text, opts)
	if err != nil {
		return err
	}
	if err := g.PlayAudio(ctx, pcm, audio.DefaultSampleRate); err != nil {
		return err
	}
	g.window.ObserveDuration(observability.StageTotal, time.Since(start))
	return nil
}

// ObserveProcessing records the dialogue span of one turn, between the
// committed transcription and the reply being handed to synthesis. The
// engine has no latency hooks of its own, so the turn loop reports it.
func (g *Gateway) ObserveProcessing(d time.Duration) {
	g.window.ObserveDuration(observability.StageProcessing, d)
}

// Voices exposes the synthesis provider's catalog.
func (g *Gateway) Voices(ctx context.Context) ([]Voice, error) {
	return g.tts.Voices(ctx)
}

// AnalyzeEmotion estimates vocal affect from signal statistics: energy
// maps to arousal, pitch presence and height to valence. It is a
// placeholder for a trained classifier and reports low confidence.
func (g *Gateway) AnalyzeEmotion(pcm []byte, sampleRate int) (EmotionResult, error) {
	if len(pcm) == 0 {
		return EmotionResult{}, g.fail(reliability.CodeEmotion, "emotion", fmt.Errorf("empty audio"))
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	samples := audio.DecodePCM16LE(pcm)
	energy := audio.RMS(samples)
	arousal := energy * 8
	if arousal > 1 {
		arousal = 1
	}

	valence := 0.5
	if hz, ok := audio.EstimatePitch(samples, sampleRate); ok {
		// Higher pitch within the speech band reads as more positive.
		valence = 0.3 + 0.4*(hz-80)/(800-80)
	}

	emotion := "neutral"
	switch {
	case arousal > 0.7 && valence >= 0.5:
		emotion = "excited"
	case arousal > 0.7:
		emotion = "frustrated"
	case arousal < 0.15:
		emotion = "calm"
	}

	res := EmotionResult{Emotion: emotion, Confidence: 0.4, Arousal: arousal, Valence: valence}
	g.publish(events.TypeEmotionDetected, res)
	return res, nil
}

// PerformanceMetrics summarizes the rolling latency windows and the
// success/error counters.
func (g *Gateway) PerformanceMetrics() observability.PerformanceReport {
	successes := g.successes.Load()
	errs := g.errors.Load()

	errorRate := 0.0
	if total := successes + errs; total > 0 {
		errorRate = float64(errs) / float64(total)
	}

	return observability.PerformanceReport{
		AvgSpeechToTextMS: g.window.Average(observability.StageSpeechToText),
		AvgProcessingMS:   g.window.Average(observability.StageProcessing),
		AvgTextToSpeechMS: g.window.Average(observability.StageTextToSpeech),
		AvgTotalMS:        g.window.Average(observability.StageTotal),
		ErrorRate:         errorRate,
		Successes:         successes,
		Errors:            errs,
	}
}

// LatencySnapshot exposes per-stage percentiles for diagnostics.
func (g *Gateway) LatencySnapshot() observability.WindowSnapshot {
	return g.window.Snapshot()
}

func (g *Gateway) fail(code reliability.Code, capability string, err error) error {
	g.errors.Add(1)
	ve := reliability.Classify(code, err)
	if g.metrics != nil {
		g.metrics.ProviderErrors.WithLabelValues(capability, string(ve.Code)).Inc()
	}
	g.publish(events.TypeError, ve)
	return ve
}

func (g *Gateway) publish(t events.Type, payload any) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(events.Event{Type: t, SessionID: g.sessionID, Payload: payload})
}
