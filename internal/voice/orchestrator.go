package voice

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/leadline-ai/leadline/internal/audio"
	"github.com/leadline-ai/leadline/internal/dialog"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/reliability"
	"github.com/leadline-ai/leadline/internal/session"
)

// Archiver persists a finished conversation.
type Archiver interface {
	ArchiveConversation(ctx context.Context, s *dialog.Session) error
}

// OrchestratorConfig wires one session's pipeline. Metrics and Archive
// are optional.
type OrchestratorConfig struct {
	Gateway     *Gateway
	Capture     *audio.Capture
	Engine      *dialog.Engine
	Store       *session.Store
	Metrics     *observability.Metrics
	Archive     Archiver
	Synthesis   SynthesisOptions
	CaptureCfg  audio.CaptureConfig
	TurnTimeout time.Duration
}

// Orchestrator runs one session's voice loop: PCM chunks stream into the
// capture pipeline, voice activity boundaries delimit utterances, and
// each completed utterance is transcribed, fed to the dialogue engine and
// answered with synthesized speech.
//
// All methods must be called from the session's transport goroutine;
// like the dialogue engine, the orchestrator is not reentrant-safe.
type Orchestrator struct {
	gateway     *Gateway
	capture     *audio.Capture
	engine      *dialog.Engine
	store       *session.Store
	metrics     *observability.Metrics
	archive     Archiver
	synthesis   SynthesisOptions
	captureCfg  audio.CaptureConfig
	turnTimeout time.Duration

	collecting bool
	utterance  []byte
	preroll    []byte
	prerollCap int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.CaptureCfg.SampleRate == 0 {
		cfg.CaptureCfg = audio.DefaultCaptureConfig()
	}
	return &Orchestrator{
		gateway:     cfg.Gateway,
		capture:     cfg.Capture,
		engine:      cfg.Engine,
		store:       cfg.Store,
		metrics:     cfg.Metrics,
		archive:     cfg.Archive,
		synthesis:   cfg.Synthesis,
		captureCfg:  cfg.CaptureCfg,
		turnTimeout: cfg.TurnTimeout,
		prerollCap:  prerollBytes(cfg.CaptureCfg),
	}
}

// prerollBytes sizes the onset buffer. The VAD confirms a rising edge only
// after MinVoiceDuration of voiced audio, so that much speech sits in
// chunks processed before Started fires; one extra frame covers the
// partial-frame tail buffered inside capture.
func prerollBytes(cfg audio.CaptureConfig) int {
	if cfg.SampleRate <= 0 {
		return 0
	}
	window := cfg.VAD.MinVoiceDuration + time.Duration(cfg.FrameSize)*time.Second/time.Duration(cfg.SampleRate)
	samples := int(window * time.Duration(cfg.SampleRate) / time.Second)
	return samples * 2
}

// Start initializes capture and opens the conversation with the lead.
func (o *Orchestrator) Start(ctx context.Context, lead dialog.Context, agent dialog.Agent) error {
	if err := o.capture.Initialize(); err != nil {
		o.recordError(err)
		return err
	}
	if _, err := o.capture.StartCapture(o.captureCfg); err != nil {
		o.recordError(err)
		return err
	}

	snap, err := o.engine.StartConversation(lead, agent)
	if err != nil {
		o.capture.StopCapture()
		o.recordError(err)
		return err
	}

	o.store.SetInitialized(true)
	o.store.SetConversation(snap)
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues("conversation_started").Inc()
	}

	// The opening line is spoken before any user audio arrives.
	speakCtx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()
	if err := o.gateway.Speak(speakCtx, snap.Turns[0].Text, o.synthesis); err != nil {
		o.recordError(err)
	}
	o.store.SetMetrics(o.gateway.PerformanceMetrics())
	return nil
}

// HandleAudioChunk feeds one PCM16LE chunk through capture. A chunk that
// completes an utterance triggers a full dialogue turn before returning.
func (o *Orchestrator) HandleAudioChunk(ctx context.Context, pcm []byte) error {
	frames, err := o.capture.ProcessPCM16(pcm)
	if err != nil {
		o.recordError(err)
		return err
	}

	endedUtterance := false
	for _, f := range frames {
		o.store.SetAudioLevel(f.Volume)
		if f.VAD.Started {
			// The onset that satisfied the hysteresis lives in chunks
			// already processed; seed the utterance from the preroll.
			o.collecting = true
			o.utterance = append(o.utterance[:0], o.preroll...)
			o.preroll = o.preroll[:0]
		}
		if f.VAD.Ended {
			endedUtterance = true
		}
	}
	if o.collecting {
		o.utterance = append(o.utterance, pcm...)
	} else {
		o.preroll = append(o.preroll, pcm...)
		if len(o.preroll) > o.prerollCap {
			excess := len(o.preroll) - o.prerollCap
			o.preroll = append(o.preroll[:0], o.preroll[excess:]...)
		}
	}
	if !endedUtterance {
		return nil
	}

	utter := make([]byte, len(o.utterance))
	copy(utter, o.utterance)
	o.collecting = false
	o.utterance = o.utterance[:0]
	return o.runTurn(ctx, utter)
}

func (o *Orchestrator) runTurn(ctx context.Context, utter []byte) error {
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	sampleRate := o.captureCfg.SampleRate
	res, err := o.gateway.TranscribeAudio(ctx, utter, sampleRate)
	if err != nil {
		// Gateway already classified and published; keep the stream alive.
		o.recordError(err)
		return nil
	}
	if res.Text == "" {
		return nil
	}

	procStart := time.Now()
	if _, err := o.gateway.AnalyzeEmotion(utter, sampleRate); err != nil {
		log.Printf("emotion analysis failed: %v", err)
	}

	turn, err := o.engine.ProcessUserInput(res.Text, res.Confidence)
	if err != nil {
		o.recordError(err)
		return err
	}
	o.gateway.ObserveProcessing(time.Since(procStart))
	if o.metrics != nil {
		o.metrics.TurnsProcessed.Inc()
	}
	o.store.SetConversation(o.engine.Snapshot())

	if err := o.gateway.Speak(ctx, turn.AgentTurn.Text, o.synthesis); err != nil {
		o.recordError(err)
	}
	o.store.SetMetrics(o.gateway.PerformanceMetrics())
	return nil
}

// SetMuted toggles capture mute and mirrors it into session state.
func (o *Orchestrator) SetMuted(muted bool) {
	o.capture.SetMuted(muted)
	o.store.SetMuted(muted)
}

// SetVolume adjusts capture input gain.
func (o *Orchestrator) SetVolume(v float64) {
	o.capture.SetVolume(v)
}

// End closes the conversation, stops capture and archives the final
// session when an archiver is configured.
func (o *Orchestrator) End(ctx context.Context) (*dialog.Session, error) {
	final, err := o.engine.EndConversation()
	o.capture.StopCapture()
	o.collecting = false
	o.utterance = nil
	o.preroll = nil

	if err != nil {
		o.recordError(err)
		return nil, err
	}

	o.store.SetConversation(final)
	o.store.SetMetrics(o.gateway.PerformanceMetrics())
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues("conversation_ended").Inc()
	}

	if o.archive != nil {
		if err := o.archive.ArchiveConversation(ctx, final); err != nil {
			log.Printf("archive conversation %s: %v", final.ID, err)
		}
	}
	return final, nil
}

// Destroy releases the capture pipeline permanently.
func (o *Orchestrator) Destroy() {
	o.capture.Destroy()
	o.store.SetInitialized(false)
}

func (o *Orchestrator) recordError(err error) {
	var ve *reliability.VoiceError
	if !errors.As(err, &ve) {
		ve = reliability.Classify(reliability.CodeCapture, err)
	}
	o.store.SetError(ve)
}
