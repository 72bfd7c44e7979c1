package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/leadline-ai/leadline/internal/audio"
	"github.com/leadline-ai/leadline/internal/config"
	"github.com/leadline-ai/leadline/internal/dialog"
	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/memory"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/protocol"
	"github.com/leadline-ai/leadline/internal/reliability"
	"github.com/leadline-ai/leadline/internal/session"
	"github.com/leadline-ai/leadline/internal/voice"
)

// Runner builds one complete voice pipeline per websocket connection and
// drives it from parsed client messages. The speech providers are shared
// across connections; everything else (bus, capture, engine, gateway,
// orchestrator) is per-session.
type Runner struct {
	cfg      config.Config
	sessions *session.Manager
	setup    voiceSetup
	archive  memory.Store
	metrics  *observability.Metrics
}

func NewRunner(cfg config.Config, sessions *session.Manager, setup voiceSetup, archive memory.Store, metrics *observability.Metrics) *Runner {
	return &Runner{
		cfg:      cfg,
		sessions: sessions,
		setup:    setup,
		archive:  archive,
		metrics:  metrics,
	}
}

// RunConnection owns the session's voice loop until the context ends or
// the inbound channel closes. It is the single goroutine touching the
// capture pipeline and the dialogue engine for this session.
func (r *Runner) RunConnection(ctx context.Context, h *session.Handle, inbound <-chan any, outbound chan<- any) error {
	bus := events.NewBus()
	capture := audio.NewCapture(bus, h.ID)
	engine := dialog.NewEngine(bus)

	seq := 0
	sink := voice.AudioSinkFunc(func(ctx context.Context, pcm []byte, sampleRate int) error {
		seq++
		msg := protocol.AgentAudioChunk{
			Type:        protocol.TypeAgentAudioChunk,
			SessionID:   h.ID,
			Seq:         seq,
			PCM16Base64: base64.StdEncoding.EncodeToString(pcm),
			SampleRate:  sampleRate,
		}
		// Audio frames must arrive complete and in order, so this send
		// blocks until the writer drains, unlike the advisory events.
		select {
		case outbound <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	gateway := voice.NewGateway(voice.GatewayConfig{
		STT:       r.setup.stt,
		TTS:       r.setup.tts,
		Sink:      sink,
		Bus:       bus,
		Metrics:   r.metrics,
		SessionID: h.ID,
	})

	orchestrator := voice.NewOrchestrator(voice.OrchestratorConfig{
		Gateway:     gateway,
		Capture:     capture,
		Engine:      engine,
		Store:       h.Store,
		Metrics:     r.metrics,
		Archive:     r.archive,
		Synthesis:   r.synthesisOptions(h),
		CaptureCfg:  r.captureConfig(),
		TurnTimeout: r.cfg.TurnTimeout,
	})

	unsubscribe := forwardEvents(bus, engine, h.ID, outbound)
	defer unsubscribe()
	defer orchestrator.Destroy()

	for {
		select {
		case <-ctx.Done():
			r.finish(orchestrator, engine)
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				r.finish(orchestrator, engine)
				return nil
			}
			_ = r.sessions.Touch(h.ID)

			switch msg := raw.(type) {
			case protocol.ClientAudioChunk:
				if !engine.Active() {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(msg.PCM16Base64)
				if err != nil {
					sendAdvisory(outbound, protocol.ErrorEvent{
						Type:        protocol.TypeErrorEvent,
						SessionID:   h.ID,
						Code:        "invalid_audio_encoding",
						Recoverable: true,
						Detail:      err.Error(),
					})
					continue
				}
				if err := orchestrator.HandleAudioChunk(ctx, pcm); err != nil {
					log.Printf("session %s audio chunk: %v", h.ID, err)
				}
			case protocol.ClientControl:
				if err := r.handleControl(ctx, orchestrator, engine, h, msg); err != nil {
					sendAdvisory(outbound, protocol.ErrorEvent{
						Type:        protocol.TypeErrorEvent,
						SessionID:   h.ID,
						Code:        "control_failed",
						Recoverable: true,
						Detail:      err.Error(),
					})
				}
			}
		}
	}
}

func (r *Runner) handleControl(ctx context.Context, orchestrator *voice.Orchestrator, engine *dialog.Engine, h *session.Handle, msg protocol.ClientControl) error {
	switch msg.Action {
	case protocol.ActionStart:
		if engine.Active() {
			return fmt.Errorf("conversation already active")
		}
		lead, agent := sessionParties(h)
		return orchestrator.Start(ctx, lead, agent)
	case protocol.ActionEnd:
		if !engine.Active() {
			return fmt.Errorf("no active conversation")
		}
		_, err := orchestrator.End(ctx)
		return err
	case protocol.ActionMute:
		orchestrator.SetMuted(true)
		return nil
	case protocol.ActionUnmute:
		orchestrator.SetMuted(false)
		return nil
	case protocol.ActionSetVolume:
		orchestrator.SetVolume(msg.Value)
		return nil
	default:
		return fmt.Errorf("unknown control action %q", msg.Action)
	}
}

// finish closes out a still-active conversation so it is archived even
// when the client drops without sending an end control.
func (r *Runner) finish(orchestrator *voice.Orchestrator, engine *dialog.Engine) {
	if !engine.Active() {
		return
	}
	endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := orchestrator.End(endCtx); err != nil {
		log.Printf("conversation close on disconnect: %v", err)
	}
}

func (r *Runner) captureConfig() audio.CaptureConfig {
	cfg := audio.DefaultCaptureConfig()
	cfg.SampleRate = r.cfg.SampleRate
	cfg.FrameSize = r.cfg.FrameSize
	cfg.VAD = audio.VADConfig{
		EnergyThreshold:    r.cfg.VADEnergyThreshold,
		MinVoiceDuration:   time.Duration(r.cfg.VADMinVoiceMS) * time.Millisecond,
		MinSilenceDuration: time.Duration(r.cfg.VADMinSilenceMS) * time.Millisecond,
	}
	return cfg
}

func (r *Runner) synthesisOptions(h *session.Handle) voice.SynthesisOptions {
	voiceID := r.setup.defaultVoiceID
	if agent := h.Store.State().ActiveAgent; agent != nil && strings.TrimSpace(agent.VoiceID) != "" {
		voiceID = agent.VoiceID
	}
	return voice.SynthesisOptions{VoiceID: voiceID, ModelID: r.cfg.ElevenLabsTTSModel}
}

func sessionParties(h *session.Handle) (dialog.Context, dialog.Agent) {
	st := h.Store.State()
	lead := dialog.Context{LeadID: h.LeadID}
	if st.CurrentLead != nil {
		lead.LeadName = st.CurrentLead.Name
	}
	agent := dialog.Agent{ID: h.AgentID}
	if st.ActiveAgent != nil {
		agent.Name = st.ActiveAgent.Name
	}
	return lead, agent
}

// forwardEvents bridges the session bus onto the websocket. Handlers run
// synchronously on whichever goroutine publishes, which for every
// forwarded type is the connection's own loop, so reading the engine
// snapshot here is safe.
func forwardEvents(bus *events.Bus, engine *dialog.Engine, sessionID string, outbound chan<- any) func() {
	phase := func() string {
		if snap := engine.Snapshot(); snap != nil {
			return string(snap.Phase)
		}
		return ""
	}

	return bus.Subscribe(func(ev events.Event) {
		switch ev.Type {
		case events.TypeSpeechRecognized:
			payload, ok := ev.Payload.(map[string]any)
			if !ok {
				return
			}
			text, _ := payload["text"].(string)
			confidence, _ := payload["confidence"].(float64)
			sendAdvisory(outbound, protocol.Transcript{
				Type:       protocol.TypeTranscript,
				SessionID:  sessionID,
				Text:       text,
				Confidence: confidence,
				TSMs:       ev.Timestamp.UnixMilli(),
			})
		case events.TypeConversationTurn:
			turn, ok := ev.Payload.(dialog.Turn)
			if !ok || turn.Speaker != dialog.SpeakerAgent {
				return
			}
			sendAdvisory(outbound, protocol.AgentTurn{
				Type:      protocol.TypeAgentTurn,
				SessionID: sessionID,
				TurnID:    turn.ID,
				Text:      turn.Text,
				Phase:     phase(),
				Intent:    turn.Intent,
			})
		case events.TypeVoiceActivityStart, events.TypeVoiceActivityEnd:
			st, ok := ev.Payload.(audio.VADState)
			if !ok {
				return
			}
			sendAdvisory(outbound, protocol.VoiceActivity{
				Type:       protocol.TypeVoiceActivity,
				SessionID:  sessionID,
				Active:     ev.Type == events.TypeVoiceActivityStart,
				Confidence: st.Confidence,
				TSMs:       ev.Timestamp.UnixMilli(),
			})
		case events.TypeQualificationUpdated:
			q, ok := ev.Payload.(dialog.Qualification)
			if !ok {
				return
			}
			detail, err := json.Marshal(q)
			if err != nil {
				detail = nil
			}
			sendAdvisory(outbound, protocol.QualificationUpdate{
				Type:      protocol.TypeQualificationUpdate,
				SessionID: sessionID,
				Phase:     phase(),
				Score:     q.Score,
				Detail:    detail,
			})
		case events.TypeEmotionDetected:
			res, ok := ev.Payload.(voice.EmotionResult)
			if !ok {
				return
			}
			sendAdvisory(outbound, protocol.Emotion{
				Type:       protocol.TypeEmotion,
				SessionID:  sessionID,
				Emotion:    res.Emotion,
				Confidence: res.Confidence,
				Arousal:    res.Arousal,
				Valence:    res.Valence,
			})
		case events.TypeConversationStarted, events.TypeConversationEnded:
			sendAdvisory(outbound, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: sessionID,
				Code:      string(ev.Type),
			})
		case events.TypeError:
			ve, ok := ev.Payload.(*reliability.VoiceError)
			if !ok {
				return
			}
			sendAdvisory(outbound, protocol.ErrorEvent{
				Type:        protocol.TypeErrorEvent,
				SessionID:   sessionID,
				Code:        string(ve.Code),
				Recoverable: ve.Recoverable,
				Detail:      ve.Message,
			})
		}
	},
		events.TypeSpeechRecognized,
		events.TypeConversationTurn,
		events.TypeVoiceActivityStart,
		events.TypeVoiceActivityEnd,
		events.TypeQualificationUpdated,
		events.TypeEmotionDetected,
		events.TypeConversationStarted,
		events.TypeConversationEnded,
		events.TypeError,
	)
}

// sendAdvisory delivers a status frame without blocking the voice loop;
// a saturated writer drops it.
func sendAdvisory(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
	}
}
