package voice

import (
	"context"
	"testing"

	"github.com/leadline-ai/leadline/internal/audio"
	"github.com/leadline-ai/leadline/internal/dialog"
	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/session"
)

type recordingSink struct {
	plays int
	bytes int
}

func (r *recordingSink) Play(_ context.Context, pcm []byte, _ int) error {
	r.plays++
	r.bytes += len(pcm)
	return nil
}

type memoryArchive struct {
	archived []*dialog.Session
}

func (m *memoryArchive) ArchiveConversation(_ context.Context, s *dialog.Session) error {
	m.archived = append(m.archived, s)
	return nil
}

func testOrchestrator(t *testing.T, script ...string) (*Orchestrator, *session.Store, *recordingSink, *memoryArchive) {
	t.Helper()

	bus := events.NewBus()
	store := session.NewStore(0)
	sink := &recordingSink{}
	archive := &memoryArchive{}
	provider := NewMockProvider(script...)

	gateway := NewGateway(GatewayConfig{
		STT:       provider,
		TTS:       provider,
		Sink:      sink,
		Bus:       bus,
		SessionID: "s1",
	})

	cfg := audio.DefaultCaptureConfig()
	cfg.FrameSize = 1600 // 100ms frames keep the test fast

	o := NewOrchestrator(OrchestratorConfig{
		Gateway:    gateway,
		Capture:    audio.NewCapture(bus, "s1"),
		Engine:     dialog.NewEngine(bus),
		Store:      store,
		Archive:    archive,
		Synthesis:  SynthesisOptions{VoiceID: "mock-avery"},
		CaptureCfg: cfg,
	})
	return o, store, sink, archive
}

func voiceChunk(seconds float64) []byte {
	n := int(seconds * float64(audio.DefaultSampleRate))
	return audio.EncodePCM16LE(audio.Sine(220, 0.5, n, audio.DefaultSampleRate))
}

func silenceChunk(seconds float64) []byte {
	n := int(seconds * float64(audio.DefaultSampleRate))
	return audio.EncodePCM16LE(make([]float64, n))
}

func TestOrchestratorStartSpeaksOpeningLine(t *testing.T) {
	o, store, sink, _ := testOrchestrator(t)

	err := o.Start(context.Background(), dialog.Context{LeadID: "lead-1", LeadName: "Sam"}, dialog.Agent{ID: "a1", Name: "Avery"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	st := store.State()
	if !st.Initialized {
		t.Fatalf("store not marked initialized")
	}
	if st.Conversation == nil || len(st.Conversation.Turns) != 1 {
		t.Fatalf("conversation = %+v, want one opening turn", st.Conversation)
	}
	if sink.plays != 1 || sink.bytes == 0 {
		t.Fatalf("opening line not played: plays=%d bytes=%d", sink.plays, sink.bytes)
	}
}

func TestOrchestratorRunsFullTurnOnUtteranceEnd(t *testing.T) {
	o, store, sink, _ := testOrchestrator(t, "My budget is $450k")

	if err := o.Start(context.Background(), dialog.Context{LeadID: "lead-1"}, dialog.Agent{ID: "a1", Name: "Avery"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Half a second of voice confirms activity; a second of silence ends it.
	if err := o.HandleAudioChunk(context.Background(), voiceChunk(0.5)); err != nil {
		t.Fatalf("voice chunk error = %v", err)
	}
	if err := o.HandleAudioChunk(context.Background(), silenceChunk(1.0)); err != nil {
		t.Fatalf("silence chunk error = %v", err)
	}

	st := store.State()
	if st.Conversation == nil || len(st.Conversation.Turns) != 3 {
		t.Fatalf("turns = %+v, want opening + user + agent", st.Conversation)
	}
	if st.Conversation.Qualification.Budget == nil || st.Conversation.Qualification.Budget.Max != 450000 {
		t.Fatalf("budget = %+v, want Max 450000", st.Conversation.Qualification.Budget)
	}
	if st.Metrics.Successes == 0 {
		t.Fatalf("gateway metrics not mirrored into session state: %+v", st.Metrics)
	}
	if st.Metrics.AvgProcessingMS <= 0 {
		t.Fatalf("dialogue span not recorded for the turn: %+v", st.Metrics)
	}
	if sink.plays != 2 {
		t.Fatalf("plays = %d, want opening line plus turn reply", sink.plays)
	}
}

func TestUtteranceIncludesOnsetBeforeActivityConfirms(t *testing.T) {
	bus := events.NewBus()
	store := session.NewStore(0)
	stt := &scriptedSTT{result: TranscriptionResult{Text: "I'm looking in Austin", Confidence: 0.9}}
	tts := &scriptedTTS{audio: []byte{1, 2, 3, 4}}

	gateway := NewGateway(GatewayConfig{STT: stt, TTS: tts, Sink: &recordingSink{}, Bus: bus, SessionID: "s1"})

	cfg := audio.DefaultCaptureConfig()
	cfg.FrameSize = 1600

	o := NewOrchestrator(OrchestratorConfig{
		Gateway:    gateway,
		Capture:    audio.NewCapture(bus, "s1"),
		Engine:     dialog.NewEngine(bus),
		Store:      store,
		Archive:    &memoryArchive{},
		Synthesis:  SynthesisOptions{VoiceID: "v1"},
		CaptureCfg: cfg,
	})

	if err := o.Start(context.Background(), dialog.Context{LeadID: "lead-1"}, dialog.Agent{ID: "a1", Name: "Avery"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The rising edge confirms partway through the second chunk, after the
	// hysteresis window. The transcribed utterance must still carry the
	// speech from the first chunk.
	if err := o.HandleAudioChunk(context.Background(), voiceChunk(0.2)); err != nil {
		t.Fatalf("onset chunk error = %v", err)
	}
	if err := o.HandleAudioChunk(context.Background(), voiceChunk(0.4)); err != nil {
		t.Fatalf("voice chunk error = %v", err)
	}
	if err := o.HandleAudioChunk(context.Background(), silenceChunk(1.0)); err != nil {
		t.Fatalf("silence chunk error = %v", err)
	}

	if stt.calls != 1 {
		t.Fatalf("transcriptions = %d, want 1", stt.calls)
	}
	wantBytes := int(1.6*float64(audio.DefaultSampleRate)) * 2
	if stt.lastPCMLen != wantBytes {
		t.Fatalf("utterance = %d bytes, want %d including the onset", stt.lastPCMLen, wantBytes)
	}
}

func TestOrchestratorMutedAudioProducesNoTurn(t *testing.T) {
	o, store, sink, _ := testOrchestrator(t, "should never surface")

	if err := o.Start(context.Background(), dialog.Context{LeadID: "lead-1"}, dialog.Agent{ID: "a1", Name: "Avery"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	o.SetMuted(true)

	if err := o.HandleAudioChunk(context.Background(), voiceChunk(0.5)); err != nil {
		t.Fatalf("voice chunk error = %v", err)
	}
	if err := o.HandleAudioChunk(context.Background(), silenceChunk(1.0)); err != nil {
		t.Fatalf("silence chunk error = %v", err)
	}

	st := store.State()
	if !st.Muted {
		t.Fatalf("mute not mirrored into session state")
	}
	if len(st.Conversation.Turns) != 1 {
		t.Fatalf("turns = %d, muted audio must not produce a turn", len(st.Conversation.Turns))
	}
	if sink.plays != 1 {
		t.Fatalf("plays = %d, want only the opening line", sink.plays)
	}
}

func TestOrchestratorEndArchivesConversation(t *testing.T) {
	o, store, _, archive := testOrchestrator(t, "My budget is $450k")

	if err := o.Start(context.Background(), dialog.Context{LeadID: "lead-1"}, dialog.Agent{ID: "a1", Name: "Avery"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.HandleAudioChunk(context.Background(), voiceChunk(0.5)); err != nil {
		t.Fatalf("voice chunk error = %v", err)
	}
	if err := o.HandleAudioChunk(context.Background(), silenceChunk(1.0)); err != nil {
		t.Fatalf("silence chunk error = %v", err)
	}

	final, err := o.End(context.Background())
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if !final.Ended() {
		t.Fatalf("final session missing end time")
	}
	if len(archive.archived) != 1 || archive.archived[0].ID != final.ID {
		t.Fatalf("archived = %+v, want the final session", archive.archived)
	}
	if store.State().Conversation == nil || !store.State().Conversation.Ended() {
		t.Fatalf("store not holding the ended conversation")
	}

	if _, err := o.End(context.Background()); err == nil {
		t.Fatalf("second End should fail")
	}
}
