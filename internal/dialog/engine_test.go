package dialog

import (
	"errors"
	"testing"
	"time"

	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/reliability"
)

func startedEngine(t *testing.T, bus *events.Bus) *Engine {
	t.Helper()
	e := NewEngine(bus)
	if _, err := e.StartConversation(Context{LeadID: "lead-1", LeadName: "Sam"}, Agent{ID: "agent-1", Name: "Avery"}); err != nil {
		t.Fatalf("StartConversation() error = %v", err)
	}
	return e
}

func TestStartConversationRecordsOpeningTurn(t *testing.T) {
	bus := events.NewBus()
	var started, turns int
	bus.Subscribe(func(events.Event) { started++ }, events.TypeConversationStarted)
	bus.Subscribe(func(events.Event) { turns++ }, events.TypeConversationTurn)

	e := startedEngine(t, bus)
	s := e.Snapshot()
	if s.Phase != PhaseGreeting {
		t.Fatalf("phase = %s, want greeting", s.Phase)
	}
	if len(s.Turns) != 1 || s.Turns[0].Speaker != SpeakerAgent {
		t.Fatalf("turns = %+v, want one agent opening turn", s.Turns)
	}
	if s.Turns[0].Text == "" {
		t.Fatalf("opening line is empty")
	}
	if started != 1 || turns != 1 {
		t.Fatalf("events started/turns = %d/%d, want 1/1", started, turns)
	}
}

func TestProcessUserInputBeforeStartIsCallerError(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.ProcessUserInput("hello", 0.9)
	if err == nil {
		t.Fatalf("expected error before StartConversation")
	}
	var ve *reliability.VoiceError
	if !errors.As(err, &ve) || ve.Code != reliability.CodeCallerMisuse {
		t.Fatalf("error = %v, want CALLER_MISUSE", err)
	}
	if ve.Recoverable {
		t.Fatalf("caller misuse must not be recoverable")
	}
}

func TestProcessUserInputEndToEnd(t *testing.T) {
	e := startedEngine(t, nil)

	res, err := e.ProcessUserInput("Hi, I'm looking for a 2 bedroom condo under $500k in Capitol Hill", 0.92)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	if res.Phase != PhaseQualification {
		t.Fatalf("phase = %s, want qualification", res.Phase)
	}
	if got := res.Intent.Entities[EntityBudget]; len(got) != 1 || got[0] != "500000" {
		t.Fatalf("budget entities = %v, want [500000]", got)
	}
	if got := res.Intent.Entities[EntityRooms]; len(got) != 1 || got[0] != "2 bed" {
		t.Fatalf("room entities = %v, want [2 bed]", got)
	}
	if got := res.Intent.Entities[EntityLocation]; len(got) != 1 || got[0] != "Capitol Hill" {
		t.Fatalf("location entities = %v, want [Capitol Hill]", got)
	}
	if res.Score <= 0 {
		t.Fatalf("qualification score = %v, want > 0", res.Score)
	}
	if res.AgentTurn.Text == "" {
		t.Fatalf("no agent response generated")
	}

	s := e.Snapshot()
	if len(s.Turns) != 3 {
		t.Fatalf("turns = %d, want 3 (opening + user + agent)", len(s.Turns))
	}
	if s.Qualification.Budget == nil || s.Qualification.Budget.Max != 500000 {
		t.Fatalf("budget dimension = %+v, want Max 500000", s.Qualification.Budget)
	}
	if s.Qualification.Location == nil || len(s.Qualification.Location.Preferred) == 0 {
		t.Fatalf("location dimension missing: %+v", s.Qualification.Location)
	}
	if s.Qualification.PropertyType == nil {
		t.Fatalf("property dimension missing")
	}
}

func TestQualificationScoreIsMeanOfPresentDimensions(t *testing.T) {
	e := startedEngine(t, nil)

	res, err := e.ProcessUserInput("My budget is $450k", 0.9)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	scoreAfterBudget := res.Score
	if scoreAfterBudget != 90 {
		t.Fatalf("score with budget only = %v, want 90", scoreAfterBudget)
	}

	// Adding another high-confidence dimension never drives the score
	// below the unweighted mean of all present dimensions.
	res, err = e.ProcessUserInput("We need to move asap", 0.9)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	s := e.Snapshot()
	mean := (s.Qualification.Budget.Confidence + s.Qualification.Timeline.Confidence) / 2 * 100
	if res.Score < mean-1e-9 || res.Score > mean+1e-9 {
		t.Fatalf("score = %v, want mean %v", res.Score, mean)
	}
}

func TestObjectionEntersObjectionHandling(t *testing.T) {
	e := startedEngine(t, nil)

	res, err := e.ProcessUserInput("Honestly that's too expensive, I need to think about it", 0.8)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	if res.Phase != PhaseObjectionHandling {
		t.Fatalf("phase = %s, want objection_handling", res.Phase)
	}
	s := e.Snapshot()
	if len(s.Analytics.Objections) != 1 {
		t.Fatalf("objections = %v, want the raw objection text recorded", s.Analytics.Objections)
	}
}

func TestRepeatedObjectionRecordedOnce(t *testing.T) {
	e := startedEngine(t, nil)

	for i := 0; i < 2; i++ {
		if _, err := e.ProcessUserInput("That's too expensive for us", 0.8); err != nil {
			t.Fatalf("ProcessUserInput() error = %v", err)
		}
	}

	s := e.Snapshot()
	if len(s.Analytics.Objections) != 1 {
		t.Fatalf("objections = %v, want the repeated objection collapsed to one entry", s.Analytics.Objections)
	}
}

func TestClosingSignalEntersClosing(t *testing.T) {
	e := startedEngine(t, nil)

	res, err := e.ProcessUserInput("Sounds good, can we schedule a viewing?", 0.8)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	if res.Phase != PhaseClosing {
		t.Fatalf("phase = %s, want closing", res.Phase)
	}
	s := e.Snapshot()
	if len(s.Analytics.NextSteps) == 0 {
		t.Fatalf("no next steps recorded on closing signal")
	}
}

func TestTalkTimeRatioAndTopics(t *testing.T) {
	e := startedEngine(t, nil)

	if _, err := e.ProcessUserInput("My budget is $450k", 0.9); err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	s := e.Snapshot()
	// Opening + agent reply out of 3 turns total.
	if want := 2.0 / 3.0; s.Analytics.TalkTimeRatio != want {
		t.Fatalf("talk time ratio = %v, want %v", s.Analytics.TalkTimeRatio, want)
	}
	if len(s.Analytics.KeyTopics) == 0 {
		t.Fatalf("no key topics recorded")
	}
}

func TestInterruptionHeuristic(t *testing.T) {
	e := startedEngine(t, nil)

	base := time.Now()
	e.now = func() time.Time { return base }

	// User speaks immediately after the agent turn: counted as interruption.
	if _, err := e.ProcessUserInput("wait, hold on", 0.9); err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	s := e.Snapshot()
	if s.Analytics.InterruptionCount == 0 {
		t.Fatalf("immediate user turn not counted as interruption")
	}

	// After a comfortable pause the next turn is not an interruption.
	count := s.Analytics.InterruptionCount
	e.now = func() time.Time { return base.Add(10 * time.Second) }
	if _, err := e.ProcessUserInput("anyway, about the house", 0.9); err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	if got := e.Snapshot().Analytics.InterruptionCount; got != count {
		t.Fatalf("interruptions = %d, want unchanged %d", got, count)
	}
}

func TestEndConversation(t *testing.T) {
	bus := events.NewBus()
	ended := 0
	bus.Subscribe(func(events.Event) { ended++ }, events.TypeConversationEnded)

	e := startedEngine(t, bus)
	if _, err := e.ProcessUserInput("My budget is $450k", 0.9); err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	final, err := e.EndConversation()
	if err != nil {
		t.Fatalf("EndConversation() error = %v", err)
	}
	if !final.Ended() {
		t.Fatalf("final session has no end time")
	}
	if !final.Analytics.FollowUpRequired {
		t.Fatalf("conversation ended before closing should require follow-up")
	}
	if ended != 1 {
		t.Fatalf("conversation_ended events = %d, want 1", ended)
	}

	if _, err := e.ProcessUserInput("hello?", 0.9); err == nil {
		t.Fatalf("ProcessUserInput after end should fail")
	}
	if _, err := e.EndConversation(); err == nil {
		t.Fatalf("second EndConversation should fail")
	}
	if e.Active() {
		t.Fatalf("engine still active after end")
	}
}

func TestEmptyInputDegradesToGeneralIntent(t *testing.T) {
	e := startedEngine(t, nil)

	res, err := e.ProcessUserInput("", 0)
	if err != nil {
		t.Fatalf("empty input should degrade, got error %v", err)
	}
	if res.Intent.Name != IntentGeneral || res.Intent.Confidence != 0.5 {
		t.Fatalf("intent = %s@%v, want general_inquiry@0.5", res.Intent.Name, res.Intent.Confidence)
	}
	if res.Phase != PhaseDiscovery {
		t.Fatalf("phase = %s, want discovery after first input", res.Phase)
	}
}
