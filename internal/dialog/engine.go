package dialog

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadline-ai/leadline/internal/events"
	"github.com/leadline-ai/leadline/internal/reliability"
)

var errNoActiveConversation = errors.New("no active conversation")

// A user turn landing this soon after the agent's line is counted as an
// interruption. Turn-order adjacency only; no audio overlap detection.
const interruptionWindow = 1200 * time.Millisecond

// Result summarizes one ProcessUserInput call.
type Result struct {
	UserTurn  Turn
	AgentTurn Turn
	Intent    Intent
	Phase     Phase
	Score     float64
}

// Engine is the per-session dialogue state machine. It owns the mutation
// logic only; the canonical session copy lives in the session store.
//
// Calls on the same Engine must be serialized by the caller: ProcessUserInput
// is not reentrant-safe and no internal queue is provided.
type Engine struct {
	bus *events.Bus
	rng *rand.Rand
	now func() time.Time

	session   *Session
	addressed map[string]bool
}

func NewEngine(bus *events.Bus) *Engine {
	return &Engine{
		bus: bus,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// StartConversation opens a session in the greeting phase and records the
// opening line as the first turn.
func (e *Engine) StartConversation(lead Context, agent Agent) (*Session, error) {
	if e.session != nil && !e.session.Ended() {
		return nil, reliability.Classify(reliability.CodeCallerMisuse, errors.New("conversation already active"))
	}

	now := e.now().UTC()
	e.session = &Session{
		ID:        uuid.NewString(),
		LeadID:    lead.LeadID,
		AgentID:   agent.ID,
		StartTime: now,
		Phase:     PhaseGreeting,
	}
	e.addressed = make(map[string]bool)

	opening := pickOpeningLine(e.rng, lead.LeadName, agent.Name)
	e.appendTurn(Turn{
		ID:        uuid.NewString(),
		Timestamp: now,
		Speaker:   SpeakerAgent,
		Text:      opening,
	})

	e.publish(events.TypeConversationStarted, e.snapshot())
	return e.snapshot(), nil
}

// ProcessUserInput runs one dialogue step: classify the utterance, advance
// the phase, generate the agent reply, and recompute qualification and
// analytics. Malformed or empty text degrades to the default intent rather
// than failing; calling before StartConversation is a caller error.
func (e *Engine) ProcessUserInput(text string, confidence float64) (Result, error) {
	if e.session == nil || e.session.Ended() {
		return Result{}, reliability.Classify(reliability.CodeCallerMisuse, errNoActiveConversation)
	}

	now := e.now().UTC()

	userTurn := Turn{
		ID:         uuid.NewString(),
		Timestamp:  now,
		Speaker:    SpeakerUser,
		Text:       text,
		Confidence: confidence,
		Sentiment:  classifySentiment(text),
	}

	intent := ClassifyIntent(text)
	userTurn.Intent = intent.Name
	userTurn.Entities = intent.Entities

	e.recordInterruption(now)
	e.appendTurn(userTurn)
	e.publish(events.TypeIntentDetected, intent)

	e.updatePhase(intent, text)

	agentTurn := Turn{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		Speaker:   SpeakerAgent,
		Text:      pickResponse(e.rng, intent.Name, intent.Entities),
		Intent:    intent.Name,
	}
	e.appendTurn(agentTurn)

	e.session.Qualification.Score = e.computeScore()
	e.updateAnalytics(intent)
	e.publish(events.TypeQualificationUpdated, e.session.Qualification)

	return Result{
		UserTurn:  userTurn,
		AgentTurn: agentTurn,
		Intent:    intent,
		Phase:     e.session.Phase,
		Score:     e.session.Qualification.Score,
	}, nil
}

// EndConversation stamps the end time, emits the final context and clears
// working state.
func (e *Engine) EndConversation() (*Session, error) {
	if e.session == nil || e.session.Ended() {
		return nil, reliability.Classify(reliability.CodeCallerMisuse, errNoActiveConversation)
	}

	now := e.now().UTC()
	e.session.EndTime = now
	e.session.Analytics.Duration = now.Sub(e.session.StartTime)

	if e.session.Phase != PhaseClosing {
		e.session.Analytics.FollowUpRequired = true
		e.addNextStep("follow-up call")
		e.session.Phase = PhaseFollowUp
	}

	final := e.snapshot()
	e.publish(events.TypeConversationEnded, final)

	e.session = nil
	e.addressed = nil
	return final, nil
}

// Active reports whether a conversation is in progress.
func (e *Engine) Active() bool {
	return e.session != nil && !e.session.Ended()
}

// Snapshot returns a copy of the current session, nil when none is active.
func (e *Engine) Snapshot() *Session {
	if e.session == nil {
		return nil
	}
	return e.snapshot()
}

func (e *Engine) appendTurn(t Turn) {
	e.session.Turns = append(e.session.Turns, t)
	e.publish(events.TypeConversationTurn, t)
}

func (e *Engine) updatePhase(intent Intent, rawText string) {
	s := e.session
	switch intent.Name {
	case IntentBudget:
		s.Phase = PhaseQualification
		e.addressed["budget"] = true
		e.updateBudget(intent)
	case IntentTimeline:
		s.Phase = PhaseQualification
		e.addressed["timeline"] = true
		e.updateTimeline(intent)
	case IntentLocation:
		s.Phase = PhaseQualification
		e.addressed["location"] = true
		e.updateLocation(intent)
	case IntentPropertyType:
		s.Phase = PhaseQualification
		e.addressed["property_type"] = true
		e.updatePropertyType(intent)
	case IntentObjection:
		s.Phase = PhaseObjectionHandling
		s.Analytics.Objections = appendUnique(s.Analytics.Objections, strings.TrimSpace(rawText))
	case IntentClosingSignal:
		s.Phase = PhaseClosing
		e.addNextStep("schedule property tour")
	case IntentGreeting:
		if s.Phase == PhaseGreeting {
			s.Phase = PhaseDiscovery
		}
	default:
		switch {
		case s.Phase == PhaseGreeting:
			s.Phase = PhaseDiscovery
		case s.Phase == PhaseQualification && len(e.addressed) >= 4:
			s.Phase = PhasePresentation
		}
	}

	// Secondary entities still enrich dimensions the primary intent
	// did not own, e.g. a location mentioned inside a budget phrase.
	if len(intent.Entities[EntityLocation]) > 0 && intent.Name != IntentLocation {
		e.addressed["location"] = true
		e.updateLocation(intent)
	}
	if len(intent.Entities[EntityPropertyType])+len(intent.Entities[EntityRooms]) > 0 && intent.Name != IntentPropertyType {
		e.addressed["property_type"] = true
		e.updatePropertyType(intent)
	}
}

func (e *Engine) updateBudget(intent Intent) {
	q := &e.session.Qualification
	conf := dimensionConfidence(intent, EntityBudget)
	amounts := parsedAmounts(intent.Entities[EntityBudget])

	b := q.Budget
	if b == nil {
		b = &BudgetRange{}
		q.Budget = b
	}
	switch len(amounts) {
	case 0:
	case 1:
		b.Max = amounts[0]
	default:
		b.Min, b.Max = amounts[0], amounts[0]
		for _, a := range amounts[1:] {
			if a < b.Min {
				b.Min = a
			}
			if a > b.Max {
				b.Max = a
			}
		}
	}
	if conf > b.Confidence {
		b.Confidence = conf
	}
}

func (e *Engine) updateTimeline(intent Intent) {
	q := &e.session.Qualification
	conf := dimensionConfidence(intent, EntityTimeline)

	t := q.Timeline
	if t == nil {
		t = &Timeline{Urgency: "unspecified"}
		q.Timeline = t
	}
	if vals := intent.Entities[EntityTimeline]; len(vals) > 0 {
		t.Urgency = vals[0]
	}
	if conf > t.Confidence {
		t.Confidence = conf
	}
}

func (e *Engine) updateLocation(intent Intent) {
	q := &e.session.Qualification
	conf := dimensionConfidence(intent, EntityLocation)

	l := q.Location
	if l == nil {
		l = &LocationPreference{Flexibility: "unknown"}
		q.Location = l
	}
	for _, v := range intent.Entities[EntityLocation] {
		l.Preferred = appendUnique(l.Preferred, v)
	}
	if conf > l.Confidence {
		l.Confidence = conf
	}
}

func (e *Engine) updatePropertyType(intent Intent) {
	q := &e.session.Qualification
	conf := dimensionConfidence(intent, EntityPropertyType)
	if conf < dimensionConfidence(intent, EntityRooms) {
		conf = dimensionConfidence(intent, EntityRooms)
	}

	p := q.PropertyType
	if p == nil {
		p = &PropertyPreference{}
		q.PropertyType = p
	}
	if vals := intent.Entities[EntityPropertyType]; len(vals) > 0 {
		p.Type = vals[0]
	}
	for _, v := range intent.Entities[EntityRooms] {
		p.Features = appendUnique(p.Features, v)
	}
	if conf > p.Confidence {
		p.Confidence = conf
	}
}

// computeScore derives the 0-100 qualification score as the mean of the
// confidences present across the four dimensions.
func (e *Engine) computeScore() float64 {
	q := e.session.Qualification
	sum, n := 0.0, 0
	if q.Budget != nil {
		sum += q.Budget.Confidence
		n++
	}
	if q.Timeline != nil {
		sum += q.Timeline.Confidence
		n++
	}
	if q.Location != nil {
		sum += q.Location.Confidence
		n++
	}
	if q.PropertyType != nil {
		sum += q.PropertyType.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) * 100
}

func (e *Engine) updateAnalytics(intent Intent) {
	s := e.session
	a := &s.Analytics

	now := e.now().UTC()
	a.Duration = now.Sub(s.StartTime)

	agentTurns := 0
	for _, t := range s.Turns {
		if t.Speaker == SpeakerAgent {
			agentTurns++
		}
	}
	a.TalkTimeRatio = float64(agentTurns) / float64(len(s.Turns))

	if intent.Name != IntentGeneral {
		a.KeyTopics = appendUnique(a.KeyTopics, intent.Name)
	}
	for key := range intent.Entities {
		a.KeyTopics = appendUnique(a.KeyTopics, key)
	}

	engagement := float64(len(a.KeyTopics))*15 + float64(len(s.Turns)-agentTurns)*5
	if engagement > 100 {
		engagement = 100
	}
	if engagement > a.EngagementScore {
		a.EngagementScore = engagement
	}
}

// recordInterruption applies the turn-order heuristic: a user turn landing
// right after the agent's line counts as an interruption.
func (e *Engine) recordInterruption(now time.Time) {
	turns := e.session.Turns
	if len(turns) == 0 {
		return
	}
	last := turns[len(turns)-1]
	if last.Speaker == SpeakerAgent && now.Sub(last.Timestamp) < interruptionWindow {
		e.session.Analytics.InterruptionCount++
	}
}

func (e *Engine) addNextStep(step string) {
	e.session.Analytics.NextSteps = appendUnique(e.session.Analytics.NextSteps, step)
}

func (e *Engine) publish(t events.Type, payload any) {
	if e.bus == nil {
		return
	}
	sessionID := ""
	if e.session != nil {
		sessionID = e.session.ID
	} else if s, ok := payload.(*Session); ok {
		sessionID = s.ID
	}
	e.bus.Publish(events.Event{Type: t, SessionID: sessionID, Payload: payload})
}

func (e *Engine) snapshot() *Session {
	c := *e.session
	c.Turns = append([]Turn(nil), e.session.Turns...)
	c.Analytics.KeyTopics = append([]string(nil), e.session.Analytics.KeyTopics...)
	c.Analytics.Objections = append([]string(nil), e.session.Analytics.Objections...)
	c.Analytics.NextSteps = append([]string(nil), e.session.Analytics.NextSteps...)
	q := e.session.Qualification
	if q.Budget != nil {
		b := *q.Budget
		c.Qualification.Budget = &b
	}
	if q.Timeline != nil {
		t := *q.Timeline
		c.Qualification.Timeline = &t
	}
	if q.Location != nil {
		l := *q.Location
		l.Preferred = append([]string(nil), q.Location.Preferred...)
		c.Qualification.Location = &l
	}
	if q.PropertyType != nil {
		p := *q.PropertyType
		p.Features = append([]string(nil), q.PropertyType.Features...)
		c.Qualification.PropertyType = &p
	}
	return &c
}

func dimensionConfidence(intent Intent, entityKey string) float64 {
	if len(intent.Entities[entityKey]) > 0 {
		return intent.Confidence
	}
	return 0.5
}

func parsedAmounts(values []string) []int64 {
	out := make([]int64, 0, len(values))
	for _, v := range values {
		if amount, ok := parseMoney(v, ""); ok {
			out = append(out, amount)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

var (
	positiveWords = []string{"great", "love", "perfect", "excited", "awesome", "wonderful", "yes"}
	negativeWords = []string{"expensive", "worried", "hate", "frustrated", "bad", "no ", "not "}
)

func classifySentiment(text string) string {
	lower := " " + strings.ToLower(text) + " "
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}
