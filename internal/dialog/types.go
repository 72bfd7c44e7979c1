package dialog

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Phase is the dialogue state machine position. Transitions are
// intent-driven, not turn-count-driven.
type Phase string

const (
	PhaseGreeting          Phase = "greeting"
	PhaseDiscovery         Phase = "discovery"
	PhaseQualification     Phase = "qualification"
	PhasePresentation      Phase = "presentation"
	PhaseObjectionHandling Phase = "objection_handling"
	PhaseClosing           Phase = "closing"
	PhaseFollowUp          Phase = "follow_up"
)

// Turn is one utterance by either party. Created once, never mutated.
type Turn struct {
	ID         string              `json:"id"`
	Timestamp  time.Time           `json:"timestamp"`
	Speaker    Speaker             `json:"speaker"`
	Text       string              `json:"text"`
	Confidence float64             `json:"confidence,omitempty"`
	Intent     string              `json:"intent,omitempty"`
	Entities   map[string][]string `json:"entities,omitempty"`
	Sentiment  string              `json:"sentiment,omitempty"`
}

// Intent is the transient classification of one user utterance.
type Intent struct {
	Name       string              `json:"name"`
	Confidence float64             `json:"confidence"`
	Entities   map[string][]string `json:"entities,omitempty"`
	Domain     string              `json:"domain"`
}

// BudgetRange captures a lead's stated budget.
type BudgetRange struct {
	Min        int64   `json:"min"`
	Max        int64   `json:"max"`
	Confidence float64 `json:"confidence"`
}

// Timeline captures purchase urgency.
type Timeline struct {
	Urgency    string  `json:"urgency"`
	Confidence float64 `json:"confidence"`
}

// LocationPreference captures where the lead wants to buy.
type LocationPreference struct {
	Preferred   []string `json:"preferred"`
	Flexibility string   `json:"flexibility"`
	Confidence  float64  `json:"confidence"`
}

// PropertyPreference captures the desired property type and features.
type PropertyPreference struct {
	Type       string   `json:"type"`
	Features   []string `json:"features"`
	Confidence float64  `json:"confidence"`
}

// Qualification aggregates per-dimension lead data. Score is derived from
// the dimension confidences after every turn, never set directly.
type Qualification struct {
	Score         float64             `json:"score"`
	Budget        *BudgetRange        `json:"budget,omitempty"`
	Timeline      *Timeline           `json:"timeline,omitempty"`
	Location      *LocationPreference `json:"location,omitempty"`
	PropertyType  *PropertyPreference `json:"property_type,omitempty"`
	Motivation    string              `json:"motivation,omitempty"`
	DecisionMaker bool                `json:"decision_maker"`
}

// Analytics accumulates conversation-level measurements. Element counts
// only grow over the session lifetime.
type Analytics struct {
	Duration          time.Duration `json:"duration"`
	TalkTimeRatio     float64       `json:"talk_time_ratio"`
	InterruptionCount int           `json:"interruption_count"`
	KeyTopics         []string      `json:"key_topics"`
	Objections        []string      `json:"objections"`
	EngagementScore   float64       `json:"engagement_score"`
	NextSteps         []string      `json:"next_steps"`
	FollowUpRequired  bool          `json:"follow_up_required"`
}

// Session is one conversation: append-only turns while active, immutable
// once EndTime is set.
type Session struct {
	ID            string        `json:"id"`
	LeadID        string        `json:"lead_id"`
	AgentID       string        `json:"agent_id"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time,omitzero"`
	Phase         Phase         `json:"phase"`
	Turns         []Turn        `json:"turns"`
	Qualification Qualification `json:"qualification"`
	Analytics     Analytics     `json:"analytics"`
}

// Ended reports whether the session has been closed.
func (s *Session) Ended() bool { return !s.EndTime.IsZero() }

// Context identifies the lead being qualified.
type Context struct {
	LeadID   string
	LeadName string
}

// Agent identifies the persona speaking for the system.
type Agent struct {
	ID   string
	Name string
}
