package session

import (
	"time"

	"github.com/leadline-ai/leadline/internal/dialog"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/reliability"
)

// ConnectionStatus tracks the client transport state for a session.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// AgentProfile is the persona speaking for the system in this session.
type AgentProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// Lead identifies the prospect being qualified.
type Lead struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Source string `json:"source,omitempty"`
}

// State is the single shared session state. Every mutation replaces the
// whole value; readers never observe a partial update.
type State struct {
	Initialized  bool                            `json:"initialized"`
	Connection   ConnectionStatus                `json:"connection"`
	ActiveAgent  *AgentProfile                   `json:"active_agent,omitempty"`
	CurrentLead  *Lead                           `json:"current_lead,omitempty"`
	Conversation *dialog.Session                 `json:"conversation,omitempty"`
	AudioLevel   float64                         `json:"audio_level"`
	Muted        bool                            `json:"muted"`
	Metrics      observability.PerformanceReport `json:"metrics"`
	LastError    *reliability.VoiceError         `json:"last_error,omitempty"`
}

// Qualification returns the conversation's qualification data, zero when
// no conversation is active.
func (s State) Qualification() dialog.Qualification {
	if s.Conversation == nil {
		return dialog.Qualification{}
	}
	return s.Conversation.Qualification
}

// ConversationDuration is a pure derived read of the current conversation
// length.
func (s State) ConversationDuration(now time.Time) time.Duration {
	if s.Conversation == nil {
		return 0
	}
	if s.Conversation.Ended() {
		return s.Conversation.EndTime.Sub(s.Conversation.StartTime)
	}
	return now.Sub(s.Conversation.StartTime)
}
