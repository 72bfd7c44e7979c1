package memory

import (
	"context"
	"time"

	"github.com/leadline-ai/leadline/internal/dialog"
)

// ConversationRecord is an archived conversation summary row.
type ConversationRecord struct {
	ID            string               `json:"id"`
	LeadID        string               `json:"lead_id"`
	AgentID       string               `json:"agent_id"`
	Phase         string               `json:"phase"`
	Score         float64              `json:"score"`
	TurnCount     int                  `json:"turn_count"`
	Duration      time.Duration        `json:"duration"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       time.Time            `json:"ended_at"`
	Qualification dialog.Qualification `json:"qualification"`
}

// Store persists finished conversations and their turns for lead history.
type Store interface {
	ArchiveConversation(ctx context.Context, s *dialog.Session) error
	RecentConversations(ctx context.Context, leadID string, limit int) ([]ConversationRecord, error)
	ConversationTurns(ctx context.Context, conversationID string) ([]dialog.Turn, error)
	Close() error
}
