package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leadline-ai/leadline/internal/dialog"
)

// InMemoryStore is an in-process archive for local/dev use.
type InMemoryStore struct {
	mu     sync.RWMutex
	byLead map[string][]ConversationRecord
	byConv map[string][]dialog.Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byLead: make(map[string][]ConversationRecord),
		byConv: make(map[string][]dialog.Turn),
	}
}

func (s *InMemoryStore) ArchiveConversation(_ context.Context, conv *dialog.Session) error {
	if conv == nil {
		return fmt.Errorf("nil conversation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := ConversationRecord{
		ID:            conv.ID,
		LeadID:        conv.LeadID,
		AgentID:       conv.AgentID,
		Phase:         string(conv.Phase),
		Score:         conv.Qualification.Score,
		TurnCount:     len(conv.Turns),
		Duration:      conv.Analytics.Duration,
		StartedAt:     conv.StartTime,
		EndedAt:       conv.EndTime,
		Qualification: conv.Qualification,
	}

	// Re-archiving the same conversation replaces the earlier record.
	existing := s.byLead[conv.LeadID]
	replaced := false
	for i, r := range existing {
		if r.ID == conv.ID {
			existing[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		s.byLead[conv.LeadID] = append(existing, record)
	}
	s.byConv[conv.ID] = append([]dialog.Turn(nil), conv.Turns...)
	return nil
}

func (s *InMemoryStore) RecentConversations(_ context.Context, leadID string, limit int) ([]ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arr := s.byLead[leadID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]ConversationRecord, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) ConversationTurns(_ context.Context, conversationID string) ([]dialog.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.byConv[conversationID]
	if !ok {
		return nil, nil
	}
	out := make([]dialog.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func durationFromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
