package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks a registered session's lifecycle.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Handle is one registered voice session: identity plus its state store.
type Handle struct {
	ID             string    `json:"session_id"`
	LeadID         string    `json:"lead_id"`
	AgentID        string    `json:"agent_id"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	Store *Store `json:"-"`
}

// Manager registers sessions, owns their stores, and expires inactive
// ones via the janitor.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Handle
	inactivityTimeout time.Duration
	errorGrace        time.Duration
	onExpire          func(*Handle)
}

func NewManager(inactivityTimeout, errorGrace time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Handle),
		inactivityTimeout: inactivityTimeout,
		errorGrace:        errorGrace,
	}
}

func (m *Manager) SetExpireHook(hook func(*Handle)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a session with a fresh state store.
func (m *Manager) Create(leadID, agentID string) *Handle {
	now := time.Now().UTC()
	h := &Handle{
		ID:             uuid.NewString(),
		LeadID:         leadID,
		AgentID:        agentID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		Store:          NewStore(m.errorGrace),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[h.ID] = h
	return h
}

func (m *Manager) Get(sessionID string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// Touch refreshes the inactivity clock.
func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	h.LastActivityAt = time.Now().UTC()
	return nil
}

// End marks the session ended and disconnects its store.
func (m *Manager) End(sessionID string) (*Handle, error) {
	m.mu.Lock()
	h, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	h.Status = StatusEnded
	h.LastActivityAt = time.Now().UTC()
	m.mu.Unlock()

	h.Store.SetConnection(StatusDisconnected)
	return h, nil
}

// StartJanitor expires inactive sessions on an interval until ctx ends.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, h := range m.sessions {
		if h.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Handle

	m.mu.Lock()
	for _, h := range m.sessions {
		if h.Status != StatusActive {
			continue
		}
		if now.Sub(h.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		h.Status = StatusEnded
		h.LastActivityAt = now
		expired = append(expired, h)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, h := range expired {
		h.Store.SetConnection(StatusDisconnected)
		if hook != nil {
			hook(h)
		}
	}
}
