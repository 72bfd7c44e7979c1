package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute, 0)

	h := m.Create("lead-1", "agent-1")
	if h.ID == "" || h.Status != StatusActive || h.Store == nil {
		t.Fatalf("created handle incomplete: %+v", h)
	}

	got, err := m.Get(h.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != h.ID || got.LeadID != "lead-1" || got.AgentID != "agent-1" {
		t.Fatalf("Get() = %+v, want the created handle", got)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}

	h.Store.SetConnection(StatusConnected)
	h.Store.SetLead(&Lead{ID: "lead-1"})

	ended, err := m.End(h.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("status after End = %s, want ended", ended.Status)
	}
	if st := h.Store.State(); st.Connection != StatusDisconnected || st.CurrentLead != nil {
		t.Fatalf("End must disconnect the store and reset substate: %+v", st)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d after End, want 0", m.ActiveCount())
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(time.Minute, 0)
	if _, err := m.Get("nope"); err != ErrNotFound {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if err := m.Touch("nope"); err != ErrNotFound {
		t.Fatalf("Touch(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := m.End("nope"); err != ErrNotFound {
		t.Fatalf("End(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestJanitorExpiresOnlyInactiveSessions(t *testing.T) {
	m := NewManager(40*time.Millisecond, 0)

	expired := make(chan *Handle, 4)
	m.SetExpireHook(func(h *Handle) { expired <- h })

	stale := m.Create("lead-stale", "agent-1")
	fresh := m.Create("lead-fresh", "agent-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for {
		if err := m.Touch(fresh.ID); err != nil {
			t.Fatalf("Touch() error = %v", err)
		}
		select {
		case h := <-expired:
			if h.ID != stale.ID {
				t.Fatalf("expired %s, want the stale session %s", h.ID, stale.ID)
			}
			got, err := m.Get(fresh.ID)
			if err != nil {
				t.Fatalf("Get(fresh) error = %v", err)
			}
			if got.Status != StatusActive {
				t.Fatalf("touched session expired too")
			}
			return
		case <-deadline:
			t.Fatalf("janitor never expired the stale session")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
