package session

import (
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/leadline-ai/leadline/internal/dialog"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/reliability"
)

// DefaultErrorGrace is how long a recoverable error stays in state before
// auto-clearing, unless a newer error supersedes it first.
const DefaultErrorGrace = 5 * time.Second

// Store owns the canonical session state. It is a single-writer object:
// every mutation goes through one of the declared actions, which apply a
// pure transformation of the prior state and then notify subscribers in
// registration order. A panicking subscriber is logged and skipped.
type Store struct {
	mu         sync.Mutex
	state      State
	subs       []storeSub
	nextSubID  int
	errorGrace time.Duration
	errorSeq   int
}

type storeSub struct {
	id       int
	selector func(State) any
	lastSel  any
	notify   func(State)
}

// NewStore builds a store in the disconnected state. errorGrace <= 0
// selects the 5s default.
func NewStore(errorGrace time.Duration) *Store {
	if errorGrace <= 0 {
		errorGrace = DefaultErrorGrace
	}
	return &Store{
		state:      State{Connection: StatusDisconnected},
		errorGrace: errorGrace,
	}
}

// Subscribe registers for full-state change notification. The returned
// function removes the subscription.
func (s *Store) Subscribe(notify func(State)) func() {
	return s.subscribe(nil, notify)
}

// SubscribeSelector registers for notification only when the selected
// slice of state changes between updates.
func (s *Store) SubscribeSelector(selector func(State) any, notify func(State)) func() {
	return s.subscribe(selector, notify)
}

func (s *Store) subscribe(selector func(State) any, notify func(State)) func() {
	if notify == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	sub := storeSub{id: id, selector: selector, notify: notify}
	if selector != nil {
		sub.lastSel = selector(s.state)
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// apply runs one reducer step: transform a copy of the state, swap it in,
// and deliver notifications outside the lock.
func (s *Store) apply(transform func(State) State) {
	s.mu.Lock()
	s.state = transform(s.state)
	state := s.state

	type delivery struct{ notify func(State) }
	var pending []delivery
	for i := range s.subs {
		sub := &s.subs[i]
		if sub.selector != nil {
			sel := sub.selector(state)
			if reflect.DeepEqual(sel, sub.lastSel) {
				continue
			}
			sub.lastSel = sel
		}
		pending = append(pending, delivery{notify: sub.notify})
	}
	s.mu.Unlock()

	for _, d := range pending {
		notifySafely(d.notify, state)
	}
}

func notifySafely(notify func(State), state State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session store subscriber panic: %v", r)
		}
	}()
	notify(state)
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetInitialized records whether the audio pipeline is ready.
func (s *Store) SetInitialized(initialized bool) {
	s.apply(func(st State) State {
		st.Initialized = initialized
		return st
	})
}

// SetConnection updates transport status. A connected -> disconnected
// transition resets conversation, lead and metrics substate.
func (s *Store) SetConnection(status ConnectionStatus) {
	s.apply(func(st State) State {
		prev := st.Connection
		st.Connection = status
		if prev == StatusConnected && status == StatusDisconnected {
			st.Conversation = nil
			st.CurrentLead = nil
			st.Metrics = observability.PerformanceReport{}
		}
		return st
	})
}

func (s *Store) SetAgent(agent *AgentProfile) {
	s.apply(func(st State) State {
		st.ActiveAgent = agent
		return st
	})
}

func (s *Store) SetLead(lead *Lead) {
	s.apply(func(st State) State {
		st.CurrentLead = lead
		return st
	})
}

// SetConversation replaces the canonical conversation snapshot.
func (s *Store) SetConversation(conv *dialog.Session) {
	s.apply(func(st State) State {
		st.Conversation = conv
		return st
	})
}

func (s *Store) SetAudioLevel(level float64) {
	s.apply(func(st State) State {
		st.AudioLevel = level
		return st
	})
}

func (s *Store) SetMuted(muted bool) {
	s.apply(func(st State) State {
		st.Muted = muted
		return st
	})
}

func (s *Store) SetMetrics(report observability.PerformanceReport) {
	s.apply(func(st State) State {
		st.Metrics = report
		return st
	})
}

// SetError stores a classified error as the single current error. A
// recoverable error auto-clears after the grace period unless a newer
// error supersedes it first, which restarts the timer.
func (s *Store) SetError(err *reliability.VoiceError) {
	s.mu.Lock()
	s.errorSeq++
	seq := s.errorSeq
	s.mu.Unlock()

	s.apply(func(st State) State {
		st.LastError = err
		return st
	})

	if err != nil && err.Recoverable {
		time.AfterFunc(s.errorGrace, func() {
			s.clearErrorIfCurrent(seq)
		})
	}
}

// ClearError removes the current error immediately.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errorSeq++
	s.mu.Unlock()

	s.apply(func(st State) State {
		st.LastError = nil
		return st
	})
}

func (s *Store) clearErrorIfCurrent(seq int) {
	s.mu.Lock()
	if s.errorSeq != seq {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.apply(func(st State) State {
		st.LastError = nil
		return st
	})
}

// ConversationDuration is a derived read with no side effects.
func (s *Store) ConversationDuration() time.Duration {
	return s.State().ConversationDuration(time.Now().UTC())
}

// CurrentQualificationScore is a derived read with no side effects.
func (s *Store) CurrentQualificationScore() float64 {
	return s.State().Qualification().Score
}
