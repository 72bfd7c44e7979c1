package events

import (
	"log"
	"sync"
	"time"
)

// Type identifies subsystem event variants.
type Type string

const (
	TypeSpeechRecognized     Type = "speech_recognized"
	TypeEmotionDetected      Type = "emotion_detected"
	TypeAudioProcessed       Type = "audio_processed"
	TypeVoiceActivityStart   Type = "voice_activity_start"
	TypeVoiceActivityEnd     Type = "voice_activity_end"
	TypeIntentDetected       Type = "intent_detected"
	TypeConversationTurn     Type = "conversation_turn"
	TypeQualificationUpdated Type = "qualification_updated"
	TypeConversationStarted  Type = "conversation_started"
	TypeConversationEnded    Type = "conversation_ended"
	TypeError                Type = "error"
)

// Event carries one subsystem notification. Payload shape depends on Type.
type Event struct {
	Type      Type
	SessionID string
	Payload   any
	Timestamp time.Time
}

// Handler receives events for one subscription.
type Handler func(Event)

// Bus fans events out to subscribers in registration order. A subscriber
// that panics is logged and skipped; delivery to the others continues.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id      int
	types   map[Type]bool // nil means all types
	handler Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for the given event types. An empty type
// list subscribes to every event. The returned function removes the
// subscription.
func (b *Bus) Subscribe(handler Handler, types ...Type) func() {
	if handler == nil {
		return func() {}
	}

	var filter map[Type]bool
	if len(types) > 0 {
		filter = make(map[Type]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, types: filter, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to matching subscribers in registration order.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types != nil && !s.types[ev.Type] {
			continue
		}
		deliver(s.handler, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event subscriber panic on %s: %v", ev.Type, r)
		}
	}()
	h(ev)
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
