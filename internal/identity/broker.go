package identity

import (
	"context"
	"sync"
	"time"
)

// EventKind distinguishes session transitions.
type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
)

// Event is one session transition.
type Event struct {
	Kind EventKind `json:"kind"`
	User User      `json:"user"`
	At   time.Time `json:"at"`
}

// Broker fan-outs session events to all active subscribers. The wizard's
// submit-on-auth flow waits on it to migrate anonymous drafts the moment a
// sign-in lands.
type Broker struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBroker initialises an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (b *Broker) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
