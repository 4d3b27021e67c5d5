package observability

import (
	"context"
	"sync"

	"github.com/aretw0/sapling/pkg/domain"
)

// Event is one item of the engine event stream.
type Event struct {
	Type    domain.EventType `json:"type"`
	Payload any              `json:"payload"`
}

// Broker fans engine events out to subscribers.
// Slow subscribers lose events instead of blocking the engine.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewBroker creates a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe returns a channel of events that is closed when ctx is done.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Publish delivers ev to every subscriber with room for it.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Hooks returns lifecycle hooks that publish every event.
func (b *Broker) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnModelLoad: func(_ context.Context, e *domain.ModelEvent) {
			payload := struct {
				domain.ModelEvent
				Error string `json:"error,omitempty"`
			}{ModelEvent: *e}
			if e.Err != nil {
				payload.Error = e.Err.Error()
			}
			b.Publish(Event{Type: e.Type, Payload: payload})
		},
		OnClassify: func(_ context.Context, e *domain.ClassifyEvent) {
			b.Publish(Event{Type: e.Type, Payload: *e})
		},
		OnReveal: func(_ context.Context, e *domain.RevealEvent) {
			b.Publish(Event{Type: e.Type, Payload: *e})
		},
	}
}
