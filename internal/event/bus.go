package event

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives a single inbound frame. Handlers for one category are
// invoked in no particular order; a handler must not block for long since
// frames for one channel are dispatched by a single consumer.
type Handler func(Frame)

// Bus fans inbound frames out to independently registered listeners, keyed
// by event category. There is no replay: a listener registered after a frame
// was published never sees that frame.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[string]Handler)}
}

// Subscribe registers a handler for the given event category and returns a
// Subscription whose Cancel detaches it. Handlers registered for the same
// category never affect one another.
func (b *Bus) Subscribe(category string, h Handler) *Subscription {
	id := uuid.New().String()

	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.subs[category]
	if !ok {
		m = make(map[string]Handler)
		b.subs[category] = m
	}
	m[id] = h

	return &Subscription{bus: b, category: category, id: id}
}

// Publish delivers a frame to every handler currently registered for its
// event category. Handlers are snapshotted before invocation so cancelling
// a subscription from inside a handler is safe.
func (b *Bus) Publish(f Frame) {
	b.mu.RLock()
	m := b.subs[f.Event]
	handlers := make([]Handler, 0, len(m))
	for _, h := range m {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(f)
	}
}

// SubscriberCount returns the number of handlers registered for a category.
func (b *Bus) SubscriberCount(category string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[category])
}

// Subscription represents one registered handler. Cancel is idempotent.
type Subscription struct {
	bus      *Bus
	category string
	id       string
	once     sync.Once
}

// Cancel detaches the handler. Calling it multiple times is safe and does
// not affect other subscribers to the same category.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if m, ok := s.bus.subs[s.category]; ok {
			delete(m, s.id)
			if len(m) == 0 {
				delete(s.bus.subs, s.category)
			}
		}
	})
}
