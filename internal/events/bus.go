// Package events is the in-process fan-out for stint transitions. Other
// sessions of the same user subscribe to keep their local caches consistent;
// delivery is best-effort and never transactional with the state change.
package events

import "sync"

// Event describes one committed stint transition.
type Event struct {
	StintID   string `json:"stintId"`
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

const subscriberBuffer = 16

type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for one user's transitions. The returned
// cancel func must be called when the listener goes away.
func (b *Bus) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, userID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of the user. A subscriber
// that has fallen behind loses the event; publishers never block on a slow
// consumer.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.UserID] {
		select {
		case ch <- event:
		default:
		}
	}
}
