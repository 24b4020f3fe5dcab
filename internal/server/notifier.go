package server

import (
	"sync"

	"github.com/leapstack-labs/reportdsl/internal/project"
)

// Event is pushed to /api/events listeners when a watched script changes.
type Event struct {
	Path   string          `json:"path"`
	Report *project.Report `json:"report"`
}

// Notifier fans events out to subscribed listeners.
// A listener that falls behind misses events rather than blocking others.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// NewNotifier creates a notifier with no listeners.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events. Call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 8)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to every listener without blocking.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
