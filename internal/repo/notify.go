// Package repo implements the durable-store contract for chat sessions and
// messages. This file provides the insert notification hub: the push channel
// that delivers new rows to live subscribers within the same process.
//
// Delivery is best effort. A subscriber that stops draining its channel loses
// notifications rather than blocking writers; the engine's reconciliation
// fallback exists precisely so lost pushes never leave the view stale.
package repo

import (
	"sync"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// Notifier fans out inserted messages to per-session subscribers.
// The zero value is not usable; construct with NewNotifier.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan domain.ChatMessage
}

// NewNotifier returns an empty hub ready for use.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]chan domain.ChatMessage)}
}

// Subscribe registers for insert notifications filtered by session key.
// It returns the delivery channel and a cancel function; cancel closes the
// channel and is safe to call more than once.
func (n *Notifier) Subscribe(sessionID string) (<-chan domain.ChatMessage, func()) {
	ch := make(chan domain.ChatMessage, 16)

	n.mu.Lock()
	id := n.next
	n.next++
	if n.subs[sessionID] == nil {
		n.subs[sessionID] = make(map[int]chan domain.ChatMessage)
	}
	n.subs[sessionID][id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			if m := n.subs[sessionID]; m != nil {
				delete(m, id)
				if len(m) == 0 {
					delete(n.subs, sessionID)
				}
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers m to every subscriber of its session. Full subscriber
// buffers are skipped, not waited on.
func (n *Notifier) Publish(m domain.ChatMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[m.SessionID] {
		select {
		case ch <- m:
		default:
		}
	}
}
