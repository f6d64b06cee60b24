// Package notify manages subscribers and distributes user-facing messages
// about classification results. Posting is fire-and-forget: messages to
// slow subscribers are dropped rather than blocking a worker.
package notify

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jamesainslie/triage/pkg/triage/findings"
)

// defaultBuffer is the per-subscriber channel capacity.
const defaultBuffer = 100

// Message is a user-facing notification about a classification event.
type Message struct {
	// Summary is the short one-line description.
	Summary string

	// Detail carries the longer description.
	Detail string

	// FilePath is the subject file, if any.
	FilePath string

	// Finding is the related finding, nil for failure notices.
	Finding *findings.Finding

	// Failure marks best-effort error notices (e.g. index failures).
	Failure bool
}

// Subscriber receives posted messages on its channel.
type Subscriber struct {
	ID       string
	Messages chan Message
}

// Notifier fans posted messages out to all subscribers.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	closed bool
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		subs: make(map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber.
func (n *Notifier) Subscribe() *Subscriber {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	sub := &Subscriber{
		ID:       uuid.New().String(),
		Messages: make(chan Message, defaultBuffer),
	}
	n.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, ok := n.subs[id]; ok {
		close(sub.Messages)
		delete(n.subs, id)
	}
}

// Post distributes a success message to all subscribers.
func (n *Notifier) Post(summary, detail, filePath string, f *findings.Finding) {
	n.send(Message{
		Summary:  summary,
		Detail:   detail,
		FilePath: filePath,
		Finding:  f,
	})
}

// PostFailure distributes a best-effort failure notice to all subscribers.
func (n *Notifier) PostFailure(summary, detail string) {
	n.send(Message{
		Summary: summary,
		Detail:  detail,
		Failure: true,
	})
}

// send delivers the message, dropping it for subscribers whose channel
// is full.
func (n *Notifier) send(msg Message) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return
	}

	for _, sub := range n.subs {
		select {
		case sub.Messages <- msg:
		default:
			// Channel full, message dropped
		}
	}
}

// Close closes the notifier and all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	n.closed = true
	for _, sub := range n.subs {
		close(sub.Messages)
	}
	n.subs = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
