// Package notify scans freshly merged messages for @-mentions of the
// local nickname and replies to the local identity's messages.
package notify

import (
	"strings"
	"sync"

	"ledgerchat/internal/cryptographic/envelope"
	"ledgerchat/internal/model"
)

const (
	KindMention = "mention"
	KindReply   = "reply"
)

// Notification is one queued mention or reply event, keyed by the id
// of the message that caused it.
type Notification struct {
	MessageID int64
	Kind      string
	Message   model.Message
}

// Detector remembers which message ids already produced a notification
// so a message surfaced by overlapping polls is never announced twice.
type Detector struct {
	seen map[int64]struct{}
}

func NewDetector() *Detector {
	return &Detector{seen: make(map[int64]struct{})}
}

// Scan inspects only delta, never the full timeline. lookup resolves a
// reply target id within the merged timeline. Messages authored by the
// local identity never notify, and envelope bodies that could not be
// decrypted are skipped so ciphertext cannot false-match a nickname.
func (d *Detector) Scan(delta []model.Message, lookup func(int64) (model.Message, bool), nickname, clientID string) []Notification {
	var out []Notification
	for _, m := range delta {
		if _, ok := d.seen[m.ID]; ok {
			continue
		}
		if m.SenderIdentity == clientID {
			continue
		}

		if n, ok := d.detect(m, lookup, nickname, clientID); ok {
			d.seen[m.ID] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// MarkSeen records ids without notifying. Used to seed the detector
// with the initial load so old mentions are not re-announced on every
// startup.
func (d *Detector) MarkSeen(messages []model.Message) {
	for _, m := range messages {
		d.seen[m.ID] = struct{}{}
	}
}

func (d *Detector) detect(m model.Message, lookup func(int64) (model.Message, bool), nickname, clientID string) (Notification, bool) {
	// a reply to one of our messages wins over a plain mention
	if m.ReplyTo != nil {
		if target, ok := lookup(*m.ReplyTo); ok &&
			target.SenderIdentity == clientID && m.SenderIdentity != clientID {
			return Notification{MessageID: m.ID, Kind: KindReply, Message: m}, true
		}
	}

	if nickname != "" && !envelope.IsEnvelope(m.Text) &&
		strings.Contains(m.Text, "@"+nickname) {
		return Notification{MessageID: m.ID, Kind: KindMention, Message: m}, true
	}

	return Notification{}, false
}

// Queue holds pending notifications for display. Dismissal and jump
// are terminal per item.
type Queue struct {
	mu    sync.Mutex
	items []Notification
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(notifications ...Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, notifications...)
}

// Pending returns a copy of the queued notifications in arrival order.
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Dismiss removes the notification for messageID.
func (q *Queue) Dismiss(messageID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.MessageID == messageID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Jump removes the notification for messageID and returns the message
// to scroll to.
func (q *Queue) Jump(messageID int64) (model.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.MessageID == messageID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return n.Message, true
		}
	}
	return model.Message{}, false
}
