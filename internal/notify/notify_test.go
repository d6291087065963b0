package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ledgerchat/internal/model"
)

const (
	localNick = "alice"
	localID   = "client-alice"
	otherID   = "client-bob"
)

func lookupIn(timeline []model.Message) func(int64) (model.Message, bool) {
	return func(id int64) (model.Message, bool) {
		for _, m := range timeline {
			if m.ID == id {
				return m, true
			}
		}
		return model.Message{}, false
	}
}

func TestMentionDetected(t *testing.T) {
	d := NewDetector()

	delta := []model.Message{
		{ID: 1, SenderIdentity: otherID, Author: "bob", Text: "hey @alice look"},
		{ID: 2, SenderIdentity: otherID, Author: "bob", Text: "unrelated"},
	}
	hits := d.Scan(delta, lookupIn(delta), localNick, localID)
	require.Len(t, hits, 1)
	require.Equal(t, KindMention, hits[0].Kind)
	require.Equal(t, int64(1), hits[0].MessageID)
}

func TestSelfMentionIgnored(t *testing.T) {
	d := NewDetector()

	delta := []model.Message{
		{ID: 1, SenderIdentity: localID, Author: "alice", Text: "note to self: @alice"},
	}
	hits := d.Scan(delta, lookupIn(delta), localNick, localID)
	require.Empty(t, hits)
}

func TestMentionDedupedAcrossScans(t *testing.T) {
	d := NewDetector()

	delta := []model.Message{
		{ID: 7, SenderIdentity: otherID, Text: "@alice once"},
	}
	require.Len(t, d.Scan(delta, lookupIn(delta), localNick, localID), 1)
	require.Empty(t, d.Scan(delta, lookupIn(delta), localNick, localID),
		"the same message must never notify twice")
}

func TestCiphertextNeverMatches(t *testing.T) {
	d := NewDetector()

	delta := []model.Message{
		{ID: 1, SenderIdentity: otherID, Text: "enc:@alice-looking-ciphertext"},
	}
	hits := d.Scan(delta, lookupIn(delta), localNick, localID)
	require.Empty(t, hits, "undecrypted envelopes must not be scanned for mentions")
}

func TestEmptyNicknameNeverMatches(t *testing.T) {
	d := NewDetector()

	delta := []model.Message{
		{ID: 1, SenderIdentity: otherID, Text: "hi @"},
	}
	require.Empty(t, d.Scan(delta, lookupIn(delta), "", localID))
}

func TestReplyToOwnMessageDetected(t *testing.T) {
	d := NewDetector()

	mine := model.Message{ID: 10, SenderIdentity: localID, Author: "alice", Text: "original"}
	replyTo := mine.ID
	delta := []model.Message{
		{ID: 11, SenderIdentity: otherID, Author: "bob", Text: "answer", ReplyTo: &replyTo},
	}
	timeline := append([]model.Message{mine}, delta...)

	hits := d.Scan(delta, lookupIn(timeline), localNick, localID)
	require.Len(t, hits, 1)
	require.Equal(t, KindReply, hits[0].Kind)
	require.Equal(t, int64(11), hits[0].MessageID)
}

func TestSelfReplyIgnored(t *testing.T) {
	d := NewDetector()

	mine := model.Message{ID: 10, SenderIdentity: localID, Text: "original"}
	replyTo := mine.ID
	delta := []model.Message{
		{ID: 11, SenderIdentity: localID, Text: "replying to myself", ReplyTo: &replyTo},
	}
	timeline := append([]model.Message{mine}, delta...)

	require.Empty(t, d.Scan(delta, lookupIn(timeline), localNick, localID))
}

func TestReplyToSomeoneElseIgnored(t *testing.T) {
	d := NewDetector()

	theirs := model.Message{ID: 10, SenderIdentity: otherID, Text: "not mine"}
	replyTo := theirs.ID
	delta := []model.Message{
		{ID: 11, SenderIdentity: "client-carol", Text: "answer", ReplyTo: &replyTo},
	}
	timeline := append([]model.Message{theirs}, delta...)

	require.Empty(t, d.Scan(delta, lookupIn(timeline), localNick, localID))
}

func TestMarkSeenSuppressesNotifications(t *testing.T) {
	d := NewDetector()

	history := []model.Message{
		{ID: 1, SenderIdentity: otherID, Text: "@alice old mention"},
	}
	d.MarkSeen(history)
	require.Empty(t, d.Scan(history, lookupIn(history), localNick, localID))
}

func TestQueueDismissAndJump(t *testing.T) {
	q := NewQueue()
	q.Push(
		Notification{MessageID: 1, Kind: KindMention, Message: model.Message{ID: 1}},
		Notification{MessageID: 2, Kind: KindReply, Message: model.Message{ID: 2}},
	)

	require.Len(t, q.Pending(), 2)

	q.Dismiss(1)
	pending := q.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, int64(2), pending[0].MessageID)

	target, ok := q.Jump(2)
	require.True(t, ok)
	require.Equal(t, int64(2), target.ID)
	require.Empty(t, q.Pending())

	_, ok = q.Jump(2)
	require.False(t, ok, "jump is terminal")
}
