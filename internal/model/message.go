package model

type (
	// Message is one entry of the remote ledger. Immutable once created;
	// ID is assigned by the store and is strictly increasing per
	// conversation, but pages and polls can deliver messages out of
	// that order. Display order is (Timestamp, ID) ascending.
	Message struct {
		ID             int64  `json:"id"`
		Author         string `json:"author"`
		SenderIdentity string `json:"sender_identity"`
		Text           string `json:"text"`
		Timestamp      int64  `json:"timestamp"` // nanoseconds since epoch
		ImageRef       *int64 `json:"image_ref,omitempty"`
		ReplyTo        *int64 `json:"reply_to,omitempty"`
	}

	// Page is one slice of the remote message log.
	Page struct {
		Messages   []Message `json:"messages"`
		Total      int       `json:"total"`
		Page       int       `json:"page"`
		PageSize   int       `json:"page_size"`
		TotalPages int       `json:"total_pages"`
	}

	// Profile is a display profile. Author fields on historical messages
	// are snapshots; the current profile overrides them only for the
	// local identity's own messages.
	Profile struct {
		Nickname string `json:"nickname"`
		Avatar   string `json:"avatar,omitempty"`
		Color    string `json:"color,omitempty"`
		Bio      string `json:"bio,omitempty"`
	}
)

// MaxID returns the largest server-assigned id in messages, 0 when empty.
func MaxID(messages []Message) int64 {
	var max int64
	for _, m := range messages {
		if m.ID > max {
			max = m.ID
		}
	}
	return max
}

// Before reports whether a orders strictly before b in display order.
func Before(a, b Message) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}
