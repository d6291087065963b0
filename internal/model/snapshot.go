package model

type (
	// TimelineSnapshot is the bounded window of a conversation's timeline
	// persisted by the local cache. Owned by the cache store; other
	// components mutate it only through the store's write API. Staleness
	// is tolerated by design: the snapshot is a paint-first cache, not a
	// source of truth.
	TimelineSnapshot struct {
		Messages       []Message `json:"messages"`
		TotalCount     int       `json:"total_count"`
		CurrentPage    int       `json:"current_page"`
		HasMoreHistory bool      `json:"has_more_history"`
		SavedAt        int64     `json:"saved_at"` // unix milliseconds
	}
)
