package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ledgerchat/internal/model"
	"ledgerchat/internal/utils/log"
)

// ErrCacheCorrupt tags a persisted snapshot that failed to decode. It
// is logged, never returned: corrupt cache rows are discarded and the
// scope is treated as never cached.
var ErrCacheCorrupt = errors.New("corrupt cached snapshot")

// Load returns the cached snapshot for scope, or nil when the scope has
// never been saved. Malformed persisted data is discarded and treated
// as absent rather than surfaced.
func (s *Store) Load(scope string) (*model.TimelineSnapshot, error) {
	s.mu.Lock()
	if snap, ok := s.pending[scope]; ok {
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM timeline_snapshots WHERE scope = ?`, scope,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", scope, err)
	}

	var snap model.TimelineSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		log.Warn("discarding corrupt timeline snapshot",
			zap.String("scope", scope), zap.Error(errors.Wrap(ErrCacheCorrupt, err.Error())))
		s.db.Exec(`DELETE FROM timeline_snapshots WHERE scope = ?`, scope)
		return nil, nil
	}
	return &snap, nil
}

// Save schedules a debounced write of snapshot for scope. Calls within
// the debounce window coalesce; only the latest snapshot per scope is
// written when the window elapses.
func (s *Store) Save(scope string, snapshot model.TimelineSnapshot) {
	capped := s.cap(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending[scope] = &capped
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.flush)
	} else {
		s.timer.Reset(s.debounce)
	}
}

// SaveNow writes snapshot immediately, bypassing the debounce. Used
// where losing the latest state to a crash is unacceptable, e.g. right
// after a history backfill.
func (s *Store) SaveNow(scope string, snapshot model.TimelineSnapshot) {
	capped := s.cap(snapshot)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, scope)
	s.mu.Unlock()

	s.write(scope, &capped)
}

func (s *Store) flush() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	pending := s.pending
	s.pending = make(map[string]*model.TimelineSnapshot)
	s.timer = nil
	s.mu.Unlock()

	for scope, snap := range pending {
		s.write(scope, snap)
	}
}

func (s *Store) write(scope string, snap *model.TimelineSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Error("marshal timeline snapshot", zap.String("scope", scope), zap.Error(err))
		return
	}
	_, err = s.db.Exec(
		`INSERT INTO timeline_snapshots (scope, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		scope, string(payload), snap.SavedAt,
	)
	if err != nil {
		// cache write failure is never fatal to the session
		log.Error("persist timeline snapshot", zap.String("scope", scope), zap.Error(err))
	}
}

// cap bounds the snapshot to the most recent maxMessages by
// (timestamp, id) ascending order, evicting oldest first.
func (s *Store) cap(snapshot model.TimelineSnapshot) model.TimelineSnapshot {
	if snapshot.SavedAt == 0 {
		snapshot.SavedAt = time.Now().UnixMilli()
	}
	if len(snapshot.Messages) <= s.maxMessages {
		return snapshot
	}
	msgs := make([]model.Message, len(snapshot.Messages))
	copy(msgs, snapshot.Messages)
	sort.Slice(msgs, func(i, j int) bool {
		return model.Before(msgs[i], msgs[j])
	})
	snapshot.Messages = msgs[len(msgs)-s.maxMessages:]
	return snapshot
}
