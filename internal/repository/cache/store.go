// Package cache is the durable client-side cache: a bounded window of
// the message timeline per conversation scope plus small settings
// records (key material, encryption opt-in, stable client id). It is a
// best-effort paint-first cache, not a source of truth; the only
// consistency guarantee is "last complete save wins".
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ledgerchat/internal/model"
)

const (
	// DBFileName is the SQLite filename under the data dir.
	DBFileName = "ledgerchat.db"
	// MaxCachedMessages bounds the persisted timeline window; the
	// oldest messages by (timestamp, id) are evicted first.
	MaxCachedMessages = 500
	// DebounceWindow coalesces rapid Save calls into one write.
	DebounceWindow = 500 * time.Millisecond
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS timeline_snapshots (
  scope    TEXT PRIMARY KEY,
  payload  TEXT NOT NULL,
  saved_at INTEGER NOT NULL
);
`,
	`
CREATE TABLE IF NOT EXISTS settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`,
}

type Store struct {
	db *sql.DB

	maxMessages int
	debounce    time.Duration

	mu      sync.Mutex
	pending map[string]*model.TimelineSnapshot
	timer   *time.Timer
	closed  bool
}

// Open creates the data dir if needed, opens the SQLite database and
// runs migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration %d: %w", i, err)
		}
	}

	return &Store{
		db:          db,
		maxMessages: MaxCachedMessages,
		debounce:    DebounceWindow,
		pending:     make(map[string]*model.TimelineSnapshot),
	}, nil
}

// Close flushes any pending debounced write and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := s.pending
	s.pending = make(map[string]*model.TimelineSnapshot)
	s.mu.Unlock()

	for scope, snap := range pending {
		s.write(scope, snap)
	}
	return s.db.Close()
}
