package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerchat/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func snapshotOf(n int) model.TimelineSnapshot {
	msgs := make([]model.Message, 0, n)
	for i := 1; i <= n; i++ {
		msgs = append(msgs, model.Message{
			ID:        int64(i),
			Author:    "a",
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: int64(i * 1000),
		})
	}
	return model.TimelineSnapshot{
		Messages:       msgs,
		TotalCount:     n,
		CurrentPage:    1,
		HasMoreHistory: false,
	}
}

func TestLoadAbsentScope(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Load("never-saved")
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestSaveNowRoundTrip(t *testing.T) {
	store := newTestStore(t)

	store.SaveNow("general", snapshotOf(3))

	snap, err := store.Load("general")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Messages, 3)
	require.Equal(t, 3, snap.TotalCount)
	require.NotZero(t, snap.SavedAt)
}

func TestDebouncedSaveVisibleBeforeFlush(t *testing.T) {
	store := newTestStore(t)

	store.Save("general", snapshotOf(2))

	// pending writes are readable immediately
	snap, err := store.Load("general")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Messages, 2)
}

func TestDebounceCoalescesWrites(t *testing.T) {
	store := newTestStore(t)
	store.debounce = 20 * time.Millisecond

	store.Save("general", snapshotOf(1))
	store.Save("general", snapshotOf(2))
	store.Save("general", snapshotOf(5))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.pending) == 0
	}, time.Second, 5*time.Millisecond, "debounced write should flush")

	snap, err := store.Load("general")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Messages, 5, "only the latest save should win")
}

func TestCloseFlushesPendingWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	store.Save("general", snapshotOf(4))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Load("general")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Messages, 4)
}

func TestCapKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)

	store.SaveNow("general", snapshotOf(MaxCachedMessages+40))

	snap, err := store.Load("general")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Messages, MaxCachedMessages)
	// oldest evicted first: the first retained id is 41
	require.Equal(t, int64(41), snap.Messages[0].ID)
	require.Equal(t, int64(MaxCachedMessages+40), snap.Messages[len(snap.Messages)-1].ID)
}

func TestCorruptPayloadDiscarded(t *testing.T) {
	store := newTestStore(t)

	_, err := store.db.Exec(
		`INSERT INTO timeline_snapshots (scope, payload, saved_at) VALUES (?, ?, ?)`,
		"general", "{not json", time.Now().UnixMilli(),
	)
	require.NoError(t, err)

	snap, err := store.Load("general")
	require.NoError(t, err, "corrupt cache must be discarded, not surfaced")
	require.Nil(t, snap)
}

func TestScopesAreIsolated(t *testing.T) {
	store := newTestStore(t)

	store.SaveNow("room-a", snapshotOf(2))
	store.SaveNow("room-b", snapshotOf(7))

	a, err := store.Load("room-a")
	require.NoError(t, err)
	require.Len(t, a.Messages, 2)

	b, err := store.Load("room-b")
	require.NoError(t, err)
	require.Len(t, b.Messages, 7)
}

func TestSettings(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.GetSetting("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.PutSetting("k", "v1"))
	require.NoError(t, store.PutSetting("k", "v2"))
	v, ok, err := store.GetSetting("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	require.NoError(t, store.DeleteSetting("k"))
	_, ok, err = store.GetSetting("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEncryptionOptInDefaultsOn(t *testing.T) {
	store := newTestStore(t)

	enabled, err := store.EncryptionOptIn()
	require.NoError(t, err)
	require.True(t, enabled)

	require.NoError(t, store.SetEncryptionOptIn(false))
	enabled, err = store.EncryptionOptIn()
	require.NoError(t, err)
	require.False(t, enabled)
}
