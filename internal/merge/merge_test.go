package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ledgerchat/internal/model"
)

func msg(id, ts int64) model.Message {
	return model.Message{ID: id, Timestamp: ts, Author: "a", Text: "t"}
}

func ids(messages []model.Message) []int64 {
	out := make([]int64, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestMergeOverlappingPoll(t *testing.T) {
	existing := []model.Message{msg(10, 100), msg(11, 110), msg(12, 120)}
	incoming := []model.Message{msg(12, 120), msg(13, 130), msg(14, 140)}

	merged := Merge(existing, incoming)
	require.Equal(t, []int64{10, 11, 12, 13, 14}, ids(merged))
}

func TestMergeIdempotent(t *testing.T) {
	existing := []model.Message{msg(1, 10), msg(3, 30)}
	incoming := []model.Message{msg(2, 20), msg(3, 30), msg(4, 40)}

	once := Merge(existing, incoming)
	twice := Merge(once, incoming)
	require.Equal(t, ids(once), ids(twice))
}

func TestMergeTimestampCollisionBreaksOnID(t *testing.T) {
	const ts = int64(500)
	existing := []model.Message{msg(6, ts)}
	incoming := []model.Message{msg(5, ts)}

	merged := Merge(existing, incoming)
	require.Equal(t, []int64{5, 6}, ids(merged))

	// arrival order must not matter
	merged = Merge([]model.Message{msg(5, ts)}, []model.Message{msg(6, ts)})
	require.Equal(t, []int64{5, 6}, ids(merged))
}

func TestMergeOrderingInvariant(t *testing.T) {
	existing := []model.Message{msg(2, 300), msg(7, 300), msg(9, 100)}
	incoming := []model.Message{msg(1, 200), msg(4, 300), msg(11, 50)}

	merged := Merge(existing, incoming)
	for i := 1; i < len(merged); i++ {
		require.False(t, model.Before(merged[i], merged[i-1]),
			"(timestamp, id) must be non-decreasing at index %d", i)
	}
}

func TestMergeEmptyIncomingIsReferenceStable(t *testing.T) {
	existing := []model.Message{msg(1, 10), msg(2, 20)}

	merged := Merge(existing, nil)
	require.Equal(t, &existing[0], &merged[0], "empty incoming must return the existing slice")

	// all-duplicate incoming is also a no-op
	merged = Merge(existing, []model.Message{msg(1, 10)})
	require.Equal(t, &existing[0], &merged[0])
}

func TestMergeFirstWriteWins(t *testing.T) {
	existing := []model.Message{{ID: 5, Timestamp: 50, Text: "original"}}
	incoming := []model.Message{{ID: 5, Timestamp: 50, Text: "imposter"}}

	merged := Merge(existing, incoming)
	require.Len(t, merged, 1)
	require.Equal(t, "original", merged[0].Text)
}

func TestDelta(t *testing.T) {
	existing := []model.Message{msg(1, 10), msg(2, 20)}
	incoming := []model.Message{msg(2, 20), msg(3, 30), msg(3, 30)}

	delta := Delta(existing, incoming)
	require.Equal(t, []int64{3}, ids(delta))

	require.Nil(t, Delta(existing, nil))
}
