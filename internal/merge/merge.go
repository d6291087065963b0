// Package merge combines message collections into one ordered,
// deduplicated timeline.
package merge

import (
	"sort"

	"ledgerchat/internal/model"
)

// Merge combines existing and incoming into one sequence ordered by
// (timestamp asc, id asc). Incoming messages whose id is already
// present are dropped, so merging the same page twice is a no-op, and
// an existing entry always wins over an incoming one with the same id.
//
// The id tie-break is load-bearing: server timestamps can collide under
// load, and id is the only guaranteed total order inside one timestamp
// bucket.
//
// When incoming contributes nothing the existing slice is returned
// unchanged, so callers can use reference equality to skip re-render
// signaling.
func Merge(existing, incoming []model.Message) []model.Message {
	if len(incoming) == 0 {
		return existing
	}

	seen := make(map[int64]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	fresh := incoming[:0:0]
	for _, m := range incoming {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return existing
	}

	merged := make([]model.Message, 0, len(existing)+len(fresh))
	merged = append(merged, existing...)
	merged = append(merged, fresh...)
	sort.SliceStable(merged, func(i, j int) bool {
		return model.Before(merged[i], merged[j])
	})
	return merged
}

// Delta returns the incoming messages that are genuinely new relative
// to existing, in incoming order. The notification detector scans only
// this delta, never the full timeline.
func Delta(existing, incoming []model.Message) []model.Message {
	if len(incoming) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}
	var fresh []model.Message
	for _, m := range incoming {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	return fresh
}
