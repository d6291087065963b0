package sync

import (
	"context"

	"go.uber.org/zap"

	"ledgerchat/internal/merge"
	"ledgerchat/internal/model"
	"ledgerchat/internal/utils/log"
)

// LoadOlder extends the timeline into history. The cache is consulted
// first: messages older than the oldest currently displayed (by
// (timestamp, id) order) satisfy the request without a remote call,
// e.g. when a sibling instance already backfilled and persisted deeper
// history. Only when the cache has nothing older does a remote
// paginated fetch run. The backfilling flag makes rapid duplicate
// triggers no-ops.
func (c *Controller) LoadOlder() {
	c.post(func() {
		if c.backfilling || c.state != StateLive || len(c.messages) == 0 {
			return
		}
		c.backfilling = true
		c.state = StateLoadingMore
		c.publishView()

		oldest := c.messages[0]
		if snap, err := c.cache.Load(c.cfg.Scope); err == nil && snap != nil {
			var older []model.Message
			for _, m := range snap.Messages {
				if model.Before(m, oldest) {
					older = append(older, m)
				}
			}
			if len(older) > 0 {
				opened := c.openAll(older)
				c.detector.MarkSeen(opened)
				c.messages = merge.Merge(c.messages, opened)
				c.hasMore = len(c.messages) < c.totalCount
				c.finishBackfill(false)
				return
			}
		}

		if !c.hasMore {
			c.finishBackfill(false)
			return
		}

		next := c.currentPage + 1
		go func() {
			p, err := c.store.GetLatestPage(context.Background(), next, c.cfg.PageSize)
			c.post(func() {
				if err != nil {
					// silent: the user keeps whatever history is loaded
					log.Debug("backfill fetch failed", zap.Error(err))
					c.finishBackfill(false)
					return
				}

				older := c.openAll(p.Messages)
				c.detector.MarkSeen(older)
				c.messages = merge.Merge(c.messages, older)
				if p.Page > c.currentPage {
					c.currentPage = p.Page
				}
				if p.Total > c.totalCount {
					c.totalCount = p.Total
				}
				c.hasMore = len(c.messages) < c.totalCount
				c.finishBackfill(true)
			})
		}()
	})
}

// finishBackfill re-enters Live. After a remote backfill the snapshot
// is written immediately so a crash cannot lose the fetched history.
func (c *Controller) finishBackfill(saveNow bool) {
	c.backfilling = false
	c.state = StateLive
	if saveNow {
		c.cache.SaveNow(c.cfg.Scope, c.snapshot())
	} else {
		c.cache.Save(c.cfg.Scope, c.snapshot())
	}
	c.publishView()
}
