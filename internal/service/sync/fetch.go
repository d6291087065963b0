package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ledgerchat/internal/merge"
	"ledgerchat/internal/model"
	"ledgerchat/internal/utils/log"
)

// initialLoad paints from the cache when possible and fetches the
// latest page. With a cache the fetch is silent; without one it is the
// only foreground fetch the controller ever performs, and the only one
// whose failure is allowed to surface.
func (c *Controller) initialLoad() {
	c.state = StateLoading
	c.publishView()

	snap, err := c.cache.Load(c.cfg.Scope)
	if err != nil {
		log.Warn("cache load failed", zap.Error(err))
	}
	if snap != nil {
		// re-open cached bodies: texts a foreign key left encrypted
		// become readable once the right key has been imported
		c.messages = c.openAll(snap.Messages)
		c.totalCount = snap.TotalCount
		c.currentPage = snap.CurrentPage
		c.hasMore = snap.HasMoreHistory
		c.detector.MarkSeen(c.messages)
		c.state = StateLive
		c.publishView()
		c.fetchLatest(false, true)
		return
	}

	c.fetchLatest(true, true)
}

func (c *Controller) silentRefresh() {
	if c.state == StateUninitialized {
		return
	}
	c.fetchLatest(false, false)
}

// pollTick runs on the run loop on every ticker fire. The cheap count
// endpoint is consulted first; the page fetch only happens when the
// ledger actually grew.
func (c *Controller) pollTick() {
	if c.state != StateLive || !c.atLiveEdge || c.polling || c.backfilling {
		return
	}
	c.polling = true
	known := c.totalCount

	go func() {
		n, err := c.store.GetMessageCount(context.Background())
		if err == nil && n == known {
			c.post(func() { c.polling = false })
			return
		}
		if err != nil {
			log.Debug("poll count failed", zap.Error(err))
		}

		p, err := c.store.GetLatestPage(context.Background(), 1, c.cfg.PageSize)
		c.post(func() {
			c.polling = false
			if err != nil {
				c.fetchFailed(false, err)
				return
			}
			c.applyPage(p, false)
			c.publishView()
		})
	}()
}

// fetchLatest pulls page 1 on a worker goroutine and resolves the
// result back into the run loop. The polling flag suppresses
// overlapping fetches; seed marks content that predates this session
// so it does not notify.
func (c *Controller) fetchLatest(foreground, seed bool) {
	if c.polling {
		return
	}
	c.polling = true

	go func() {
		p, err := c.store.GetLatestPage(context.Background(), 1, c.cfg.PageSize)
		c.post(func() {
			c.polling = false
			if err != nil {
				c.fetchFailed(foreground, err)
				return
			}
			c.applyPage(p, seed)
			c.state = StateLive
			c.publishView()
		})
	}()
}

func (c *Controller) fetchFailed(foreground bool, err error) {
	if foreground && len(c.messages) == 0 {
		// nothing cached to show, the one case a fetch failure is visible
		c.visibleErr = "could not reach the message store"
		c.state = StateLive
	} else {
		log.Debug("silent refresh failed", zap.Error(err))
	}
	c.publishView()
}

// applyPage decrypts and merges one fetched page. A resolution that is
// older than already-merged state (a slow fetch finishing after a
// faster one) is discarded instead of regressing counters.
func (c *Controller) applyPage(p model.Page, seed bool) {
	incoming := c.openAll(p.Messages)

	if p.Total < c.totalCount && model.MaxID(incoming) < model.MaxID(c.messages) {
		log.Debug("discarding stale page resolution",
			zap.Int("page_total", p.Total), zap.Int("have_total", c.totalCount))
		return
	}

	delta := merge.Delta(c.messages, incoming)
	merged := merge.Merge(c.messages, incoming)

	if p.Page > c.currentPage {
		c.currentPage = p.Page
	}
	if p.Total > c.totalCount {
		c.totalCount = p.Total
	}

	if len(delta) == 0 {
		c.hasMore = len(merged) < c.totalCount
		return
	}

	c.messages = merged
	c.hasMore = len(merged) < c.totalCount

	if seed {
		c.detector.MarkSeen(delta)
	} else {
		c.scanDelta(delta)
	}

	c.cache.Save(c.cfg.Scope, c.snapshot())
}

func (c *Controller) scanDelta(delta []model.Message) {
	nickname := ""
	if p := c.ids.LocalProfile(context.Background()); p != nil {
		nickname = p.Nickname
	}
	lookup := func(id int64) (model.Message, bool) {
		for _, m := range c.messages {
			if m.ID == id {
				return m, true
			}
		}
		return model.Message{}, false
	}
	if hits := c.detector.Scan(delta, lookup, nickname, c.clientID); len(hits) > 0 {
		c.queue.Push(hits...)
	}
}

// openAll passes every body through the envelope codec. Undecryptable
// bodies keep their envelope text; the prefix is the per-message
// "cannot decrypt" signal downstream.
func (c *Controller) openAll(messages []model.Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		m.Text = c.codec.Decrypt(m.Text)
		out[i] = m
	}
	return out
}

func (c *Controller) snapshot() model.TimelineSnapshot {
	return model.TimelineSnapshot{
		Messages:       c.messages,
		TotalCount:     c.totalCount,
		CurrentPage:    c.currentPage,
		HasMoreHistory: c.hasMore,
		SavedAt:        time.Now().UnixMilli(),
	}
}
