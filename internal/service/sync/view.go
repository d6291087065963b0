package sync

import (
	"context"
	"sync"

	"ledgerchat/internal/model"
)

// view is the cross-goroutine read surface: the run loop publishes
// into it, the presentation layer reads from it.
type view struct {
	mu          sync.Mutex
	messages    []model.Message
	state       State
	backfilling bool
	hasMore     bool
	err         string
}

func (c *Controller) publishView() {
	msgs := make([]model.Message, len(c.messages))
	copy(msgs, c.messages)

	c.view.mu.Lock()
	c.view.messages = msgs
	c.view.state = c.state
	c.view.backfilling = c.backfilling
	c.view.hasMore = c.hasMore
	c.view.err = c.visibleErr
	c.view.mu.Unlock()
}

// Timeline returns the current ordered message sequence.
func (c *Controller) Timeline() []model.Message {
	c.view.mu.Lock()
	defer c.view.mu.Unlock()
	return c.view.messages
}

func (c *Controller) CurrentState() State {
	c.view.mu.Lock()
	defer c.view.mu.Unlock()
	return c.view.state
}

func (c *Controller) IsBackfilling() bool {
	c.view.mu.Lock()
	defer c.view.mu.Unlock()
	return c.view.backfilling
}

func (c *Controller) HasMoreHistory() bool {
	c.view.mu.Lock()
	defer c.view.mu.Unlock()
	return c.view.hasMore
}

// VisibleError returns the dismissible error slot, "" when clear.
func (c *Controller) VisibleError() string {
	c.view.mu.Lock()
	defer c.view.mu.Unlock()
	return c.view.err
}

func (c *Controller) DismissError() {
	c.view.mu.Lock()
	c.view.err = ""
	c.view.mu.Unlock()
	c.post(func() { c.visibleErr = "" })
}

// DisplayProfile resolves how a message's sender is rendered. The
// local identity's own messages carry the current profile so a profile
// edit re-labels own history within the session; everyone else keeps
// the snapshot captured at send time, so all viewers agree on
// historical attribution.
func (c *Controller) DisplayProfile(ctx context.Context, m model.Message) model.Profile {
	if m.SenderIdentity == c.clientID {
		if p := c.ids.LocalProfile(ctx); p != nil {
			return *p
		}
	}
	return model.Profile{Nickname: m.Author}
}
