// Package sync orchestrates the client-side timeline: cache-first
// initial load, fixed-interval polling, focus-triggered refresh,
// history backfill, and the silent-vs-visible failure policy. All
// timeline state is owned by a single run-loop goroutine; external
// triggers post tasks into it, and fetches resolve back into it, so
// merges and cache writes never interleave.
package sync

import (
	"context"
	"time"

	"ledgerchat/internal/broadcast"
	"ledgerchat/internal/cryptographic/envelope"
	"ledgerchat/internal/model"
	"ledgerchat/internal/notify"
	"ledgerchat/internal/remote"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateLive
	StateLoadingMore
)

const (
	DefaultPageSize     = 50
	DefaultPollInterval = 4 * time.Second
)

// Store is the remote ledger surface the controller consumes.
type Store interface {
	SendMessage(ctx context.Context, req remote.SendRequest) (model.Message, error)
	GetLatestPage(ctx context.Context, page, pageSize int) (model.Page, error)
	GetMessageCount(ctx context.Context) (int, error)
}

// Cache is the local snapshot persistence surface.
type Cache interface {
	Load(scope string) (*model.TimelineSnapshot, error)
	Save(scope string, snapshot model.TimelineSnapshot)
	SaveNow(scope string, snapshot model.TimelineSnapshot)
}

// Identity is the profile collaborator surface.
type Identity interface {
	StableClientID() (string, error)
	LocalProfile(ctx context.Context) *model.Profile
	RefreshProfile(ctx context.Context) *model.Profile
}

type Config struct {
	Scope string
	// GroupID, when set, marks the scope as group-keyed: bodies are
	// sealed under the group's key instead of the user key.
	GroupID      string
	PageSize     int
	PollInterval time.Duration
}

type Controller struct {
	cfg      Config
	store    Store
	cache    Cache
	codec    *envelope.Codec
	ids      Identity
	port     broadcast.Port
	detector *notify.Detector
	queue    *notify.Queue

	tasks  chan func()
	done   chan struct{}
	ticker *time.Ticker

	// everything below is owned by the run loop
	state       State
	messages    []model.Message
	totalCount  int
	currentPage int
	hasMore     bool

	atLiveEdge  bool
	polling     bool
	backfilling bool

	visibleErr string
	clientID   string

	// mirrors for cross-goroutine reads, guarded by the view mutex
	view view
}

func NewController(cfg Config, store Store, cache Cache, codec *envelope.Codec, ids Identity, port broadcast.Port) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Controller{
		cfg:        cfg,
		store:      store,
		cache:      cache,
		codec:      codec,
		ids:        ids,
		port:       port,
		detector:   notify.NewDetector(),
		queue:      notify.NewQueue(),
		tasks:      make(chan func(), 32),
		done:       make(chan struct{}),
		atLiveEdge: true,
	}
}

// Open starts the run loop, performs the initial load, subscribes to
// the broadcast port and begins polling. Call Close to tear down.
func (c *Controller) Open(ctx context.Context) {
	if id, err := c.ids.StableClientID(); err == nil {
		c.clientID = id
	}

	c.ticker = time.NewTicker(c.cfg.PollInterval)
	go c.run()

	c.port.Subscribe(func(ev broadcast.Event) {
		c.onBroadcast(ev)
	})

	c.post(func() { c.initialLoad() })
}

// Close stops the poll ticker and the run loop. Fetches that resolve
// afterwards are dropped.
func (c *Controller) Close() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.port.Close()
}

func (c *Controller) run() {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.tasks:
			fn()
		case <-c.ticker.C:
			c.pollTick()
		}
	}
}

// post schedules fn on the run loop; dropped after Close.
func (c *Controller) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

func (c *Controller) onBroadcast(ev broadcast.Event) {
	if ev.Sender == c.clientID || ev.Scope != c.cfg.Scope {
		return
	}
	switch ev.Kind {
	case broadcast.KindNewMessage:
		// refresh instead of appending the sibling's local copy, so we
		// only ever merge server-confirmed state
		c.post(func() { c.silentRefresh() })
	case broadcast.KindProfileUpdated:
		go c.ids.RefreshProfile(context.Background())
	}
}

// SetAtLiveEdge tells the controller whether the user is viewing the
// newest page. Polling is suspended while they are paged into history
// so the view they are reading is not rewritten underneath them.
func (c *Controller) SetAtLiveEdge(live bool) {
	c.post(func() {
		c.atLiveEdge = live
		if live {
			c.silentRefresh()
		}
	})
}

// RefreshNow triggers an immediate silent refresh; wired to focus and
// visibility regained events as the substitute for push notifications.
func (c *Controller) RefreshNow() {
	c.post(func() { c.silentRefresh() })
}

// Notifications exposes the pending mention/reply queue.
func (c *Controller) Notifications() *notify.Queue {
	return c.queue
}
