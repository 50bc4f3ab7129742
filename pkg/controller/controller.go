package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/raterudder/energydash/pkg/backend"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/schedule"
	"github.com/raterudder/energydash/pkg/trend"
	"github.com/raterudder/energydash/pkg/types"
)

// pollFunc fetches one feed and returns a function that pushes the result to
// the sink. The fetch runs without the controller lock, the apply with it.
type pollFunc func(ctx context.Context) (apply func(), err error)

type feedState struct {
	feed  types.Feed
	cfg   FeedConfig
	poll  pollFunc
	timer schedule.Timer

	inFlight bool
	// restart is set when Start is called while a request from a previous
	// run is still in flight. The new run begins once that request returns.
	restart bool
}

// Controller polls the backend feeds on independent timers and renders the
// results into a display sink.
//
// All sink calls and state changes happen with mu held so they never overlap.
// Each start of polling gets a new generation; timers and responses from an
// older generation are ignored, which is what keeps a stop followed by a start
// from running a feed twice.
type Controller struct {
	source backend.Source
	sink   display.Sink
	clock  schedule.Clock

	mu         sync.Mutex
	ctx        context.Context
	cfg        Config
	enabled    bool
	generation uint64
	feeds      map[types.Feed]*feedState
	trend      *trend.Window
}

// NewController creates a Controller. Polling does not begin until Start or
// Run is called.
func NewController(source backend.Source, sink display.Sink, clock schedule.Clock, cfg Config) *Controller {
	c := &Controller{
		source: source,
		sink:   sink,
		clock:  clock,
		ctx:    context.Background(),
		trend:  trend.NewWindow(cfg.TrendRetention),
	}
	c.feeds = map[types.Feed]*feedState{
		types.FeedRealtime:     {feed: types.FeedRealtime, poll: c.pollRealtime},
		types.FeedPowerState:   {feed: types.FeedPowerState, poll: c.pollPowerState},
		types.FeedDailyStats:   {feed: types.FeedDailyStats, poll: c.pollDailyStats},
		types.FeedMonthlyStats: {feed: types.FeedMonthlyStats, poll: c.pollMonthlyStats},
	}
	c.applyConfig(cfg)
	return c
}

func (c *Controller) applyConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	for f, fs := range c.feeds {
		fs.cfg = cfg.Feeds[f]
	}
	c.trend.SetRetention(cfg.TrendRetention)
}

// Config returns the active configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Run starts polling if configured to, blocks until ctx is done and then stops
// polling. Requests inherit ctx so they are aborted on shutdown.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	start := c.cfg.StartPolling
	c.mu.Unlock()

	if start {
		c.Start()
	}
	<-ctx.Done()
	c.Stop()
	return nil
}

// Enabled reports whether polling is on.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled is the single polling toggle.
func (c *Controller) SetEnabled(enabled bool) {
	if enabled {
		c.Start()
	} else {
		c.Stop()
	}
}

// Start enables polling and starts all four feeds from scratch. It is a no-op
// if polling is already enabled.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return
	}
	c.enabled = true
	c.generation++
	log.Ctx(c.ctx).InfoContext(c.ctx, "starting polling", slog.Uint64("generation", c.generation))

	if o, ok := c.sink.(display.PollObserver); ok {
		o.SetPolling(true)
	}
	for _, f := range types.Feeds {
		fs := c.feeds[f]
		if fs.inFlight {
			fs.restart = true
			continue
		}
		c.scheduleLocked(fs, c.generation, 0)
	}
}

// Stop disables polling. Pending timers are cancelled; requests already in
// flight are left to finish but their results are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.enabled = false
	c.generation++
	log.Ctx(c.ctx).InfoContext(c.ctx, "stopping polling")

	for _, fs := range c.feeds {
		if fs.timer != nil {
			fs.timer.Stop()
			fs.timer = nil
		}
		fs.restart = false
	}
	if o, ok := c.sink.(display.PollObserver); ok {
		o.SetPolling(false)
	}
}

func (c *Controller) scheduleLocked(fs *feedState, gen uint64, d time.Duration) {
	fs.timer = c.clock.AfterFunc(d, func() {
		c.run(fs, gen)
	})
}

// run is one iteration of a feed loop.
func (c *Controller) run(fs *feedState, gen uint64) {
	c.mu.Lock()
	if !c.enabled || gen != c.generation {
		c.mu.Unlock()
		return
	}
	fs.timer = nil
	fs.inFlight = true
	ctx := log.WithFeed(c.ctx, string(fs.feed))
	timeout := fs.cfg.Timeout
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	apply, err := fs.poll(reqCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	fs.inFlight = false

	if !c.enabled || gen != c.generation {
		log.Ctx(ctx).DebugContext(ctx, "discarding response after polling was stopped", slog.Any("error", err))
		if fs.restart && c.enabled {
			fs.restart = false
			c.scheduleLocked(fs, c.generation, 0)
		}
		return
	}

	now := c.clock.Now()
	if err != nil {
		logPollError(ctx, err)
	} else {
		apply()
	}
	if o, ok := c.sink.(display.PollObserver); ok {
		o.RecordPoll(fs.feed, now, err)
	}
	c.scheduleLocked(fs, gen, fs.cfg.Interval)
}

func logPollError(ctx context.Context, err error) {
	var ne *backend.NetworkError
	switch {
	case errors.As(err, &ne):
		log.Ctx(ctx).WarnContext(ctx, "poll failed", slog.String("kind", "network"), slog.Bool("timeout", ne.Timeout()), slog.Any("error", err))
	case backend.IsProtocolError(err):
		log.Ctx(ctx).WarnContext(ctx, "poll failed", slog.String("kind", "protocol"), slog.Any("error", err))
	default:
		log.Ctx(ctx).ErrorContext(ctx, "poll failed", slog.Any("error", err))
	}
}

// LastSample returns the most recent rounded power reading, taken from the
// newest point of the controller's trend window.
func (c *Controller) LastSample() (float64, bool) {
	p, ok := c.trend.Latest()
	return p.Value, ok
}
