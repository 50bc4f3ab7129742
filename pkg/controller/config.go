package controller

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energydash/pkg/backend"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/schedule"
	"github.com/raterudder/energydash/pkg/trend"
	"github.com/raterudder/energydash/pkg/types"
)

// FeedConfig is the cadence of a single feed.
type FeedConfig struct {
	// Interval is the delay between the end of one poll and the start of the
	// next.
	Interval time.Duration
	// Timeout bounds a single request.
	Timeout time.Duration
}

// Config holds the controller settings.
type Config struct {
	Feeds          map[types.Feed]FeedConfig
	TrendRetention time.Duration
	StartPolling   bool
}

// DefaultConfig returns the standard dashboard cadence.
func DefaultConfig() Config {
	return Config{
		Feeds: map[types.Feed]FeedConfig{
			types.FeedRealtime:     {Interval: time.Second, Timeout: 2 * time.Second},
			types.FeedPowerState:   {Interval: time.Minute, Timeout: 2 * time.Second},
			types.FeedDailyStats:   {Interval: 5 * time.Minute, Timeout: 4 * time.Second},
			types.FeedMonthlyStats: {Interval: 5 * time.Minute, Timeout: 4 * time.Second},
		},
		TrendRetention: trend.DefaultRetention,
		StartPolling:   true,
	}
}

// Validate ensures every feed has a positive interval and timeout.
func (c Config) Validate() error {
	for _, f := range types.Feeds {
		fc, ok := c.Feeds[f]
		if !ok {
			return fmt.Errorf("missing config for feed %s", f)
		}
		if fc.Interval <= 0 {
			return fmt.Errorf("%s interval must be positive", f)
		}
		if fc.Timeout <= 0 {
			return fmt.Errorf("%s timeout must be positive", f)
		}
	}
	if c.TrendRetention <= 0 {
		return fmt.Errorf("trend retention must be positive")
	}
	return nil
}

// Configured sets up flags for the controller and returns the instance.
// It uses lflag to register command-line flags for configuration.
func Configured(source backend.Source, sink display.Sink) *Controller {
	def := DefaultConfig()
	c := NewController(source, sink, schedule.Real(), def)

	realtimeInterval := lflag.Duration("realtime-poll-interval", def.Feeds[types.FeedRealtime].Interval, "Delay between realtime usage polls")
	powerStateInterval := lflag.Duration("power-state-poll-interval", def.Feeds[types.FeedPowerState].Interval, "Delay between power state polls")
	statsInterval := lflag.Duration("stats-poll-interval", def.Feeds[types.FeedDailyStats].Interval, "Delay between daily and monthly stats polls")
	realtimeTimeout := lflag.Duration("realtime-timeout", def.Feeds[types.FeedRealtime].Timeout, "Timeout for a realtime usage request")
	powerStateTimeout := lflag.Duration("power-state-timeout", def.Feeds[types.FeedPowerState].Timeout, "Timeout for a power state request")
	statsTimeout := lflag.Duration("stats-timeout", def.Feeds[types.FeedDailyStats].Timeout, "Timeout for a daily or monthly stats request")
	trendRetention := lflag.Duration("trend-retention", def.TrendRetention, "How long realtime trend points are kept")
	startPolling := lflag.Bool("start-polling", def.StartPolling, "Start polling as soon as the process starts")

	lflag.Do(func() {
		cfg := Config{
			Feeds: map[types.Feed]FeedConfig{
				types.FeedRealtime:     {Interval: *realtimeInterval, Timeout: *realtimeTimeout},
				types.FeedPowerState:   {Interval: *powerStateInterval, Timeout: *powerStateTimeout},
				types.FeedDailyStats:   {Interval: *statsInterval, Timeout: *statsTimeout},
				types.FeedMonthlyStats: {Interval: *statsInterval, Timeout: *statsTimeout},
			},
			TrendRetention: *trendRetention,
			StartPolling:   *startPolling,
		}
		if err := cfg.Validate(); err != nil {
			panic(fmt.Sprintf("controller validation failed: %v", err))
		}
		c.applyConfig(cfg)
	})

	return c
}
