package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raterudder/energydash/pkg/backend"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/display/displaymock"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/schedule/schedulemock"
	"github.com/raterudder/energydash/pkg/trend"
	"github.com/raterudder/energydash/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

var t0 = time.Date(2024, 3, 2, 12, 0, 0, 0, time.Local)

type hold struct {
	started chan struct{}
	release chan struct{}
}

// fakeSource serves canned responses and counts requests per feed. A hold
// blocks the next request of a feed until it is released.
type fakeSource struct {
	mu        sync.Mutex
	calls     map[types.Feed]int
	deadlines map[types.Feed]time.Time
	errs      map[types.Feed]error
	holds     map[types.Feed]*hold

	realtime types.RealtimeSample
	power    types.PowerState
	day      []types.UsageEntry
	month    []types.UsageEntry
}

var _ backend.Source = (*fakeSource)(nil)

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:     make(map[types.Feed]int),
		deadlines: make(map[types.Feed]time.Time),
		errs:      make(map[types.Feed]error),
		holds:     make(map[types.Feed]*hold),
		realtime:  types.RealtimeSample{Power: 1234.5, Current: 5.126, Voltage: 239.49},
		power:     types.PowerState{IsOn: true, UptimeSeconds: 90061},
		day: []types.UsageEntry{
			{Year: 2024, Month: 3, Day: 1, Energy: 1.5},
			{Year: 2024, Month: 3, Day: 2, Energy: 2.5},
		},
		month: []types.UsageEntry{
			{Year: 2024, Month: 2, Energy: 2.0},
			{Year: 2024, Month: 3, Energy: 3.0},
		},
	}
}

func (f *fakeSource) enter(ctx context.Context, feed types.Feed) error {
	f.mu.Lock()
	f.calls[feed]++
	if d, ok := ctx.Deadline(); ok {
		f.deadlines[feed] = d
	}
	h := f.holds[feed]
	delete(f.holds, feed)
	err := f.errs[feed]
	f.mu.Unlock()

	if h != nil {
		close(h.started)
		<-h.release
	}
	return err
}

func (f *fakeSource) hold(feed types.Feed) *hold {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &hold{started: make(chan struct{}), release: make(chan struct{})}
	f.holds[feed] = h
	return h
}

func (f *fakeSource) setErr(feed types.Feed, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[feed] = err
}

func (f *fakeSource) count(feed types.Feed) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[feed]
}

func (f *fakeSource) Realtime(ctx context.Context) (types.RealtimeSample, error) {
	if err := f.enter(ctx, types.FeedRealtime); err != nil {
		return types.RealtimeSample{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.realtime, nil
}

func (f *fakeSource) PowerState(ctx context.Context) (types.PowerState, error) {
	if err := f.enter(ctx, types.FeedPowerState); err != nil {
		return types.PowerState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.power, nil
}

func (f *fakeSource) DayStats(ctx context.Context) ([]types.UsageEntry, error) {
	if err := f.enter(ctx, types.FeedDailyStats); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.day, nil
}

func (f *fakeSource) MonthStats(ctx context.Context) ([]types.UsageEntry, error) {
	if err := f.enter(ctx, types.FeedMonthlyStats); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.month, nil
}

func newTestController(src backend.Source) (*Controller, *display.State, *schedulemock.Clock) {
	clk := schedulemock.NewClock(t0)
	state := display.NewState(types.DefaultGauge(), trend.DefaultRetention)
	c := NewController(src, state, clk, DefaultConfig())
	return c, state, clk
}

func TestRealtimeFeed(t *testing.T) {
	t.Run("Rounding", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		snap := state.Snapshot()
		assert.Equal(t, 1235.0, snap.Gauge.Value)
		assert.Equal(t, "1235 W", snap.Text[types.FieldPower])
		assert.Equal(t, "5.13 A", snap.Text[types.FieldCurrent])
		assert.Equal(t, "239 V", snap.Text[types.FieldVoltage])
		require.Len(t, snap.Trend, 1)
		assert.Equal(t, types.TrendPoint{Timestamp: t0, Value: 1235}, snap.Trend[0])

		power, ok := c.LastSample()
		assert.True(t, ok)
		assert.Equal(t, 1235.0, power)
	})

	t.Run("Sink Calls", func(t *testing.T) {
		src := newFakeSource()
		for _, f := range []types.Feed{types.FeedPowerState, types.FeedDailyStats, types.FeedMonthlyStats} {
			src.setErr(f, &backend.NetworkError{Endpoint: string(f), Err: errors.New("connection refused")})
		}
		sink := &displaymock.MockSink{}
		sink.On("SetPolling", true).Once()
		sink.On("SetGaugeValue", 1235.0).Once()
		sink.On("SetText", types.FieldPower, "1235 W").Once()
		sink.On("SetText", types.FieldCurrent, "5.13 A").Once()
		sink.On("SetText", types.FieldVoltage, "239 V").Once()
		sink.On("AppendTrendPoint", types.TrendPoint{Timestamp: t0, Value: 1235}).Once()
		sink.On("RecordPoll", types.FeedRealtime, t0, nil).Once()
		for _, f := range []types.Feed{types.FeedPowerState, types.FeedDailyStats, types.FeedMonthlyStats} {
			sink.On("RecordPoll", f, t0, mock.MatchedBy(backend.IsNetworkError)).Once()
		}

		clk := schedulemock.NewClock(t0)
		c := NewController(src, sink, clk, DefaultConfig())
		c.Start()
		clk.Advance(0)
		sink.AssertExpectations(t)
	})

	t.Run("Request Timeout", func(t *testing.T) {
		src := newFakeSource()
		c, _, clk := newTestController(src)
		before := time.Now()
		c.Start()
		clk.Advance(0)

		src.mu.Lock()
		defer src.mu.Unlock()
		assert.WithinDuration(t, before.Add(2*time.Second), src.deadlines[types.FeedRealtime], time.Second)
		assert.WithinDuration(t, before.Add(2*time.Second), src.deadlines[types.FeedPowerState], time.Second)
		assert.WithinDuration(t, before.Add(4*time.Second), src.deadlines[types.FeedDailyStats], time.Second)
		assert.WithinDuration(t, before.Add(4*time.Second), src.deadlines[types.FeedMonthlyStats], time.Second)
	})
}

func TestCadence(t *testing.T) {
	src := newFakeSource()
	c, _, clk := newTestController(src)
	c.Start()

	clk.Advance(0)
	for _, f := range types.Feeds {
		assert.Equal(t, 1, src.count(f), "feed %s", f)
	}

	clk.Advance(time.Second)
	assert.Equal(t, 2, src.count(types.FeedRealtime))
	assert.Equal(t, 1, src.count(types.FeedPowerState))

	clk.Advance(59 * time.Second)
	assert.Equal(t, 61, src.count(types.FeedRealtime))
	assert.Equal(t, 2, src.count(types.FeedPowerState))
	assert.Equal(t, 1, src.count(types.FeedDailyStats))

	clk.Advance(4 * time.Minute)
	assert.Equal(t, 301, src.count(types.FeedRealtime))
	assert.Equal(t, 6, src.count(types.FeedPowerState))
	assert.Equal(t, 2, src.count(types.FeedDailyStats))
	assert.Equal(t, 2, src.count(types.FeedMonthlyStats))

	// one pending timer per feed
	assert.Equal(t, 4, clk.Pending())
}

func TestToggle(t *testing.T) {
	t.Run("Stop Halts All Feeds", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)
		assert.True(t, c.Enabled())
		assert.True(t, state.Snapshot().Streaming)

		c.Stop()
		assert.False(t, c.Enabled())
		assert.False(t, state.Snapshot().Streaming)
		assert.Equal(t, 0, clk.Pending())

		clk.Advance(10 * time.Minute)
		for _, f := range types.Feeds {
			assert.Equal(t, 1, src.count(f), "feed %s", f)
		}
	})

	t.Run("Restart Without Double Fire", func(t *testing.T) {
		src := newFakeSource()
		c, _, clk := newTestController(src)
		c.SetEnabled(true)
		clk.Advance(0)
		clk.Advance(500 * time.Millisecond)

		c.SetEnabled(false)
		c.SetEnabled(true)
		clk.Advance(0)
		for _, f := range types.Feeds {
			assert.Equal(t, 2, src.count(f), "feed %s", f)
		}
		assert.Equal(t, 4, clk.Pending())

		clk.Advance(time.Second)
		assert.Equal(t, 3, src.count(types.FeedRealtime))

		clk.Advance(10 * time.Second)
		assert.Equal(t, 13, src.count(types.FeedRealtime))
	})

	t.Run("Start Twice", func(t *testing.T) {
		src := newFakeSource()
		c, _, clk := newTestController(src)
		c.Start()
		c.Start()
		clk.Advance(0)
		assert.Equal(t, 1, src.count(types.FeedRealtime))
		assert.Equal(t, 4, clk.Pending())
	})

	t.Run("Stop When Stopped", func(t *testing.T) {
		sink := &displaymock.MockSink{}
		c := NewController(newFakeSource(), sink, schedulemock.NewClock(t0), DefaultConfig())
		c.Stop()
		sink.AssertNotCalled(t, "SetPolling", mock.Anything)
	})
}

func TestStats(t *testing.T) {
	t.Run("Daily", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		snap := state.Snapshot()
		assert.Equal(t, "2.50", snap.Text[types.FieldTotalDay])
		assert.Equal(t, "2.00", snap.Text[types.FieldAvgDay])
		assert.Equal(t, display.BarSeries{
			Labels: []string{"Mar 1", "Mar 2"},
			Values: []float64{1.5, 2.5},
		}, snap.Charts[types.ChartDailyUsage])
	})

	t.Run("Monthly", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		snap := state.Snapshot()
		assert.Equal(t, "3.00", snap.Text[types.FieldTotalMonth])
		assert.Equal(t, "2.50", snap.Text[types.FieldAvgMonth])
		assert.Equal(t, []string{"Feb", "Mar"}, snap.Charts[types.ChartMonthlyUsage].Labels)
	})

	t.Run("Current Period Absent", func(t *testing.T) {
		src := newFakeSource()
		src.day = []types.UsageEntry{{Year: 2024, Month: 2, Day: 28, Energy: 4}}
		src.month = []types.UsageEntry{{Year: 2023, Month: 3, Energy: 100}}
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		snap := state.Snapshot()
		assert.Equal(t, types.NoData, snap.Text[types.FieldTotalDay])
		assert.Equal(t, "4.00", snap.Text[types.FieldAvgDay])
		assert.Equal(t, types.NoData, snap.Text[types.FieldTotalMonth])
		assert.Equal(t, "100.00", snap.Text[types.FieldAvgMonth])
		assert.Empty(t, snap.Feeds[types.FeedDailyStats].LastError)
		assert.Equal(t, t0, snap.Feeds[types.FeedDailyStats].LastSuccess)
	})

	t.Run("Re-poll Replaces Series", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)
		require.Len(t, state.Snapshot().Charts[types.ChartDailyUsage].Labels, 2)

		src.mu.Lock()
		src.day = []types.UsageEntry{{Year: 2024, Month: 3, Day: 2, Energy: 7}}
		src.mu.Unlock()
		clk.Advance(5 * time.Minute)

		snap := state.Snapshot()
		assert.Equal(t, display.BarSeries{
			Labels: []string{"Mar 2"},
			Values: []float64{7},
		}, snap.Charts[types.ChartDailyUsage])
		assert.Equal(t, "7.00", snap.Text[types.FieldTotalDay])
		assert.Equal(t, "7.00", snap.Text[types.FieldAvgDay])
	})
}

func TestPowerStateFeed(t *testing.T) {
	src := newFakeSource()
	c, state, clk := newTestController(src)
	c.Start()
	clk.Advance(0)

	snap := state.Snapshot()
	require.NotNil(t, snap.Status)
	assert.Equal(t, display.Status{IsOn: true, Text: "ON", Class: "label label-success"}, *snap.Status)
	assert.Equal(t, "1d 1h 1m", snap.Text[types.FieldUptime])

	src.mu.Lock()
	src.power = types.PowerState{IsOn: false, UptimeSeconds: 0}
	src.mu.Unlock()
	clk.Advance(time.Minute)

	snap = state.Snapshot()
	assert.Equal(t, display.Status{IsOn: false, Text: "OFF", Class: "label label-danger"}, *snap.Status)
	assert.Equal(t, "0m", snap.Text[types.FieldUptime])
}

func TestTrendRetention(t *testing.T) {
	src := newFakeSource()
	c, state, clk := newTestController(src)
	c.Start()
	clk.Advance(0)
	clk.Advance(2 * time.Minute)

	points := state.Snapshot().Trend
	require.NotEmpty(t, points)
	latest := points[len(points)-1].Timestamp
	assert.Equal(t, t0.Add(2*time.Minute), latest)
	for _, p := range points {
		assert.False(t, p.Timestamp.Before(latest.Add(-trend.DefaultRetention)), "point %v is too old", p.Timestamp)
	}
	assert.Len(t, points, 61)

	power, ok := c.LastSample()
	require.True(t, ok)
	assert.Equal(t, 1235.0, power)
}

func TestFailedPolls(t *testing.T) {
	t.Run("Network Error Keeps Display", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		src.setErr(types.FeedRealtime, &backend.NetworkError{Endpoint: "realtime", Err: context.DeadlineExceeded})
		clk.Advance(3 * time.Second)
		assert.Equal(t, 4, src.count(types.FeedRealtime), "loop keeps its cadence")

		snap := state.Snapshot()
		assert.Equal(t, "1235 W", snap.Text[types.FieldPower])
		assert.Len(t, snap.Trend, 1)
		assert.Equal(t, 3, snap.Feeds[types.FeedRealtime].ConsecutiveFailures)
		assert.NotEmpty(t, snap.Feeds[types.FeedRealtime].LastError)
		assert.Equal(t, t0, snap.Feeds[types.FeedRealtime].LastSuccess)

		src.setErr(types.FeedRealtime, nil)
		clk.Advance(time.Second)
		snap = state.Snapshot()
		assert.Equal(t, 0, snap.Feeds[types.FeedRealtime].ConsecutiveFailures)
		assert.Len(t, snap.Trend, 2)
	})

	t.Run("Protocol Error Keeps Chart", func(t *testing.T) {
		src := newFakeSource()
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		src.setErr(types.FeedDailyStats, &backend.ProtocolError{Endpoint: "day-stats", StatusCode: 200, Message: "malformed json"})
		clk.Advance(5 * time.Minute)
		assert.Equal(t, 2, src.count(types.FeedDailyStats))

		snap := state.Snapshot()
		assert.Equal(t, []string{"Mar 1", "Mar 2"}, snap.Charts[types.ChartDailyUsage].Labels)
		assert.Equal(t, "2.50", snap.Text[types.FieldTotalDay])
		assert.Equal(t, 1, snap.Feeds[types.FeedDailyStats].ConsecutiveFailures)

		clk.Advance(5 * time.Minute)
		assert.Equal(t, 3, src.count(types.FeedDailyStats))
	})

	t.Run("Unclassified Error", func(t *testing.T) {
		src := newFakeSource()
		src.setErr(types.FeedPowerState, errors.New("boom"))
		c, state, clk := newTestController(src)
		c.Start()
		clk.Advance(0)

		snap := state.Snapshot()
		assert.Nil(t, snap.Status)
		assert.Equal(t, "boom", snap.Feeds[types.FeedPowerState].LastError)
		assert.Equal(t, 4, clk.Pending())
	})
}

func TestInFlight(t *testing.T) {
	t.Run("Late Response After Stop", func(t *testing.T) {
		src := newFakeSource()
		h := src.hold(types.FeedRealtime)
		c, state, clk := newTestController(src)
		c.Start()

		done := make(chan struct{})
		go func() {
			defer close(done)
			clk.Advance(0)
		}()
		<-h.started

		c.Stop()
		close(h.release)
		<-done

		snap := state.Snapshot()
		assert.NotContains(t, snap.Text, types.FieldPower)
		assert.Empty(t, snap.Trend)
		assert.NotContains(t, snap.Feeds, types.FeedRealtime)
		_, ok := c.LastSample()
		assert.False(t, ok)
		assert.Equal(t, 0, clk.Pending())
		for _, f := range types.Feeds[1:] {
			assert.Equal(t, 0, src.count(f), "feed %s", f)
		}
	})

	t.Run("Restart Waits For In Flight Request", func(t *testing.T) {
		src := newFakeSource()
		h := src.hold(types.FeedRealtime)
		c, state, clk := newTestController(src)
		c.Start()

		done := make(chan struct{})
		go func() {
			defer close(done)
			clk.Advance(0)
		}()
		<-h.started

		c.Stop()
		c.Start()
		assert.Equal(t, 1, src.count(types.FeedRealtime), "no second request while one is in flight")

		close(h.release)
		<-done

		for _, f := range types.Feeds {
			want := 1
			if f == types.FeedRealtime {
				want = 2
			}
			assert.Equal(t, want, src.count(f), "feed %s", f)
		}
		assert.Equal(t, "1235 W", state.Snapshot().Text[types.FieldPower])
		assert.Len(t, state.Snapshot().Trend, 1)
		assert.Equal(t, 4, clk.Pending())
	})
}

func TestRun(t *testing.T) {
	src := newFakeSource()
	c, state, _ := newTestController(src)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()

	require.Eventually(t, c.Enabled, time.Second, time.Millisecond)
	assert.True(t, state.Snapshot().Polling)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, c.Enabled())
	assert.False(t, state.Snapshot().Polling)
}

func TestConfig(t *testing.T) {
	t.Run("Default Is Valid", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, time.Second, cfg.Feeds[types.FeedRealtime].Interval)
		assert.Equal(t, time.Minute, cfg.Feeds[types.FeedPowerState].Interval)
		assert.Equal(t, 5*time.Minute, cfg.Feeds[types.FeedDailyStats].Interval)
		assert.Equal(t, 4*time.Second, cfg.Feeds[types.FeedMonthlyStats].Timeout)
	})

	t.Run("Invalid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Feeds[types.FeedRealtime] = FeedConfig{Interval: 0, Timeout: time.Second}
		assert.ErrorContains(t, cfg.Validate(), "realtime interval")

		cfg = DefaultConfig()
		delete(cfg.Feeds, types.FeedMonthlyStats)
		assert.ErrorContains(t, cfg.Validate(), "monthlyStats")

		cfg = DefaultConfig()
		cfg.TrendRetention = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Custom Cadence", func(t *testing.T) {
		src := newFakeSource()
		cfg := DefaultConfig()
		cfg.Feeds[types.FeedRealtime] = FeedConfig{Interval: 5 * time.Second, Timeout: time.Second}
		clk := schedulemock.NewClock(t0)
		c := NewController(src, display.NewState(types.DefaultGauge(), time.Minute), clk, cfg)
		assert.Equal(t, 5*time.Second, c.Config().Feeds[types.FeedRealtime].Interval)

		c.Start()
		clk.Advance(0)
		clk.Advance(10 * time.Second)
		assert.Equal(t, 3, src.count(types.FeedRealtime))
	})
}
