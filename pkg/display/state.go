package display

import (
	"sync"
	"time"

	"github.com/raterudder/energydash/pkg/transform"
	"github.com/raterudder/energydash/pkg/trend"
	"github.com/raterudder/energydash/pkg/types"
)

// FeedHealth summarizes the recent polls of a single feed.
type FeedHealth struct {
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess,omitzero"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// BarSeries is the content of one bar chart.
type BarSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Status is the power status label.
type Status struct {
	IsOn  bool   `json:"isOn"`
	Text  string `json:"text"`
	Class string `json:"class"`
}

// Gauge is the realtime power gauge.
type Gauge struct {
	types.GaugeConfig
	Value float64 `json:"value"`
}

// Snapshot is a point in time copy of the dashboard.
type Snapshot struct {
	Polling   bool                        `json:"polling"`
	Streaming bool                        `json:"streaming"`
	Gauge     Gauge                       `json:"gauge"`
	Trend     []types.TrendPoint          `json:"trend"`
	Charts    map[types.ChartID]BarSeries `json:"charts"`
	Text      map[types.FieldID]string    `json:"text"`
	Status    *Status                     `json:"status"`
	Feeds     map[types.Feed]FeedHealth   `json:"feeds"`
	Version   uint64                      `json:"version"`
}

// State is an in-memory Sink holding everything needed to render the
// dashboard. It is safe for concurrent use and notifies subscribers after
// every change.
type State struct {
	mu        sync.Mutex
	gauge     Gauge
	trend     *trend.Window
	charts    map[types.ChartID]BarSeries
	text      map[types.FieldID]string
	status    *Status
	polling   bool
	feeds     map[types.Feed]FeedHealth
	version   uint64
	nextSubID int
	subs      map[int]chan struct{}
}

var (
	_ Sink         = (*State)(nil)
	_ PollObserver = (*State)(nil)
)

// NewState returns an empty State for the given gauge whose trend line keeps
// points for retention.
func NewState(gauge types.GaugeConfig, retention time.Duration) *State {
	return &State{
		gauge:  Gauge{GaugeConfig: gauge},
		trend:  trend.NewWindow(retention),
		charts: make(map[types.ChartID]BarSeries),
		text:   make(map[types.FieldID]string),
		feeds:  make(map[types.Feed]FeedHealth),
		subs:   make(map[int]chan struct{}),
	}
}

// SetTrendRetention changes how long trend points are kept.
func (s *State) SetTrendRetention(retention time.Duration) {
	s.trend.SetRetention(retention)
}

// changed must be called with mu held.
func (s *State) changed() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// a notification is already pending
		}
	}
}

// SetGaugeValue stores v clamped to the gauge range.
func (s *State) SetGaugeValue(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauge.Value = s.gauge.Clamp(v)
	s.changed()
}

func (s *State) AppendTrendPoint(p types.TrendPoint) {
	s.trend.Append(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed()
}

func (s *State) SetBarSeries(chart types.ChartID, labels []string, values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charts[chart] = BarSeries{
		Labels: append([]string{}, labels...),
		Values: append([]float64{}, values...),
	}
	s.changed()
}

func (s *State) SetText(field types.FieldID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text[field] = text
	s.changed()
}

func (s *State) SetStatusLabel(isOn bool) {
	text, class := transform.StatusLabel(isOn)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &Status{IsOn: isOn, Text: text, Class: class}
	s.changed()
}

// SetPolling records whether polling, and therefore trend streaming, is on.
func (s *State) SetPolling(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polling = enabled
	s.changed()
}

// RecordPoll updates the health of feed.
func (s *State) RecordPoll(feed types.Feed, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.feeds[feed]
	h.LastAttempt = at
	if err != nil {
		h.LastError = err.Error()
		h.ConsecutiveFailures++
	} else {
		h.LastSuccess = at
		h.LastError = ""
		h.ConsecutiveFailures = 0
	}
	s.feeds[feed] = h
	s.changed()
}

// Snapshot returns a deep copy of the current dashboard.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Polling:   s.polling,
		Streaming: s.polling,
		Gauge:     s.gauge,
		Trend:     s.trend.Points(),
		Charts:    make(map[types.ChartID]BarSeries, len(s.charts)),
		Text:      make(map[types.FieldID]string, len(s.text)),
		Feeds:     make(map[types.Feed]FeedHealth, len(s.feeds)),
		Version:   s.version,
	}
	snap.Gauge.Labels = append([]float64(nil), s.gauge.Labels...)
	snap.Gauge.Zones = append([]types.GaugeZone(nil), s.gauge.Zones...)
	for k, v := range s.charts {
		snap.Charts[k] = BarSeries{
			Labels: append([]string{}, v.Labels...),
			Values: append([]float64{}, v.Values...),
		}
	}
	for k, v := range s.text {
		snap.Text[k] = v
	}
	for k, v := range s.feeds {
		snap.Feeds[k] = v
	}
	if s.status != nil {
		st := *s.status
		snap.Status = &st
	}
	return snap
}

// Subscribe returns a channel that receives a value after changes to the
// state. Notifications are coalesced so a slow reader only sees the latest
// change. The returned function unsubscribes and must be called.
func (s *State) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
