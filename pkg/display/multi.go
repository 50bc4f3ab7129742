package display

import (
	"time"

	"github.com/raterudder/energydash/pkg/types"
)

type multiSink []Sink

// Multi returns a Sink that forwards every call to each of sinks in order.
// Nil sinks are skipped. PollObserver calls are forwarded to the sinks that
// implement it.
func Multi(sinks ...Sink) Sink {
	m := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if inner, ok := s.(multiSink); ok {
			m = append(m, inner...)
			continue
		}
		m = append(m, s)
	}
	return m
}

func (m multiSink) SetGaugeValue(v float64) {
	for _, s := range m {
		s.SetGaugeValue(v)
	}
}

func (m multiSink) AppendTrendPoint(p types.TrendPoint) {
	for _, s := range m {
		s.AppendTrendPoint(p)
	}
}

func (m multiSink) SetBarSeries(chart types.ChartID, labels []string, values []float64) {
	for _, s := range m {
		s.SetBarSeries(chart, labels, values)
	}
}

func (m multiSink) SetText(field types.FieldID, text string) {
	for _, s := range m {
		s.SetText(field, text)
	}
}

func (m multiSink) SetStatusLabel(isOn bool) {
	for _, s := range m {
		s.SetStatusLabel(isOn)
	}
}

func (m multiSink) SetPolling(enabled bool) {
	for _, s := range m {
		if o, ok := s.(PollObserver); ok {
			o.SetPolling(enabled)
		}
	}
}

func (m multiSink) RecordPoll(feed types.Feed, at time.Time, err error) {
	for _, s := range m {
		if o, ok := s.(PollObserver); ok {
			o.RecordPoll(feed, at, err)
		}
	}
}
