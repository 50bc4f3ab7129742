package displaymock

import (
	"time"

	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockSink is a testify mock of display.Sink and display.PollObserver.
type MockSink struct {
	mock.Mock
}

var (
	_ display.Sink         = (*MockSink)(nil)
	_ display.PollObserver = (*MockSink)(nil)
)

func (m *MockSink) SetGaugeValue(v float64) {
	m.Called(v)
}

func (m *MockSink) AppendTrendPoint(p types.TrendPoint) {
	m.Called(p)
}

func (m *MockSink) SetBarSeries(chart types.ChartID, labels []string, values []float64) {
	m.Called(chart, labels, values)
}

func (m *MockSink) SetText(field types.FieldID, text string) {
	m.Called(field, text)
}

func (m *MockSink) SetStatusLabel(isOn bool) {
	m.Called(isOn)
}

func (m *MockSink) SetPolling(enabled bool) {
	m.Called(enabled)
}

func (m *MockSink) RecordPoll(feed types.Feed, at time.Time, err error) {
	m.Called(feed, at, err)
}
