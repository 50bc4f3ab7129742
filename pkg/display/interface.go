package display

import (
	"time"

	"github.com/raterudder/energydash/pkg/types"
)

// Sink defines the rendering capabilities the controller needs. It is
// satisfied by anything that can show a gauge, a trend line, bar charts, text
// fields and a status label.
type Sink interface {
	// SetGaugeValue moves the realtime power gauge.
	SetGaugeValue(v float64)

	// AppendTrendPoint adds a point to the realtime trend line. Eviction of old
	// points is up to the sink.
	AppendTrendPoint(p types.TrendPoint)

	// SetBarSeries replaces the labels and values of a bar chart.
	SetBarSeries(chart types.ChartID, labels []string, values []float64)

	// SetText replaces the contents of a text field.
	SetText(field types.FieldID, text string)

	// SetStatusLabel shows whether the load is on.
	SetStatusLabel(isOn bool)
}

// PollObserver is optionally implemented by sinks that also want to show
// polling health alongside the data.
type PollObserver interface {
	// SetPolling is called whenever polling is started or stopped.
	SetPolling(enabled bool)

	// RecordPoll is called after every completed poll with its error, if any.
	RecordPoll(feed types.Feed, at time.Time, err error)
}
