package display

import (
	"context"
	"log/slog"
	"time"

	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/types"
)

// Log is a Sink that writes every update to the context logger at debug
// level. It is useful when running headless.
type Log struct {
	ctx context.Context
}

var (
	_ Sink         = (*Log)(nil)
	_ PollObserver = (*Log)(nil)
)

// NewLog returns a Log sink writing through log.Ctx(ctx).
func NewLog(ctx context.Context) *Log {
	return &Log{ctx: log.With(ctx, log.Ctx(ctx).With(slog.String("sink", "log")))}
}

func (l *Log) SetGaugeValue(v float64) {
	log.Ctx(l.ctx).DebugContext(l.ctx, "gauge", slog.Float64("value", v))
}

func (l *Log) AppendTrendPoint(p types.TrendPoint) {
	log.Ctx(l.ctx).DebugContext(l.ctx, "trend point", slog.Time("timestamp", p.Timestamp), slog.Float64("value", p.Value))
}

func (l *Log) SetBarSeries(chart types.ChartID, labels []string, values []float64) {
	log.Ctx(l.ctx).DebugContext(
		l.ctx,
		"bar series",
		slog.String("chart", string(chart)),
		slog.Any("labels", labels),
		slog.Any("values", values),
	)
}

func (l *Log) SetText(field types.FieldID, text string) {
	log.Ctx(l.ctx).DebugContext(l.ctx, "text", slog.String("field", string(field)), slog.String("text", text))
}

func (l *Log) SetStatusLabel(isOn bool) {
	log.Ctx(l.ctx).DebugContext(l.ctx, "status", slog.Bool("isOn", isOn))
}

func (l *Log) SetPolling(enabled bool) {
	log.Ctx(l.ctx).InfoContext(l.ctx, "polling toggled", slog.Bool("enabled", enabled))
}

func (l *Log) RecordPoll(feed types.Feed, at time.Time, err error) {
	if err != nil {
		return
	}
	log.Ctx(l.ctx).DebugContext(l.ctx, "poll succeeded", slog.String("feed", string(feed)), slog.Time("at", at))
}
