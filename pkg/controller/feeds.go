package controller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/transform"
	"github.com/raterudder/energydash/pkg/types"
)

func (c *Controller) pollRealtime(ctx context.Context) (func(), error) {
	sample, err := c.source.Realtime(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		v := transform.Realtime(sample)
		power := v.Power
		c.sink.SetGaugeValue(power)
		c.sink.SetText(types.FieldPower, v.PowerText())
		c.sink.SetText(types.FieldCurrent, v.CurrentText())
		c.sink.SetText(types.FieldVoltage, v.VoltageText())

		p := types.TrendPoint{Timestamp: c.clock.Now(), Value: power}
		c.trend.Append(p)
		c.sink.AppendTrendPoint(p)
	}, nil
}

func (c *Controller) pollPowerState(ctx context.Context) (func(), error) {
	ps, err := c.source.PowerState(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		c.sink.SetStatusLabel(ps.IsOn)
		c.sink.SetText(types.FieldUptime, transform.Uptime(ps.UptimeSeconds))
	}, nil
}

func (c *Controller) pollDailyStats(ctx context.Context) (func(), error) {
	entries, err := c.source.DayStats(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		series := transform.DailySeries(entries)
		c.sink.SetBarSeries(types.ChartDailyUsage, series.Labels, series.Values)
		summary, err := transform.DailySummary(entries, c.clock.Now())
		logDataAbsent(ctx, err)
		c.sink.SetText(types.FieldTotalDay, summary.TotalText())
		c.sink.SetText(types.FieldAvgDay, summary.AverageText())
	}, nil
}

func (c *Controller) pollMonthlyStats(ctx context.Context) (func(), error) {
	entries, err := c.source.MonthStats(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		series := transform.MonthlySeries(entries)
		c.sink.SetBarSeries(types.ChartMonthlyUsage, series.Labels, series.Values)
		summary, err := transform.MonthlySummary(entries, c.clock.Now())
		logDataAbsent(ctx, err)
		c.sink.SetText(types.FieldTotalMonth, summary.TotalText())
		c.sink.SetText(types.FieldAvgMonth, summary.AverageText())
	}, nil
}

// logDataAbsent logs a missing current-period entry. The poll itself still
// counts as successful.
func logDataAbsent(ctx context.Context, err error) {
	if err == nil {
		return
	}
	var dae *transform.DataAbsentError
	if errors.As(err, &dae) {
		log.Ctx(ctx).WarnContext(ctx, "current period missing from usage", slog.String("period", dae.Period), slog.Any("error", err))
		return
	}
	log.Ctx(ctx).ErrorContext(ctx, "failed to summarize usage", slog.Any("error", err))
}
