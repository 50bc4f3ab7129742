package transform

import (
	"fmt"
	"strconv"
	"time"

	"github.com/raterudder/energydash/pkg/types"
)

// Series is a labeled bar chart series, one value per label.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// DailySeries maps each entry to a "Jan 2" label, preserving input order.
func DailySeries(entries []types.UsageEntry) Series {
	s := Series{
		Labels: make([]string, 0, len(entries)),
		Values: make([]float64, 0, len(entries)),
	}
	for _, e := range entries {
		day := time.Date(e.Year, time.Month(e.Month), e.Day, 0, 0, 0, 0, time.UTC)
		s.Labels = append(s.Labels, day.Format("Jan 2"))
		s.Values = append(s.Values, e.Energy)
	}
	return s
}

// MonthlySeries maps each entry to a "Jan" label, preserving input order.
func MonthlySeries(entries []types.UsageEntry) Series {
	s := Series{
		Labels: make([]string, 0, len(entries)),
		Values: make([]float64, 0, len(entries)),
	}
	for _, e := range entries {
		month := time.Date(e.Year, time.Month(e.Month), 1, 0, 0, 0, 0, time.UTC)
		s.Labels = append(s.Labels, month.Format("Jan"))
		s.Values = append(s.Values, e.Energy)
	}
	return s
}

// DataAbsentError is returned when no entry matches the current calendar day
// or month.
type DataAbsentError struct {
	Period string
	Date   time.Time
}

func (e *DataAbsentError) Error() string {
	switch e.Period {
	case "day":
		return fmt.Sprintf("no usage entry for day %s", e.Date.Format("2006-01-02"))
	default:
		return fmt.Sprintf("no usage entry for month %s", e.Date.Format("2006-01"))
	}
}

// Summary is the current-period total and the mean over all entries.
type Summary struct {
	Total      float64
	HasTotal   bool
	Average    float64
	HasAverage bool
}

// TotalText formats the total with two decimals or returns types.NoData.
func (s Summary) TotalText() string {
	if !s.HasTotal {
		return types.NoData
	}
	return strconv.FormatFloat(s.Total, 'f', 2, 64)
}

// AverageText formats the average with two decimals or returns types.NoData.
func (s Summary) AverageText() string {
	if !s.HasAverage {
		return types.NoData
	}
	return strconv.FormatFloat(s.Average, 'f', 2, 64)
}

// DailySummary finds the entry for now's calendar day and averages all
// entries. A missing day yields a *DataAbsentError alongside a Summary that
// still carries the average.
func DailySummary(entries []types.UsageEntry, now time.Time) (Summary, error) {
	return summarize(entries, now, "day", func(e types.UsageEntry) bool {
		return e.Year == now.Year() && e.Month == int(now.Month()) && e.Day == now.Day()
	})
}

// MonthlySummary finds the entry for now's calendar month and averages all
// entries. A missing month yields a *DataAbsentError alongside a Summary that
// still carries the average.
func MonthlySummary(entries []types.UsageEntry, now time.Time) (Summary, error) {
	return summarize(entries, now, "month", func(e types.UsageEntry) bool {
		return e.Year == now.Year() && e.Month == int(now.Month())
	})
}

func summarize(entries []types.UsageEntry, now time.Time, period string, current func(types.UsageEntry) bool) (Summary, error) {
	var s Summary
	var total float64
	for _, e := range entries {
		if !s.HasTotal && current(e) {
			s.Total = e.Energy
			s.HasTotal = true
		}
		total += e.Energy
	}
	if len(entries) > 0 {
		s.Average = total / float64(len(entries))
		s.HasAverage = true
	}
	if !s.HasTotal {
		return s, &DataAbsentError{Period: period, Date: now}
	}
	return s, nil
}
