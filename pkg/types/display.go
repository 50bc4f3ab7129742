package types

// Feed identifies one independently scheduled poll-and-render loop.
type Feed string

const (
	FeedRealtime     Feed = "realtime"
	FeedPowerState   Feed = "powerState"
	FeedDailyStats   Feed = "dailyStats"
	FeedMonthlyStats Feed = "monthlyStats"
)

// Feeds lists every feed in the order they are started.
var Feeds = []Feed{FeedRealtime, FeedPowerState, FeedDailyStats, FeedMonthlyStats}

// ChartID identifies a bar chart on the dashboard.
type ChartID string

const (
	ChartDailyUsage   ChartID = "du-chart"
	ChartMonthlyUsage ChartID = "mu-chart"
)

// FieldID identifies a text field on the dashboard.
type FieldID string

const (
	FieldPower      FieldID = "rtu-power"
	FieldCurrent    FieldID = "rtu-current"
	FieldVoltage    FieldID = "rtu-voltage"
	FieldUptime     FieldID = "uptime"
	FieldTotalDay   FieldID = "total-day"
	FieldAvgDay     FieldID = "avg-day"
	FieldTotalMonth FieldID = "total-month"
	FieldAvgMonth   FieldID = "avg-month"
)

// NoData is shown in place of a total or average that cannot be computed.
const NoData = "no data"

// GaugeZone is a colored band on the realtime power gauge.
type GaugeZone struct {
	Color string  `json:"color"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// GaugeConfig describes the realtime power gauge range and its zones.
type GaugeConfig struct {
	Min    float64     `json:"min"`
	Max    float64     `json:"max"`
	Labels []float64   `json:"labels"`
	Zones  []GaugeZone `json:"zones"`
}

// DefaultGauge is the 0-3000W gauge with green, yellow and red zones.
func DefaultGauge() GaugeConfig {
	return GaugeConfig{
		Min:    0,
		Max:    3000,
		Labels: []float64{500, 1500, 3000},
		Zones: []GaugeZone{
			{Color: "#30B32D", Min: 0, Max: 500},
			{Color: "#FFDD00", Min: 500, Max: 1500},
			{Color: "#F03E3E", Min: 1500, Max: 3000},
		},
	}
}

// Clamp limits v to the gauge range.
func (g GaugeConfig) Clamp(v float64) float64 {
	if v < g.Min {
		return g.Min
	}
	if v > g.Max {
		return g.Max
	}
	return v
}
