package types

import "time"

// RealtimeSample is a single instantaneous reading from the energy monitor.
type RealtimeSample struct {
	Power   float64 `json:"power"`
	Current float64 `json:"current"`
	Voltage float64 `json:"voltage"`
}

// PowerState reports whether the monitored load is switched on and for how long.
type PowerState struct {
	IsOn          bool    `json:"isOn"`
	UptimeSeconds float64 `json:"uptime"`
}

// UsageEntry is one bucket of a daily or monthly usage series. Month is
// 1-based. Day is zero for monthly entries.
type UsageEntry struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Day    int     `json:"day,omitempty"`
	Energy float64 `json:"energy"`
}

// TrendPoint is a single point of the realtime power trend.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
