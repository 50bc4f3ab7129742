package transform

import (
	"math"
	"strconv"
	"strings"
)

// StatusLabel returns the status label text and its CSS class.
func StatusLabel(isOn bool) (string, string) {
	if isOn {
		return "ON", "label label-success"
	}
	return "OFF", "label label-danger"
}

// Uptime formats seconds as "1d 2h 3m". Leading zero units are dropped and
// minutes are rounded, so 90 seconds is "2m" and 0 is "0m".
func Uptime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := int64(math.Floor(seconds/60 + 0.5))
	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	minutes = minutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if days > 0 || hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	return strings.Join(parts, " ")
}
