package transform

import (
	"math"
	"strconv"

	"github.com/raterudder/energydash/pkg/types"
)

// RealtimeView is a realtime sample rounded for display.
type RealtimeView struct {
	// Power and Voltage are whole numbers kept as floats so that any reading
	// the backend can send stays representable.
	Power   float64
	Voltage float64
	// Current is always formatted with exactly two decimal places.
	Current string
}

// Realtime rounds power and voltage to whole units and formats current with
// two decimals.
func Realtime(s types.RealtimeSample) RealtimeView {
	return RealtimeView{
		Power:   roundHalfUp(s.Power),
		Voltage: roundHalfUp(s.Voltage),
		Current: strconv.FormatFloat(s.Current, 'f', 2, 64),
	}
}

// PowerText is the power field text, e.g. "1235 W".
func (v RealtimeView) PowerText() string {
	return strconv.FormatFloat(v.Power, 'f', 0, 64) + " W"
}

// CurrentText is the current field text, e.g. "5.12 A".
func (v RealtimeView) CurrentText() string {
	return v.Current + " A"
}

// VoltageText is the voltage field text, e.g. "240 V".
func (v RealtimeView) VoltageText() string {
	return strconv.FormatFloat(v.Voltage, 'f', 0, 64) + " V"
}

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
