package backend

import (
	"context"

	"github.com/raterudder/energydash/pkg/types"
)

// Source defines the interface for fetching dashboard data from the energy
// monitoring backend.
type Source interface {
	// Realtime returns the instantaneous power, current and voltage.
	Realtime(ctx context.Context) (types.RealtimeSample, error)

	// PowerState returns whether the load is on and its uptime.
	PowerState(ctx context.Context) (types.PowerState, error)

	// DayStats returns per-day energy usage in the order the backend sent it.
	DayStats(ctx context.Context) ([]types.UsageEntry, error)

	// MonthStats returns per-month energy usage in the order the backend sent it.
	MonthStats(ctx context.Context) ([]types.UsageEntry, error)
}
