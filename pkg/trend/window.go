package trend

import (
	"sort"
	"sync"
	"time"

	"github.com/raterudder/energydash/pkg/types"
)

// DefaultRetention is how long points are kept when no retention is given.
const DefaultRetention = 60 * time.Second

// Window is a time-ordered buffer of trend points. Points older than the
// retention, measured from the newest point, are evicted on every insert.
type Window struct {
	mu        sync.Mutex
	retention time.Duration
	points    []types.TrendPoint
}

// NewWindow returns an empty Window. A non-positive retention uses
// DefaultRetention.
func NewWindow(retention time.Duration) *Window {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Window{retention: retention}
}

// SetRetention changes the retention. Existing points are evicted on the next
// Append.
func (w *Window) SetRetention(retention time.Duration) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.retention = retention
}

// Append inserts p keeping the buffer ordered by timestamp and evicts every
// point older than the retention relative to the newest point.
func (w *Window) Append(p types.TrendPoint) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// points almost always arrive in order so check the tail first
	n := len(w.points)
	if n == 0 || !p.Timestamp.Before(w.points[n-1].Timestamp) {
		w.points = append(w.points, p)
	} else {
		i := sort.Search(n, func(i int) bool {
			return w.points[i].Timestamp.After(p.Timestamp)
		})
		w.points = append(w.points, types.TrendPoint{})
		copy(w.points[i+1:], w.points[i:])
		w.points[i] = p
	}

	newest := w.points[len(w.points)-1].Timestamp
	cutoff := newest.Add(-w.retention)
	drop := sort.Search(len(w.points), func(i int) bool {
		return !w.points[i].Timestamp.Before(cutoff)
	})
	if drop > 0 {
		w.points = append(w.points[:0:0], w.points[drop:]...)
	}
}

// Points returns a copy of the buffered points, oldest first.
func (w *Window) Points() []types.TrendPoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.TrendPoint(nil), w.points...)
}

// Latest returns the newest point and false if the window is empty.
func (w *Window) Latest() (types.TrendPoint, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.points) == 0 {
		return types.TrendPoint{}, false
	}
	return w.points[len(w.points)-1], true
}
