package schedule

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was already stopped.
	Stop() bool
}

// Clock abstracts time so that polling loops can be driven by a fake clock in
// tests.
type Clock interface {
	Now() time.Time

	// AfterFunc waits for d to elapse and then calls f in its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
