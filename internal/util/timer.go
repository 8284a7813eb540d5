package util

import "time"

// Timer measures wall-clock time for an analysis pass.
type Timer struct {
	start time.Time
}

// StartTimer returns a timer anchored at the current time.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the duration since the timer started.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}

// ElapsedMs returns the elapsed milliseconds since start, the unit stored
// alongside persisted analysis records.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}
