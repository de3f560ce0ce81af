package util

import "time"

// Timer measures how long a pipeline stage runs. The zero Timer reports no
// elapsed time, so stages that never started record zero.
type Timer struct {
	start time.Time
}

// StartTimer starts a timer at the current instant.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed is the wall time since StartTimer.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}

// ElapsedMs is Elapsed truncated to whole milliseconds, the unit of stage timings.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}
