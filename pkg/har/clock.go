package har

import "time"

// Clock is the time source of the builder. It is replaced in tests to get
// deterministic timestamps and durations.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time                  { return time.Now() }
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// FixedClock always reports the same instant and the same elapsed time
type FixedClock struct {
	Time    time.Time
	Elapsed time.Duration
}

func (c FixedClock) Now() time.Time                { return c.Time }
func (c FixedClock) Since(time.Time) time.Duration { return c.Elapsed }
