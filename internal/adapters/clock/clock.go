package clock

import "time"

// Clock reads the wall clock.
type Clock struct{}

// NowUnix returns current unix seconds.
func (Clock) NowUnix() int64 {
	return time.Now().Unix()
}

// Fixed always returns the same instant. Handy in tests and dry runs.
type Fixed int64

// NowUnix returns the fixed instant.
func (f Fixed) NowUnix() int64 {
	return int64(f)
}
