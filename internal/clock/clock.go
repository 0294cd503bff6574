// Package clock abstracts time so that polling loops can be driven
// deterministically in tests.
package clock

import "time"

// Clock abstracts time-related functions for easier testing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Since(t time.Time) time.Duration
}

// Real implements Clock using the standard library. Now keeps the monotonic
// reading so Since is immune to wall-clock jumps.
type Real struct{}

// Now returns the current local time including its monotonic reading.
func (Real) Now() time.Time {
	return time.Now()
}

// After mirrors time.After while satisfying the Clock interface.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Since mirrors time.Since.
func (Real) Since(t time.Time) time.Duration {
	return time.Since(t)
}
