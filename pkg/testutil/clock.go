package testutil

import "time"

// FixedClock returns a clock function pinned to the given instant. Engine and
// services take a Now func so tests control status validity intervals and
// history timestamps deterministically.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// SteppingClock returns a clock that advances by step on every call, starting
// at the given instant. Useful when a test needs strictly increasing
// timestamps without real sleeping.
func SteppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start.Add(-step)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}
