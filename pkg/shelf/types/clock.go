package types

import "time"

// Clock abstracts time retrieval so matching and logging are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the actual current time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }
