// Package clock supplies the time source stamped onto crawler-hit events.
package clock

import "time"

// System reads the wall clock in UTC.
type System struct{}

// Now returns the current time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant; tests use it to pin event
// timestamps.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
