// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements tracking.Clock using time.Now. Timestamps are UTC so
// stored completion dates never carry the host's zone.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
