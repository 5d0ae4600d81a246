// Package system provides the wall clock used to stamp received tasks and
// in-flight executions.
package system

import "time"

// Clock reads time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. The monotonic reading is kept so
// durations computed from two calls stay correct across wall clock jumps.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
