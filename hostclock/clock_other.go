//go:build !linux

package hostclock

import (
	"time"

	"gitlab.com/ppsgen/ppsgen/timing"
)

// Clock reads the wall clock through the standard library. Resolution
// depends on the platform; the engine's error tracker absorbs whatever
// jitter that adds.
type Clock struct{}

// Now returns the current wall-clock time.
func (Clock) Now() timing.Timestamp {
	now := time.Now()
	return timing.Timestamp{Sec: now.Unix(), Nsec: int64(now.Nanosecond())}
}
