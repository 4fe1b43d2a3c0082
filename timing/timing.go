// Package timing implements the PPS timing and calibration engine.
//
// The engine drives a single digital output line so that its rising edge
// lands on the top of each wall-clock second. It measures its own
// output-write latency, tracks how late the host usually dispatches its
// timer callback, and uses both to decide how early to wake up. The final
// approach to each edge is a busy-wait against the clock; everything before
// that is ordinary scheduling.
package timing

import "fmt"

// NsPerSec is one second in nanoseconds.
const NsPerSec = 1_000_000_000

// Timestamp is a wall-clock instant split into whole seconds since the
// epoch and the nanosecond offset within that second. 0 <= Nsec < NsPerSec.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

// TimestampOf converts an absolute nanosecond count into a Timestamp.
func TimestampOf(ns int64) Timestamp {
	return Timestamp{Sec: ns / NsPerSec, Nsec: ns % NsPerSec}
}

// Nanoseconds returns the instant as absolute nanoseconds since the epoch.
func (t Timestamp) Nanoseconds() int64 {
	return t.Sec*NsPerSec + t.Nsec
}

// Sub returns t - o in nanoseconds.
func (t Timestamp) Sub(o Timestamp) int64 {
	return t.Nanoseconds() - o.Nanoseconds()
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", t.Sec, t.Nsec)
}

// Clock supplies the current wall-clock time. Reads must be cheap; the
// engine polls it in a tight loop during the final approach to an edge.
type Clock interface {
	Now() Timestamp
}

// Alarm fires a callback at an absolute wall-clock instant. Arming replaces
// any previously armed deadline, so at most one deadline is ever
// outstanding. Cancel prevents further firing and blocks until an in-flight
// callback has returned.
type Alarm interface {
	Arm(deadline Timestamp, fire func())
	Cancel()
}

// Line is the digital output the pulse is emitted on. Both operations are
// synchronous and take a small, boundedly-variable time to take effect;
// that time is what the calibrator measures.
type Line interface {
	Assert()
	Deassert()
}

// Region grants a scoped uninterruptible execution context. Enter elevates
// the calling goroutine (pinning it to its OS thread, raising scheduling
// priority where the platform allows) and returns a release func that must
// run on every exit path. Preemption inside the region directly corrupts
// edge timing, so the engine holds it across the whole spin-wait window.
type Region interface {
	Enter() (release func())
}

// NopRegion is a Region that does nothing. It keeps tests and non-realtime
// platforms honest about the engine's control flow without needing
// privileges.
type NopRegion struct{}

// Enter returns a release func that does nothing.
func (NopRegion) Enter() (release func()) { return func() {} }

// spinUntil busy-polls clk until the observed time leaves second sec or its
// nanosecond offset reaches limit, and returns the last observation. This
// is a literal spin: no sleeping, no yielding. The burned cycles buy
// sub-microsecond edge placement that no timer on the host can provide.
func spinUntil(clk Clock, sec int64, limit int64) Timestamp {
	for {
		t := clk.Now()
		if t.Sec != sec || t.Nsec >= limit {
			return t
		}
	}
}
