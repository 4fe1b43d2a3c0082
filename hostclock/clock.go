// Package hostclock provides the real wall-clock source and the
// absolute-deadline alarm the timing engine runs against in production.
//
// The alarm is deliberately one-shot: the engine recomputes the next
// deadline from live calibration after every firing, so a periodic timer
// would only accumulate drift.
package hostclock

import (
	"sync"
	"time"

	"gitlab.com/ppsgen/ppsgen/timing"
)

// Alarm fires a callback at an absolute wall-clock instant, implementing
// timing.Alarm on top of the Go runtime timer. Arming replaces any pending
// deadline; Cancel is synchronous and waits for an in-flight callback.
type Alarm struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool

	// runMu is held for the whole duration of a firing so Cancel can
	// block on it.
	runMu sync.Mutex
}

// Arm schedules fire to run at deadline, replacing any pending deadline.
// A deadline already in the past fires immediately; the engine's own
// lateness check decides whether the cycle is still usable.
func (a *Alarm) Arm(deadline timing.Timestamp, fire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}

	d := time.Until(time.Unix(deadline.Sec, deadline.Nsec))
	if d < 0 {
		d = 0
	}
	a.timer = time.AfterFunc(d, func() {
		a.runMu.Lock()
		defer a.runMu.Unlock()

		a.mu.Lock()
		cancelled := a.cancelled
		a.mu.Unlock()
		if cancelled {
			return
		}
		fire()
	})
}

// Cancel disarms any pending deadline, suppresses late firings, and blocks
// until a callback that is already running has returned. The alarm cannot
// be re-armed afterwards.
func (a *Alarm) Cancel() {
	a.mu.Lock()
	a.cancelled = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	a.runMu.Lock()
	a.runMu.Unlock() //nolint:staticcheck // empty section: wait for in-flight firing only
}
