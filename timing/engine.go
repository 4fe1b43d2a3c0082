package timing

import (
	"fmt"
	"log"
	"sync"
)

const (
	// SafetyInterval is the fixed margin (ns) added to every scheduled
	// wake-up to absorb unavoidable dispatch latency. It also seeds the
	// scheduling-error estimate.
	SafetyInterval = 3000

	// MaxDelay is the largest accepted assert-to-deassert delay (ns).
	MaxDelay = 100000

	// DefaultDelay is the assert-to-deassert delay (ns) used when the
	// configuration does not set one.
	DefaultDelay = 30000

	// calibrationShift: the calibrator averages 1<<calibrationShift
	// write-latency trials with a plain right shift.
	calibrationShift = 5

	// lateArmCutoff: when arming the very first deadline, if fewer than
	// 10 ms remain in the current second, target the following second
	// instead.
	lateArmCutoff = 990_000_000
)

// Stats is a read-only snapshot of the engine's calibration state and
// pulse counters.
type Stats struct {
	WriteLatency    int64 // smoothed output-write latency, ns
	SchedulingError int64 // smoothed dispatch error, ns
	Emitted         uint64
	Missed          uint64
	Running         bool
}

// MissFunc is called once per missed edge with the timestamp observed on
// wake-up. It runs on the alarm callback, after the uninterruptible region
// has been released.
type MissFunc func(observed Timestamp)

// Engine generates one precisely timed pulse per second on a Line.
//
// All mutable calibration state is per-instance and written only from the
// alarm callback; there is exactly one outstanding deadline at any time
// because the callback re-arms exactly once per firing.
type Engine struct {
	clock  Clock
	alarm  Alarm
	line   Line
	region Region
	delay  int64 // configured assert-to-deassert delay, ns

	// Written only by Calibrate, Start and the alarm callback. The
	// callback reads them without mu (it is the sole writer); writes
	// take mu so Stats can snapshot them.
	writeLatency int64
	schedErr     int64
	nextDeadline Timestamp

	mu      sync.Mutex
	emitted uint64
	missed  uint64
	running bool

	onMiss MissFunc
}

// NewEngine validates the configured delay and wires the engine to its
// collaborators. No hardware is touched here; a nil region defaults to
// NopRegion.
func NewEngine(delayNs int64, clock Clock, alarm Alarm, line Line, region Region) (*Engine, error) {
	if delayNs < 0 || delayNs > MaxDelay {
		return nil, fmt.Errorf("delay %dns out of range (0..%d)", delayNs, MaxDelay)
	}
	if region == nil {
		region = NopRegion{}
	}
	return &Engine{
		clock:    clock,
		alarm:    alarm,
		line:     line,
		region:   region,
		delay:    delayNs,
		schedErr: SafetyInterval,
	}, nil
}

// OnMiss registers a callback for missed edges. Must be called before
// Start.
func (e *Engine) OnMiss(fn MissFunc) { e.onMiss = fn }

// Calibrate measures the line's write latency and seeds the smoothed
// estimate. The line must already be deasserted; each trial toggles it to
// the same deasserted state under the same uninterruptible discipline the
// emitter uses, so the measurement includes the clock-read cost the
// emitter will also pay.
func (e *Engine) Calibrate() {
	var acc int64
	for i := 0; i < 1<<calibrationShift; i++ {
		release := e.region.Enter()
		a := e.clock.Now()
		e.line.Deassert()
		b := e.clock.Now()
		release()
		acc += b.Sub(a)
	}
	e.mu.Lock()
	e.writeLatency = acc >> calibrationShift
	e.mu.Unlock()
	log.Printf("line write takes %dns", e.writeLatency)
}

// Start arms the first deadline. The edge for second N is always scheduled
// before second N begins: the wake-up sits near the end of the preceding
// second, early enough to spin the remaining distance.
func (e *Engine) Start() {
	now := e.clock.Now()
	sec := now.Sec
	if now.Nsec > lateArmCutoff {
		sec++
	}
	e.nextDeadline = Timestamp{
		Sec:  sec,
		Nsec: NsPerSec - (e.delay + e.writeLatency + 3*SafetyInterval),
	}

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.alarm.Arm(e.nextDeadline, e.fire)
}

// Stop prevents any further re-arming and blocks until an in-flight firing
// has completed. It reports the time-averaged scheduling error as a final
// diagnostic.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	e.mu.Unlock()

	e.alarm.Cancel()
	if wasRunning {
		log.Printf("timer avg error is %dns", e.Stats().SchedulingError)
	}
}

// Stats returns a snapshot of the engine's counters and estimates.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		WriteLatency:    e.writeLatency,
		SchedulingError: e.schedErr,
		Emitted:         e.emitted,
		Missed:          e.missed,
		Running:         e.running,
	}
}

// fire is the timing callback. One invocation per armed deadline; it emits
// (or skips) the edge pair for the expected second, feeds the calibration
// estimates, and re-arms exactly once.
func (e *Engine) fire() {
	expire := e.nextDeadline

	release := e.region.Enter()
	t1 := e.clock.Now()
	limit := NsPerSec - (e.delay + e.writeLatency)

	if t1.Sec != expire.Sec || t1.Nsec > limit {
		// Too late to place the edge safely. Skip this second; the
		// error feedback below pushes the next wake-up earlier.
		release()
		e.mu.Lock()
		e.missed++
		e.mu.Unlock()
		log.Printf("we are late this time %v", t1)
		if e.onMiss != nil {
			e.onMiss(t1)
		}
	} else {
		spinUntil(e.clock, expire.Sec, limit)
		e.line.Assert()

		limit = NsPerSec - e.writeLatency
		t2 := spinUntil(e.clock, expire.Sec, limit)
		e.line.Deassert()
		t3 := e.clock.Now()
		release()

		e.mu.Lock()
		e.writeLatency = (e.writeLatency + t3.Sub(t2)) >> 1
		e.emitted++
		e.mu.Unlock()
	}

	// Dispatch-error feedback, late or not. Jump straight to a worse
	// value, decay slowly toward a better one: safe in bad conditions,
	// efficient in good ones.
	delta := t1.Sub(expire)
	e.mu.Lock()
	if delta >= e.schedErr {
		e.schedErr = delta
	} else {
		e.schedErr = (3*e.schedErr + delta) >> 2
	}
	running := e.running
	e.mu.Unlock()
	if !running {
		return
	}

	// The deadline depends on live calibration, so recompute and arm one
	// shot rather than repeating a fixed period.
	e.nextDeadline = Timestamp{
		Sec:  expire.Sec + 1,
		Nsec: NsPerSec - (e.delay + e.writeLatency + SafetyInterval + 2*e.schedErr),
	}
	e.alarm.Arm(e.nextDeadline, e.fire)
}
