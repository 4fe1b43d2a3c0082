// Package rt provides the uninterruptible execution context the timing
// engine holds while spin-waiting to an edge.
//
// A userspace process cannot mask interrupts, so this is the closest the
// host offers: the goroutine is pinned to its OS thread and, on Linux, the
// thread is moved to the SCHED_FIFO real-time class so the kernel will not
// preempt it for ordinary work. The elevation is scoped: Enter returns a
// release func and the caller runs it on every exit path.
package rt

import "runtime"

// Region implements timing.Region with platform-specific elevation.
// Priority is the SCHED_FIFO priority used on Linux (1..99); it is ignored
// elsewhere.
type Region struct {
	Priority int
}

// Enter pins the calling goroutine to its OS thread and elevates the
// thread. Elevation failures (typically missing privileges) are not fatal:
// the engine still works, just with more jitter, which the error tracker
// absorbs.
func (r *Region) Enter() (release func()) {
	runtime.LockOSThread()
	restore := elevate(r.Priority)
	return func() {
		restore()
		runtime.UnlockOSThread()
	}
}
