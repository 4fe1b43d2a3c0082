//go:build linux

package rt

import (
	"log"

	"golang.org/x/sys/unix"
)

// elevate moves the current thread to SCHED_FIFO at the given priority and
// returns a func restoring the previous policy. Needs CAP_SYS_NICE or root;
// without it the thread keeps its normal policy.
func elevate(priority int) (restore func()) {
	if priority <= 0 {
		return func() {}
	}

	old, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		log.Printf("could not read scheduler attributes: %v", err)
		return func() {}
	}

	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		log.Printf("could not switch to SCHED_FIFO: %v", err)
		return func() {}
	}

	return func() {
		if err := unix.SchedSetAttr(0, old, 0); err != nil {
			log.Printf("could not restore scheduler attributes: %v", err)
		}
	}
}

// LockMemory pins the process address space so the spin-wait path cannot
// page-fault mid-pulse. Called once at service startup; failure is only
// logged, it degrades timing rather than correctness.
func LockMemory() {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		log.Printf("could not lock memory: %v", err)
	}
}
