//go:build !linux

package rt

// elevate is a no-op outside Linux: the thread keeps its normal scheduling
// class and only the OS-thread pin from Region.Enter applies.
func elevate(priority int) (restore func()) {
	_ = priority
	return func() {}
}

// LockMemory is a no-op outside Linux.
func LockMemory() {}
