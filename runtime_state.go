package uthread

import (
	"sync"
	"sync/atomic"
)

// Global state (§3's "Global state"). tcbs, currentTID and totalQuantums
// are the only data the round-robin scheduler and timer touch; mu is the
// critical-section guard (C3) that stands in for masking the preemption
// signal: every read or mutation of the fields below happens with mu held.
var (
	mu             sync.Mutex
	tcbs           [MaxThreads]tcb
	currentTID     int
	totalQuantums  int
	quantumUsecs   int
	initialized    bool
	timerStopCh    chan struct{}

	// totalQuantumsView mirrors totalQuantums for the logger, which must
	// never try to reacquire mu from inside a transition that already
	// holds it.
	totalQuantumsView int64
)

func setTotalQuantumsLocked(v int) {
	totalQuantums = v
	atomic.StoreInt64(&totalQuantumsView, int64(v))
}

// resetAllLocked restores every slot to UNUSED. Used by Init (first call)
// and by Terminate(0) just before the process exits.
func resetAllLocked() {
	for i := range tcbs {
		tcbs[i].reset(i)
	}
}
