package uthread

import "runtime"

// runTrampoline is the body of every spawned (non-main) slot's goroutine.
// It is the Go-native analogue of the original design's thread_wrapper:
// it parks until first scheduled, calls entry with no critical section
// held (entry was published by Spawn before the goroutine could possibly
// be scheduled), and self-terminates if entry returns naturally. A
// trampoline is necessary rather than calling entry directly from Spawn's
// "go" statement because the goroutine must synchronize with the
// scheduler before running any user code at all, and must route a natural
// return through Terminate exactly like a thread that calls it explicitly.
func runTrampoline(tid int) {
	bindSelf(tid)
	tcbs[tid].parker.park()

	mu.Lock()
	live := tcbs[tid].state != StateUnused
	entry := tcbs[tid].entry
	mu.Unlock()
	if !live {
		// Terminated before ever being scheduled in; nothing to run.
		unbindSelf(tid)
		runtime.Goexit()
	}

	entry()

	// Natural return: terminate this thread exactly as an explicit
	// self-terminate would. Terminate of the calling thread never returns.
	_ = Terminate(tid)
}
