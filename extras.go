package uthread

import "runtime"

// WaitTerminated blocks the calling goroutine (ordinarily the real OS
// thread running "main", before or after it has called Init) until the
// first of the given tids reaches UNUSED via termination, returning that
// tid. It replaces a hand-rolled "for { GetQuantums(...) }" busy-wait over
// a single candidate with something that checks every candidate each
// round, in argument order, and yields the processor between rounds. When
// several candidates have terminated, the first of them in argument order
// is returned. The per-call check counts (adapted from a multi-stream
// Select's least-polled bookkeeping) are kept but do not change the order
// in which candidates are checked or which one is returned.
func WaitTerminated(tids ...int) int {
	if len(tids) == 0 {
		return -1
	}
	checks := make([]int, len(tids))
	for {
		checkpoint()
		leastChecked := -1
		leastIdx := -1
		for i, tid := range tids {
			mu.Lock()
			dead := tid < 0 || tid >= MaxThreads || tcbs[tid].state == StateUnused
			mu.Unlock()
			if dead {
				return tid
			}
			if leastIdx == -1 || checks[i] < leastChecked {
				leastChecked = checks[i]
				leastIdx = i
			}
		}
		checks[leastIdx]++
		runtime.Gosched()
	}
}
