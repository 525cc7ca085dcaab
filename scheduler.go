package uthread

import "runtime"

// scheduleNext performs the round-robin decision (C4): strict round-robin
// over READY starting at currentTID+1, lowest id wins ties, no-op if no
// thread is READY. The caller must already have set the outgoing thread's
// state before calling this — READY if preempted or yielding, BLOCKED if
// blocking/sleeping, or already freed to UNUSED if terminating.
//
// This is the scheduling half of the context switch. The other half —
// actually suspending the outgoing goroutine — is the caller's job via
// selfYield, because only a goroutine can block itself; scheduleNext may
// be invoked from a different goroutine entirely (the quantum timer's
// tick-delivery goroutine, demoting whatever thread happens to be
// running).
func scheduleNext() {
	mu.Lock()
	prev := currentTID
	next := -1
	for i := 1; i < MaxThreads; i++ {
		cand := (prev + i) % MaxThreads
		if tcbs[cand].state == StateReady {
			next = cand
			break
		}
	}
	if next == -1 {
		// Nobody else is ready. If the outgoing thread was merely demoted
		// (preempted/yielded) restore it, since it is the only candidate.
		// This must still go through parker.ready(), not a direct state
		// write: the caller that observed the demotion (checkpoint, or
		// the timer tick itself) may unlock and call park() only after
		// this branch runs, and park() has nothing to wake it unless a
		// token was actually sent. The capacity-1 channel makes the send
		// safe regardless of which side gets there first — a token sent
		// before park() is called is simply waiting when park() arrives.
		restored := tcbs[prev].state == StateReady
		if restored {
			tcbs[prev].state = StateRunning
			traceBuf.enqueue(traceEvent{TID: prev, State: StateRunning, TotalQuantums: totalQuantums})
		}
		mu.Unlock()
		if restored {
			logTransition(prev, StateReady, StateRunning)
			tcbs[prev].parker.ready()
		}
		return
	}
	currentTID = next
	tcbs[next].state = StateRunning
	traceBuf.enqueue(traceEvent{TID: next, State: StateRunning, TotalQuantums: totalQuantums})
	mu.Unlock()

	logTransition(next, StateReady, StateRunning)
	tcbs[next].parker.ready()
}

// selfYield is called by a thread giving up the CPU voluntarily (block
// self, sleep) expecting to run again later: it hands off via
// scheduleNext, then parks on its own gate until some future scheduleNext
// call promotes it back to RUNNING. When it returns, the caller is
// guaranteed to be the RUNNING thread again.
func selfYield(self int) {
	scheduleNext()
	for {
		tcbs[self].parker.park()

		// While parked, another thread may have called Terminate(self): the
		// slot is freed and a wake token sent purely so this goroutine can
		// notice and unwind, never returning into user code on a dead slot.
		// A wake that finds the slot neither freed nor RUNNING consumed a
		// token left pending by an earlier restore, so park again.
		mu.Lock()
		state := tcbs[self].state
		mu.Unlock()
		if state == StateUnused {
			unbindSelf(self)
			runtime.Goexit()
		}
		if state == StateRunning {
			return
		}
	}
}

// checkpoint is the safepoint every exported API function calls first.
// True signal-based preemption of an arbitrary busy loop that never calls
// a library function is not something user-mode Go code can do without
// cgo or unstable runtime internals, so the asynchronous quantum tick
// instead only demotes the running thread's bookkeeping state to READY,
// and checkpoint is what actually suspends that thread's goroutine the
// next time it re-enters the library — which, for a worker polling
// get_total_quantums/get_quantums in its busy-wait loop, is effectively
// immediate.
func checkpoint() {
	tid, ok := selfTID()
	if !ok {
		return
	}
	mu.Lock()
	demoted := tcbs[tid].state == StateReady
	mu.Unlock()
	if !demoted {
		return
	}
	for {
		tcbs[tid].parker.park()

		mu.Lock()
		state := tcbs[tid].state
		mu.Unlock()
		if state == StateUnused {
			unbindSelf(tid)
			runtime.Goexit()
		}
		if state == StateRunning {
			return
		}
	}
}
