package uthread

import "runtime"

// Init initializes the library (C7). It must be called exactly once,
// before any other entry point, from the goroutine that will act as the
// main thread (tid 0). quantumUsecs must be positive.
//
// Init forces GOMAXPROCS(1): the round-robin and preemption guarantees
// this package provides — exactly one user thread executing at a time —
// depend on at most one goroutine of the process ever truly executing
// concurrently with the scheduler's own bookkeeping.
func Init(quantumUsecsArg int) error {
	mu.Lock()
	if initialized {
		mu.Unlock()
		return logicalErrorf(ErrAlreadyInit, "init: already initialized")
	}
	if quantumUsecsArg <= 0 {
		mu.Unlock()
		return logicalErrorf(ErrBadQuantum, "init: quantum_usecs must be positive, got %d", quantumUsecsArg)
	}

	runtime.GOMAXPROCS(1)

	resetAllLocked()
	tcbs[0].tid = 0
	tcbs[0].state = StateRunning
	tcbs[0].quantumsRun = 1
	tcbs[0].parker = newParker()
	currentTID = 0
	setTotalQuantumsLocked(1)
	quantumUsecs = quantumUsecsArg
	initialized = true
	mu.Unlock()

	bindSelf(0)

	mu.Lock()
	err := startTimerLocked(quantumUsecsArg)
	mu.Unlock()
	if err != nil {
		hostErrorf("failed to arm quantum timer: %v", err)
	}
	return nil
}

// Spawn creates a new thread running entry and returns its id, the
// smallest free slot (C7/§4.1's linear first-fit).
func Spawn(entry func()) (int, error) {
	checkpoint()
	mu.Lock()
	if !initialized {
		mu.Unlock()
		return -1, logicalErrorf(ErrNotInitialized, "spawn: library not initialized")
	}
	if entry == nil {
		mu.Unlock()
		return -1, logicalErrorf(ErrNilEntry, "spawn: entry point must not be nil")
	}
	tid := -1
	for i := 1; i < MaxThreads; i++ {
		if tcbs[i].state == StateUnused {
			tid = i
			break
		}
	}
	if tid == -1 {
		mu.Unlock()
		return -1, logicalErrorf(ErrNoFreeSlot, "spawn: no free thread slot (max %d)", MaxThreads)
	}
	tcbs[tid].tid = tid
	tcbs[tid].state = StateReady
	tcbs[tid].quantumsRun = 0
	tcbs[tid].wakeAt = 0
	tcbs[tid].entry = entry
	tcbs[tid].parker = newParker()
	mu.Unlock()

	logTransition(tid, StateUnused, StateReady)
	go runTrampoline(tid)
	return tid, nil
}

// Terminate terminates the thread tid (C7). Terminating tid 0 frees every
// slot and exits the process with status 1; terminating the calling
// thread never returns.
func Terminate(tid int) error {
	checkpoint()
	mu.Lock()
	if tid < 0 || tid >= MaxThreads || tcbs[tid].state == StateUnused {
		mu.Unlock()
		return logicalErrorf(ErrInvalidTID, "terminate: no such thread %d", tid)
	}

	if tid == 0 {
		resetAllLocked()
		stopTimerLocked()
		mu.Unlock()
		currentLogger().Info().Msg("main thread terminated, exiting process")
		exitProcess(1)
		return nil // unreachable
	}

	self := tid == currentTID
	tcbs[tid].state = StateTerminated
	parkerToWake := tcbs[tid].parker
	tcbs[tid].reset(tid)
	mu.Unlock()

	logTransition(tid, StateTerminated, StateUnused)

	if self {
		terminateSelf(tid)
		return nil // unreachable
	}

	// tid was BLOCKED/READY-but-not-yet-run, parked on its own gate;
	// wake it so its goroutine can notice the freed slot and unwind
	// instead of leaking forever.
	parkerToWake.ready()
	return nil
}

// terminateSelf is Terminate's terminate-self path, which a trampoline's
// natural return also reaches through Terminate. It hands off to whichever thread the
// scheduler picks next and then calls runtime.Goexit so control truly
// never returns to the caller, matching the "does not return" contract.
func terminateSelf(tid int) {
	unbindSelf(tid)
	scheduleNext()
	runtime.Goexit()
}

// Block moves tid to BLOCKED (C7). It is an error to block the main
// thread or an unused slot; blocking an already-blocked thread is a
// no-op. Blocking the calling thread yields to the scheduler.
func Block(tid int) error {
	checkpoint()
	mu.Lock()
	if tid < 0 || tid >= MaxThreads || tcbs[tid].state == StateUnused {
		mu.Unlock()
		return logicalErrorf(ErrInvalidTID, "block: no such thread %d", tid)
	}
	if tid == 0 {
		mu.Unlock()
		return logicalErrorf(ErrMainThread, "block: cannot block the main thread")
	}
	from := tcbs[tid].state
	if from == StateBlocked {
		mu.Unlock()
		return nil
	}
	tcbs[tid].state = StateBlocked
	tcbs[tid].wakeAt = 0
	self := tid == currentTID
	mu.Unlock()

	logTransition(tid, from, StateBlocked)
	if self {
		selfYield(tid)
	}
	return nil
}

// Resume moves tid from BLOCKED to READY (C7); it is a no-op if tid is
// already RUNNING or READY, and an error if tid is unused.
func Resume(tid int) error {
	checkpoint()
	mu.Lock()
	if tid < 0 || tid >= MaxThreads || tcbs[tid].state == StateUnused {
		mu.Unlock()
		return logicalErrorf(ErrInvalidTID, "resume: no such thread %d", tid)
	}
	if tcbs[tid].state != StateBlocked {
		mu.Unlock()
		return nil
	}
	tcbs[tid].state = StateReady
	tcbs[tid].wakeAt = 0
	mu.Unlock()

	logTransition(tid, StateBlocked, StateReady)
	return nil
}

// Sleep blocks the calling thread for n quantums (C7/§4.6): it becomes
// READY at the n-th quantum tick after the call, the first of which ends
// the current quantum, so the current quantum counts as one of the n.
// n == 0 behaves like n == 1 and still yields until the next tick. It is
// an error to call Sleep from the main thread.
func Sleep(n int) error {
	checkpoint()
	mu.Lock()
	if !initialized {
		mu.Unlock()
		return logicalErrorf(ErrNotInitialized, "sleep: library not initialized")
	}
	if currentTID == 0 {
		mu.Unlock()
		return logicalErrorf(ErrMainThread, "sleep: cannot sleep the main thread")
	}
	self := currentTID
	tcbs[self].wakeAt = totalQuantums + n
	tcbs[self].state = StateBlocked
	mu.Unlock()

	logTransition(self, StateRunning, StateBlocked)
	selfYield(self)
	return nil
}

// GetTID returns the calling thread's id.
func GetTID() int {
	checkpoint()
	mu.Lock()
	defer mu.Unlock()
	return currentTID
}

// GetTotalQuantums returns the total number of quantums elapsed since
// Init, starting at 1.
func GetTotalQuantums() int {
	checkpoint()
	mu.Lock()
	defer mu.Unlock()
	return totalQuantums
}

// GetQuantums returns the number of quantums tid has run, crediting the
// in-flight quantum if tid is currently RUNNING (§4.7, §9).
func GetQuantums(tid int) (int, error) {
	checkpoint()
	mu.Lock()
	defer mu.Unlock()
	if tid < 0 || tid >= MaxThreads || tcbs[tid].state == StateUnused {
		return -1, logicalErrorf(ErrInvalidTID, "get_quantums: no such thread %d", tid)
	}
	if tcbs[tid].state == StateRunning {
		return tcbs[tid].quantumsRun + 1, nil
	}
	return tcbs[tid].quantumsRun, nil
}
