package uthread

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// startTimerLocked arms a genuine ITIMER_VIRTUAL (counting only CPU time
// the process actually consumes, the faithful reading of "quantum_usecs
// of virtual time" rather than wall-clock time) and starts the goroutine
// that receives its SIGVTALRM deliveries.
// Called with mu held, during Init only.
func startTimerLocked(quantumUsecs int) error {
	sec := int64(quantumUsecs / 1_000_000)
	usec := int64(quantumUsecs % 1_000_000)
	it := &unix.Itimerval{
		Interval: unix.Timeval{Sec: sec, Usec: usec},
		Value:    unix.Timeval{Sec: sec, Usec: usec},
	}
	if err := unix.Setitimer(unix.ITIMER_VIRTUAL, it, nil); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGVTALRM)
	timerStopCh = make(chan struct{})

	go runTimerLoop(sigCh, timerStopCh)
	return nil
}

// stopTimerLocked disarms the itimer and tears down signal delivery. Used
// by Terminate(0) before the process exits, and available to tests that
// need a clean Init/shutdown cycle without actually exiting.
func stopTimerLocked() {
	zero := &unix.Itimerval{}
	_ = unix.Setitimer(unix.ITIMER_VIRTUAL, zero, nil)
	if timerStopCh != nil {
		close(timerStopCh)
		timerStopCh = nil
	}
}

// runTimerLoop is the quantum timer handler (C5), running on its own
// goroutine for the lifetime of the library. Each tick:
//  1. increments totalQuantums,
//  2. runs the sleep-wake scan,
//  3. credits and demotes the running thread if it is still RUNNING,
//  4. invokes the scheduler.
func runTimerLoop(sigCh chan os.Signal, stop chan struct{}) {
	for {
		select {
		case <-stop:
			signal.Stop(sigCh)
			return
		case <-sigCh:
			onQuantumTick()
		}
	}
}

func onQuantumTick() {
	mu.Lock()
	setTotalQuantumsLocked(totalQuantums + 1)
	wakeExpiredLocked()
	running := currentTID
	demoted := tcbs[running].state == StateRunning
	if demoted {
		tcbs[running].quantumsRun++
		tcbs[running].state = StateReady
	}
	mu.Unlock()

	if demoted {
		logTransition(running, StateRunning, StateReady)
	}
	scheduleNext()
}
