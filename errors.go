package uthread

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every logical-error path returns one of these, wrapped
// with fmt.Errorf so callers can errors.Is against the sentinel while
// still getting a tid-specific message.
var (
	ErrNotInitialized = errors.New("uthread: library not initialized")
	ErrAlreadyInit    = errors.New("uthread: library already initialized")
	ErrInvalidTID     = errors.New("uthread: invalid thread id")
	ErrMainThread     = errors.New("uthread: operation not permitted on main thread")
	ErrNoFreeSlot     = errors.New("uthread: no free thread slot")
	ErrNilEntry       = errors.New("uthread: entry point must not be nil")
	ErrBadQuantum     = errors.New("uthread: quantum length must be positive")
)

// logicalErrorf writes the mandated "system error: ..." line to stderr
// and returns a wrapped sentinel for callers using errors.Is. Library
// state is left unchanged by the caller.
func logicalErrorf(sentinel error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	emitSystemError(msg)
	return fmt.Errorf("%s: %w", msg, sentinel)
}

// hostErrorf reports an unrecoverable host failure (signal registration,
// timer arming) and terminates the process: there is no return from this
// path.
func hostErrorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	emitSystemError(msg)
	exitProcess(1)
}
