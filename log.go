package uthread

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// logger is the structured diagnostics sink (component C8). It defaults to
// silent so importing this package into a test binary never spams stdout;
// a host opts in with SetLogger, the same way Dump is an explicit, opt-in
// call rather than automatic output.
var (
	loggerMu sync.RWMutex
	logger   = zerolog.Nop()
)

// SetLogger installs a structured logger that receives one debug event per
// thread-lifecycle transition and one error event per logical/host error.
// Passing the zero value re-silences the library.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func currentLogger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func logTransition(tid int, from, to State) {
	currentLogger().Debug().
		Int("tid", tid).
		Str("from_state", from.String()).
		Str("to_state", to.String()).
		Int("total_quantums", int(atomic.LoadInt64(&totalQuantumsView))).
		Msg("thread state transition")
}

// emitSystemError writes the mandated "system error: ..." line to stderr
// and, if a logger was installed, an additional structured error record.
func emitSystemError(msg string) {
	os.Stderr.WriteString("system error: " + msg + "\n")
	currentLogger().Error().Msg(msg)
}

// exitProcess is a var so tests exercising Terminate(0)'s "never returns"
// contract can substitute a panic/recover sentinel instead of killing the
// test binary.
var exitProcess = os.Exit
