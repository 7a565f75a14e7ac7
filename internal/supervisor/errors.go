package supervisor

import "fmt"

// configurationError signals an invalid ServerConfig. Fatal: no retry will
// succeed until the config changes.
type configurationError struct{ msg string }

func (e configurationError) Error() string { return "invalid server config: " + e.msg }

// IsConfiguration reports whether err indicates a bad ServerConfig.
func IsConfiguration(err error) bool {
	_, ok := err.(configurationError)
	return ok
}

// executableNotFoundError signals a missing backend binary.
type executableNotFoundError struct{ path string }

func (e executableNotFoundError) Error() string { return "server executable not found: " + e.path }

// IsExecutableNotFound reports whether err indicates a missing executable.
func IsExecutableNotFound(err error) bool {
	_, ok := err.(executableNotFoundError)
	return ok
}

// invalidStateError signals a Start call outside the stopped state.
type invalidStateError struct{ state ServerState }

func (e invalidStateError) Error() string {
	return fmt.Sprintf("cannot start server in state %s", e.state)
}

// IsInvalidState reports whether err indicates a lifecycle misuse.
func IsInvalidState(err error) bool {
	_, ok := err.(invalidStateError)
	return ok
}

// spawnError wraps a failure to fork/exec the backend.
type spawnError struct{ cause error }

func (e spawnError) Error() string { return "failed to spawn server: " + e.cause.Error() }
func (e spawnError) Unwrap() error { return e.cause }

// IsSpawn reports whether err indicates a spawn failure.
func IsSpawn(err error) bool {
	_, ok := err.(spawnError)
	return ok
}

// readinessTimeoutError signals that a spawned process never became
// healthy within the startup timeout. The process has already been
// stopped when this error surfaces.
type readinessTimeoutError struct {
	executable string
	stderrTail string
}

func (e readinessTimeoutError) Error() string {
	if e.stderrTail == "" {
		return "server not ready before timeout: " + e.executable
	}
	return "server not ready before timeout: " + e.executable + "; stderr tail: " + e.stderrTail
}

// IsReadinessTimeout reports whether err indicates a readiness timeout.
func IsReadinessTimeout(err error) bool {
	_, ok := err.(readinessTimeoutError)
	return ok
}

// processDiedError is surfaced lazily by Reconcile when a process that was
// believed running turns out to have exited.
type processDiedError struct{ exitCode int }

func (e processDiedError) Error() string {
	return fmt.Sprintf("server process died unexpectedly (exit code %d)", e.exitCode)
}

// IsProcessDied reports whether err indicates a supervised process death.
func IsProcessDied(err error) bool {
	_, ok := err.(processDiedError)
	return ok
}
