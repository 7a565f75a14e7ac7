package manager

import (
	"fmt"

	"inferd/internal/planner"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// modelNotFoundError signals a model id absent from the catalog or
// registry, for 404 mapping.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// notLoadedError signals an operation that requires the loaded state.
type notLoadedError struct {
	id    string
	state types.ModelState
}

func (e notLoadedError) Error() string {
	return fmt.Sprintf("model %s is not loaded (state %s)", e.id, e.state)
}

// IsNotLoaded reports whether err indicates a model outside the loaded state.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}

// backendUnavailableError signals a backend with no configured runtime,
// for 503 mapping.
type backendUnavailableError struct{ backend types.BackendType }

func (e backendUnavailableError) Error() string {
	return "backend not available: " + string(e.backend)
}

// IsBackendUnavailable reports whether err indicates an unconfigured backend.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}

// stopFailedError signals a process that survived a forced kill during
// unload.
type stopFailedError struct{ id string }

func (e stopFailedError) Error() string { return "failed to stop backend process for " + e.id }

// IsStopFailed reports whether err indicates a stuck backend process.
func IsStopFailed(err error) bool {
	_, ok := err.(stopFailedError)
	return ok
}

// Re-exported checks so the HTTP layer maps collaborator errors without
// importing every internal package.
var (
	IsResourceExhausted  = planner.IsResourceExhausted
	IsFileNotFound       = planner.IsFileNotFound
	IsReadinessTimeout   = supervisor.IsReadinessTimeout
	IsExecutableNotFound = supervisor.IsExecutableNotFound
	IsInvalidState       = supervisor.IsInvalidState
)
