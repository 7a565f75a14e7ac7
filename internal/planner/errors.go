package planner

import "fmt"

// fileNotFoundError signals a missing model file during estimation.
type fileNotFoundError struct{ path string }

func (e fileNotFoundError) Error() string { return "model file not found: " + e.path }

// IsFileNotFound reports whether err indicates a missing model file.
func IsFileNotFound(err error) bool {
	_, ok := err.(fileNotFoundError)
	return ok
}

// resourceExhaustedError signals that no offload option fits the current
// availability. Freeing a model is up to the caller; no eviction happens
// here.
type resourceExhaustedError struct {
	modelID    string
	requiredMB int
}

func (e resourceExhaustedError) Error() string {
	return fmt.Sprintf("insufficient resources for %s: %d MB required", e.modelID, e.requiredMB)
}

// IsResourceExhausted reports whether err indicates that no viable offload
// option exists.
func IsResourceExhausted(err error) bool {
	_, ok := err.(resourceExhaustedError)
	return ok
}
