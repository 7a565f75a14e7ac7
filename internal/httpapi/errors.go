package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeServiceError maps well-known manager errors to HTTP status codes
// and logs the outcome.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	writeJSONError(w, status, err.Error())
	logRequestError(r, status, err, time.Now())
}

func statusFor(err error) int {
	switch {
	case manager.IsModelNotFound(err), manager.IsFileNotFound(err):
		return http.StatusNotFound
	case manager.IsResourceExhausted(err), manager.IsNotLoaded(err):
		return http.StatusConflict
	case manager.IsBackendUnavailable(err),
		manager.IsExecutableNotFound(err),
		manager.IsReadinessTimeout(err):
		return http.StatusServiceUnavailable
	case manager.IsInvalidState(err):
		return http.StatusConflict
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
