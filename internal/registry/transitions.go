package registry

import (
	"log"
	"time"

	"inferd/pkg/types"
)

// Transition methods are the only way a record's state changes after Add.
// Only the orchestration flow should call them.

// MarkLoaded moves modelID to the loaded state.
func (r *Registry) MarkLoaded(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelID]
	if !ok {
		return false
	}
	m.State = types.StateLoaded
	log.Printf("registry event=loaded model=%q", modelID)
	return true
}

// MarkFailed moves modelID to the terminal failed state and records the
// error in the model's metadata. The record stays until explicit removal.
func (r *Registry) MarkFailed(modelID, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelID]
	if !ok {
		return false
	}
	m.State = types.StateFailed
	m.Metadata["error"] = errMsg
	log.Printf("registry event=failed model=%q err=%q", modelID, errMsg)
	return true
}

// MarkUnloading flags modelID as being torn down.
func (r *Registry) MarkUnloading(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelID]
	if !ok {
		return false
	}
	m.State = types.StateUnloading
	return true
}

// MarkUsed stamps the last-used time for modelID.
func (r *Registry) MarkUsed(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelID]
	if !ok {
		return false
	}
	m.LastUsed = time.Now()
	return true
}
