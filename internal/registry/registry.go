// Package registry tracks the models currently loaded on this host, their
// lifecycle state and which one is active. The registry exclusively owns
// its records: queries return defensive copies and every mutation goes
// through a transition method so lock discipline stays internal.
package registry

import (
	"log"
	"sync"
	"time"

	"inferd/pkg/types"
)

// Runner is the supervisor reference attached to a tracked model. Kept
// minimal so the registry does not depend on the supervisor package.
type Runner interface {
	Stop(timeout time.Duration) bool
	IsRunning() bool
	PID() int
}

// LoadedModelInfo is the registry's record of one loaded model.
type LoadedModelInfo struct {
	ModelID    string
	ModelPath  string
	Backend    types.BackendType
	Supervisor Runner
	State      types.ModelState
	VRAMMB     int
	RAMMB      int
	VRAMLayers int
	RAMLayers  int
	LoadedAt   time.Time
	LastUsed   time.Time
	Metadata   map[string]string

	seq uint64 // load order, for the active-survivor policy
}

// Registry is process-wide shared state; all methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]*LoadedModelInfo
	activeID string
	nextSeq  uint64
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{models: make(map[string]*LoadedModelInfo)}
}

// Add registers info under its model id, replacing any previous record for
// that id. The first model added to an empty registry becomes active.
func (r *Registry) Add(info *LoadedModelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info.LoadedAt.IsZero() {
		info.LoadedAt = time.Now()
	}
	if info.State == "" {
		info.State = types.StateLoading
	}
	if info.Metadata == nil {
		info.Metadata = make(map[string]string)
	}
	r.nextSeq++
	info.seq = r.nextSeq
	r.models[info.ModelID] = info
	if len(r.models) == 1 {
		r.activeID = info.ModelID
	}
	log.Printf("registry event=add model=%q backend=%s active=%q", info.ModelID, info.Backend, r.activeID)
}

// Remove drops the record for modelID. When the active model is removed
// the most recently loaded survivor becomes active, or none if the
// registry is now empty.
func (r *Registry) Remove(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[modelID]; !ok {
		return false
	}
	delete(r.models, modelID)
	if r.activeID == modelID {
		r.activeID = ""
		var best *LoadedModelInfo
		for _, m := range r.models {
			if best == nil || m.seq > best.seq {
				best = m
			}
		}
		if best != nil {
			r.activeID = best.ModelID
		}
	}
	log.Printf("registry event=remove model=%q active=%q", modelID, r.activeID)
	return true
}

// SetActive switches the exclusive active pointer. Returns false for an
// untracked id.
func (r *Registry) SetActive(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[modelID]; !ok {
		return false
	}
	r.activeID = modelID
	return true
}

// ActiveID returns the active model id, or "" when the registry is empty.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Active returns a copy of the active model's record.
func (r *Registry) Active() (types.LoadedModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return types.LoadedModel{}, false
	}
	m, ok := r.models[r.activeID]
	if !ok {
		return types.LoadedModel{}, false
	}
	return r.viewLocked(m), true
}

// Get returns a copy of the record for modelID.
func (r *Registry) Get(modelID string) (types.LoadedModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[modelID]
	if !ok {
		return types.LoadedModel{}, false
	}
	return r.viewLocked(m), true
}

// Supervisor returns the runner attached to modelID.
func (r *Registry) Supervisor(modelID string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[modelID]
	if !ok || m.Supervisor == nil {
		return nil, false
	}
	return m.Supervisor, true
}

// List returns copies of all tracked models, optionally filtered by
// backend. Mutating the result cannot affect registry state.
func (r *Registry) List(backend types.BackendType) []types.LoadedModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.LoadedModel, 0, len(r.models))
	for _, m := range r.models {
		if backend != "" && m.Backend != backend {
			continue
		}
		out = append(out, r.viewLocked(m))
	}
	return out
}

// Count returns the number of tracked models.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// CountByBackend aggregates tracked models per backend type.
func (r *Registry) CountByBackend() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, m := range r.models {
		counts[string(m.Backend)]++
	}
	return counts
}

// Clear removes every record. Intended for shutdown and tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.models = make(map[string]*LoadedModelInfo)
	r.activeID = ""
	r.mu.Unlock()
}

func (r *Registry) viewLocked(m *LoadedModelInfo) types.LoadedModel {
	meta := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		meta[k] = v
	}
	var lastUsed int64
	if !m.LastUsed.IsZero() {
		lastUsed = m.LastUsed.Unix()
	}
	return types.LoadedModel{
		ModelID:      m.ModelID,
		ModelPath:    m.ModelPath,
		Backend:      m.Backend,
		State:        m.State,
		VRAMMB:       m.VRAMMB,
		RAMMB:        m.RAMMB,
		VRAMLayers:   m.VRAMLayers,
		RAMLayers:    m.RAMLayers,
		LoadedAtUnix: m.LoadedAt.Unix(),
		LastUsedUnix: lastUsed,
		Active:       m.ModelID == r.activeID,
		Metadata:     meta,
	}
}
