package manager

import (
	"log"

	"inferd/pkg/types"
)

// UnloadModel stops the backend process and releases the model's port and
// memory reservation. Unloading a model that is not loaded returns false
// with no error; unload is safe to retry.
func (m *Manager) UnloadModel(modelID string) (bool, error) {
	m.admission.Lock()
	defer m.admission.Unlock()
	return m.unloadLocked(modelID)
}

func (m *Manager) unloadLocked(modelID string) (bool, error) {
	info, ok := m.reg.Get(modelID)
	if !ok {
		return false, nil
	}
	m.reg.MarkUnloading(modelID)
	if sup, ok := m.reg.Supervisor(modelID); ok && sup != nil {
		if !sup.Stop(0) {
			// The process survived a forced kill. Keep every record so the
			// operator can see the stuck model instead of leaking it.
			log.Printf("manager event=unload_stuck model=%s", modelID)
			return false, stopFailedError{id: modelID}
		}
		// Failed records already gave their gauge slot back in Reconcile.
		if info.State == types.StateLoaded {
			supervisedProcesses.Dec()
		}
	}
	m.ports.ReleaseOwner(modelID)
	m.planner.Deallocate(modelID)
	m.reg.Remove(modelID)
	vramAllocatedMB.Set(float64(m.allocatedVRAMMB()))
	m.pub.Publish(Event{Name: "model_unloaded", ModelID: modelID})
	log.Printf("manager event=model_unloaded model=%s", modelID)
	return true, nil
}

// UnloadAll unloads every tracked model, continuing past individual
// failures. Returns the number of models unloaded.
func (m *Manager) UnloadAll() int {
	m.admission.Lock()
	defer m.admission.Unlock()
	n := 0
	for _, lm := range m.reg.List("") {
		ok, err := m.unloadLocked(lm.ModelID)
		if err != nil {
			log.Printf("manager event=unload_all_error model=%s err=%v", lm.ModelID, err)
			continue
		}
		if ok {
			n++
		}
	}
	return n
}

// Close shuts the manager down for daemon exit: every supervised process
// is stopped. Idempotent.
func (m *Manager) Close() error {
	m.UnloadAll()
	return nil
}

// loadedOnly filters a registry listing down to models in the loaded state.
func loadedOnly(models []types.LoadedModel) []types.LoadedModel {
	out := models[:0:0]
	for _, lm := range models {
		if lm.State == types.StateLoaded {
			out = append(out, lm)
		}
	}
	return out
}
