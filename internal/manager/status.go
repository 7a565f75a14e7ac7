package manager

import (
	"time"

	"inferd/pkg/types"
)

// ResourceStatus combines the live hardware snapshot with the committed
// allocation ledger.
func (m *Manager) ResourceStatus() (types.ResourceStatusResponse, error) {
	snap, err := m.planner.ResourceStatus()
	if err != nil {
		return types.ResourceStatusResponse{}, err
	}
	return types.ResourceStatusResponse{
		Resources:   snap,
		Allocations: m.planner.Allocations(),
		LoadedCount: len(loadedOnly(m.reg.List(""))),
		ByBackend:   m.reg.CountByBackend(),
	}, nil
}

// Estimate computes the footprint of a model file and the placement
// options viable right now, fastest first.
func (m *Manager) Estimate(req types.EstimateRequest) (types.EstimateResponse, error) {
	path := req.ModelPath
	if path == "" {
		model, ok := m.store.Resolve(req.ModelID)
		if !ok {
			return types.EstimateResponse{}, ErrModelNotFound(req.ModelID)
		}
		path = model.Path
	}
	est, err := m.planner.EstimateModelSize(path)
	if err != nil {
		return types.EstimateResponse{}, err
	}
	snap, err := m.planner.ResourceStatus()
	if err != nil {
		return types.EstimateResponse{}, err
	}
	return types.EstimateResponse{
		Estimate: est,
		Options:  m.planner.SuggestOffloadStrategies(est, snap.VRAMAvailableMB, snap.RAMAvailableMB),
	}, nil
}

// Status builds the /status view of the daemon.
func (m *Manager) Status() types.StatusResponse {
	models := m.reg.List("")
	vram, ram := 0, 0
	for _, a := range m.planner.Allocations() {
		vram += a.VRAMMB
		ram += a.RAMMB
	}
	state := "idle"
	for _, lm := range models {
		switch lm.State {
		case types.StateLoading, types.StateUnloading:
			state = "busy"
		case types.StateLoaded:
			if state == "idle" {
				state = "serving"
			}
		}
	}
	m.statsMu.Lock()
	loads, failures := m.loadsTotal, m.loadFailures
	uptime := int64(time.Since(m.start).Seconds())
	m.statsMu.Unlock()
	return types.StatusResponse{
		State:             state,
		Models:            models,
		ActiveModelID:     m.reg.ActiveID(),
		VRAMAllocatedMB:   vram,
		RAMAllocatedMB:    ram,
		LoadsTotal:        loads,
		LoadFailuresTotal: failures,
		UptimeSeconds:     uptime,
		ServerTimeUnix:    time.Now().Unix(),
	}
}
