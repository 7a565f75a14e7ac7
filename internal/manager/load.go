package manager

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"inferd/internal/registry"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// LoadModel runs the full load sequence: resolve the catalog entry,
// estimate its footprint, reserve memory, allocate a port, spawn the
// backend and wait for readiness. Any step failing rolls the earlier
// steps back completely; a failed load leaves no allocation, no port and
// no process behind.
//
// Loading an already-loaded model is idempotent: it refreshes last-used
// and returns the existing placement.
func (m *Manager) LoadModel(ctx context.Context, req types.LoadRequest) (types.LoadResult, error) {
	m.admission.Lock()
	defer m.admission.Unlock()

	if err := ctx.Err(); err != nil {
		return types.LoadResult{}, err
	}
	attempt := uuid.NewString()

	if existing, ok := m.reg.Get(req.ModelID); ok && existing.State == types.StateLoaded {
		m.reg.MarkUsed(req.ModelID)
		return m.resultFor(existing), nil
	}

	model, ok := m.store.Resolve(req.ModelID)
	if !ok {
		return types.LoadResult{}, ErrModelNotFound(req.ModelID)
	}
	backend := req.Backend
	if backend == "" {
		backend = m.cfg.DefaultBackend
	}
	bcfg, ok := m.cfg.Backends[backend]
	if !ok {
		return types.LoadResult{}, backendUnavailableError{backend: backend}
	}

	est, err := m.planner.EstimateModelSize(model.Path)
	if err != nil {
		return types.LoadResult{}, err
	}
	option, err := m.planner.Reserve(model.ID, backend, est, req.Strategy)
	if err != nil {
		m.recordLoad(true)
		loadFailuresTotal.Inc()
		m.pub.Publish(Event{Name: "load_rejected", ModelID: model.ID, Fields: map[string]any{
			"attempt": attempt, "reason": err.Error(),
		}})
		return types.LoadResult{}, err
	}

	port, err := m.ports.Allocate(model.ID)
	if err != nil {
		m.planner.Deallocate(model.ID)
		m.recordLoad(true)
		loadFailuresTotal.Inc()
		return types.LoadResult{}, fmt.Errorf("allocate port for %s: %w", model.ID, err)
	}

	sup, err := m.newSupervisor(bcfg, model, option, port)
	if err != nil {
		m.ports.Release(port)
		m.planner.Deallocate(model.ID)
		m.recordLoad(true)
		loadFailuresTotal.Inc()
		return types.LoadResult{}, err
	}

	m.reg.Add(&registry.LoadedModelInfo{
		ModelID:    model.ID,
		ModelPath:  model.Path,
		Backend:    backend,
		Supervisor: sup,
		State:      types.StateLoading,
		VRAMMB:     option.VRAMMB,
		RAMMB:      option.RAMMB,
		VRAMLayers: option.VRAMLayers,
		RAMLayers:  option.RAMLayers,
		Metadata: map[string]string{
			"port":     strconv.Itoa(port),
			"strategy": string(option.Strategy),
		},
	})
	m.pub.Publish(Event{Name: "load_started", ModelID: model.ID, Fields: map[string]any{
		"attempt": attempt, "backend": string(backend),
		"strategy": string(option.Strategy), "port": port,
	}})
	log.Printf("manager event=load_started model=%s backend=%s strategy=%s vram_mb=%d ram_mb=%d port=%d attempt=%s",
		model.ID, backend, option.Strategy, option.VRAMMB, option.RAMMB, port, attempt)

	if err := sup.Start(); err != nil {
		// Full rollback. Stop is idempotent on the failed supervisor.
		sup.Stop(0)
		m.ports.Release(port)
		m.planner.Deallocate(model.ID)
		m.reg.Remove(model.ID)
		m.recordLoad(true)
		loadFailuresTotal.Inc()
		m.pub.Publish(Event{Name: "load_failed", ModelID: model.ID, Fields: map[string]any{
			"attempt": attempt, "reason": err.Error(),
		}})
		log.Printf("manager event=load_failed model=%s attempt=%s err=%v", model.ID, attempt, err)
		return types.LoadResult{}, err
	}

	m.reg.MarkLoaded(model.ID)
	m.reg.SetActive(model.ID)
	m.recordLoad(false)
	loadsTotal.Inc()
	supervisedProcesses.Inc()
	vramAllocatedMB.Set(float64(m.allocatedVRAMMB()))

	m.pub.Publish(Event{Name: "model_loaded", ModelID: model.ID, Fields: map[string]any{
		"attempt": attempt, "port": port, "pid": sup.PID(),
	}})
	log.Printf("manager event=model_loaded model=%s port=%d pid=%d attempt=%s", model.ID, port, sup.PID(), attempt)

	loaded, _ := m.reg.Get(model.ID)
	return m.resultFor(loaded), nil
}

func (m *Manager) newSupervisor(bcfg BackendConfig, model types.Model, option types.OffloadOption, port int) (*supervisor.Supervisor, error) {
	args := []string{
		"-m", model.Path,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"-ngl", strconv.Itoa(option.VRAMLayers),
	}
	args = append(args, bcfg.ExtraArgs...)

	method := bcfg.HealthCheckMethod
	if method == "" {
		method = supervisor.HealthHTTPGet
	}
	healthPath := bcfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	return supervisor.New(supervisor.ServerConfig{
		Executable:              bcfg.Executable,
		Args:                    args,
		Port:                    port,
		HealthCheckURL:          fmt.Sprintf("http://127.0.0.1:%d%s", port, healthPath),
		HealthCheckMethod:       method,
		StartupTimeout:          m.cfg.StartupTimeout,
		HealthCheckInterval:     m.cfg.HealthCheckInterval,
		GracefulShutdownTimeout: m.cfg.GracefulShutdownTimeout,
	})
}

func (m *Manager) resultFor(lm types.LoadedModel) types.LoadResult {
	res := types.LoadResult{
		ModelID:  lm.ModelID,
		State:    lm.State,
		Backend:  lm.Backend,
		Strategy: types.OffloadStrategy(lm.Metadata["strategy"]),
		VRAMMB:   lm.VRAMMB,
		RAMMB:    lm.RAMMB,
	}
	if p, err := strconv.Atoi(lm.Metadata["port"]); err == nil {
		res.Port = p
	}
	if sup, ok := m.reg.Supervisor(lm.ModelID); ok && sup != nil {
		res.PID = sup.PID()
	}
	return res
}

func (m *Manager) allocatedVRAMMB() int {
	total := 0
	for _, a := range m.planner.Allocations() {
		total += a.VRAMMB
	}
	return total
}
