package manager

import (
	"fmt"
	"sync"
	"time"

	"inferd/internal/planner"
	"inferd/internal/registry"
	"inferd/internal/store"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// Manager is the lifecycle orchestrator. It owns no model state itself:
// the planner holds the memory ledger, the registry holds the loaded set
// and each supervisor holds its process. The manager's admission lock
// serializes load and unload so their multi-step sequences stay atomic
// with respect to each other.
type Manager struct {
	cfg     Config
	store   *store.Store
	planner *planner.Planner
	reg     *registry.Registry
	ports   *supervisor.PortAllocator
	pub     EventPublisher

	admission sync.Mutex

	statsMu      sync.Mutex
	start        time.Time
	loadsTotal   uint64
	loadFailures uint64
}

// New validates cfg and constructs a Manager.
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	if cfg.Store == nil || cfg.Planner == nil || cfg.Registry == nil || cfg.Ports == nil {
		return nil, fmt.Errorf("manager: store, planner, registry and ports are required")
	}
	// An empty backend map is allowed: the daemon still serves the catalog
	// and resource endpoints, and loads fail with backend-unavailable.
	return &Manager{
		cfg:     cfg,
		store:   cfg.Store,
		planner: cfg.Planner,
		reg:     cfg.Registry,
		ports:   cfg.Ports,
		pub:     cfg.Publisher,
		start:   time.Now(),
	}, nil
}

// Ready reports whether the daemon can serve requests. The catalog being
// open is enough: an empty host with zero loaded models is still ready.
func (m *Manager) Ready() bool { return m.store != nil }

// ListModels returns the on-disk catalog.
func (m *Manager) ListModels() []types.Model { return m.store.List() }

// GetLoadedModels returns the loaded set, optionally filtered by backend.
func (m *Manager) GetLoadedModels(backend types.BackendType) []types.LoadedModel {
	return m.reg.List(backend)
}

// ActiveModelID returns the id of the active model, or "".
func (m *Manager) ActiveModelID() string { return m.reg.ActiveID() }

// SelectModel switches the active model to a loaded model and refreshes
// its last-used time.
func (m *Manager) SelectModel(modelID string) error {
	info, ok := m.reg.Get(modelID)
	if !ok {
		return ErrModelNotFound(modelID)
	}
	if info.State != types.StateLoaded {
		return notLoadedError{id: modelID, state: info.State}
	}
	m.reg.SetActive(modelID)
	m.reg.MarkUsed(modelID)
	m.pub.Publish(Event{Name: "model_selected", ModelID: modelID})
	return nil
}

func (m *Manager) recordLoad(failed bool) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	if failed {
		m.loadFailures++
		return
	}
	m.loadsTotal++
}
