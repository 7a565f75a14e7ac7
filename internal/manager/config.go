package manager

import (
	"time"

	"inferd/internal/planner"
	"inferd/internal/registry"
	"inferd/internal/store"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// BackendConfig tells the manager how to run one backend runtime.
type BackendConfig struct {
	// Executable is the backend server binary.
	Executable string
	// ExtraArgs are appended after the generated model/port/layer flags.
	ExtraArgs []string
	// HealthPath is the HTTP readiness path. Defaults to /health.
	HealthPath string
	// HealthCheckMethod defaults to http_get.
	HealthCheckMethod supervisor.HealthCheckMethod
}

// Config wires the manager's collaborators and process policy.
// Store, Planner, Registry and Ports are required.
type Config struct {
	Store    *store.Store
	Planner  *planner.Planner
	Registry *registry.Registry
	Ports    *supervisor.PortAllocator

	// Publisher receives lifecycle events; nil means events are dropped.
	Publisher EventPublisher

	// Backends maps backend type to its runtime. A load request naming a
	// backend with no entry here is rejected.
	Backends map[types.BackendType]BackendConfig
	// DefaultBackend is used when a load request leaves the backend empty.
	DefaultBackend types.BackendType

	// Process policy passed through to each supervisor; zero values fall
	// back to the supervisor defaults.
	StartupTimeout          time.Duration
	HealthCheckInterval     time.Duration
	GracefulShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.DefaultBackend == "" {
		c.DefaultBackend = types.BackendLlamaCpp
	}
	return c
}
