package supervisor

import "time"

// ServerState is the lifecycle state of a supervised process.
type ServerState string

const (
	StateStopped  ServerState = "stopped"
	StateStarting ServerState = "starting"
	StateRunning  ServerState = "running"
	StateStopping ServerState = "stopping"
	StateError    ServerState = "error"
)

// HealthCheckMethod selects how readiness and health are probed.
type HealthCheckMethod string

const (
	HealthHTTPGet      HealthCheckMethod = "http_get"
	HealthHTTPPost     HealthCheckMethod = "http_post"
	HealthTCPConnect   HealthCheckMethod = "tcp_connect"
	HealthProcessAlive HealthCheckMethod = "process_alive"
)

// Defaults applied when corresponding ServerConfig fields are unset.
const (
	defaultStartupTimeout      = 30 * time.Second
	defaultHealthCheckInterval = 1 * time.Second
	defaultGracefulShutdown    = 5 * time.Second

	// healthCheckTimeout bounds each probe so a hung backend cannot
	// stall orchestration.
	healthCheckTimeout = 2 * time.Second
	// forcedShutdownGrace is how long we wait for the process to reap
	// after SIGKILL.
	forcedShutdownGrace = 2 * time.Second
	// restartSettleDelay avoids port/socket reuse races between stop
	// and start.
	restartSettleDelay = 1 * time.Second
)

// ServerConfig describes one supervised backend process. Immutable for the
// lifetime of the Supervisor.
type ServerConfig struct {
	Executable string
	Args       []string
	Port       int

	HealthCheckURL    string
	HealthCheckMethod HealthCheckMethod

	StartupTimeout          time.Duration
	HealthCheckInterval     time.Duration
	GracefulShutdownTimeout time.Duration
}

// withDefaults fills unset durations and the probe method.
func (c ServerConfig) withDefaults() ServerConfig {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.GracefulShutdownTimeout <= 0 {
		c.GracefulShutdownTimeout = defaultGracefulShutdown
	}
	if c.HealthCheckMethod == "" {
		c.HealthCheckMethod = HealthProcessAlive
	}
	return c
}

// Validate rejects configs that can never produce a working process.
func (c ServerConfig) Validate() error {
	if c.Executable == "" {
		return configurationError{msg: "executable is required"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return configurationError{msg: "port out of range"}
	}
	switch c.HealthCheckMethod {
	case HealthHTTPGet, HealthHTTPPost:
		if c.HealthCheckURL == "" {
			return configurationError{msg: "health check url required for " + string(c.HealthCheckMethod)}
		}
	case HealthTCPConnect:
		if c.Port == 0 {
			return configurationError{msg: "port required for tcp_connect health check"}
		}
	}
	return nil
}
