package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// BackendFileConfig configures one backend runtime.
type BackendFileConfig struct {
	Executable string   `json:"executable" yaml:"executable" toml:"executable"`
	ExtraArgs  []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	HealthPath string   `json:"health_path" yaml:"health_path" toml:"health_path"`
}

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Backend port range handed to the allocator.
	PortRangeStart int `json:"port_range_start" yaml:"port_range_start" toml:"port_range_start"`
	PortRangeEnd   int `json:"port_range_end" yaml:"port_range_end" toml:"port_range_end"`

	// Planner overrides; zero keeps the built-in constants.
	RuntimeMultiplier float64 `json:"runtime_multiplier" yaml:"runtime_multiplier" toml:"runtime_multiplier"`
	MinVRAMFraction   float64 `json:"min_vram_fraction" yaml:"min_vram_fraction" toml:"min_vram_fraction"`

	// Process policy in seconds; zero keeps the supervisor defaults.
	StartupTimeoutSec          int `json:"startup_timeout_sec" yaml:"startup_timeout_sec" toml:"startup_timeout_sec"`
	GracefulShutdownTimeoutSec int `json:"graceful_shutdown_timeout_sec" yaml:"graceful_shutdown_timeout_sec" toml:"graceful_shutdown_timeout_sec"`

	// Backends maps backend name (llamacpp, bitnet, onnx) to its runtime.
	Backends       map[string]BackendFileConfig `json:"backends" yaml:"backends" toml:"backends"`
	DefaultBackend string                       `json:"default_backend" yaml:"default_backend" toml:"default_backend"`

	// Logging.
	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile    string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogMaxSize int    `json:"log_max_size_mb" yaml:"log_max_size_mb" toml:"log_max_size_mb"`

	// CORS (opt-in).
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`

	// MaxBodyBytes caps JSON request bodies. Zero keeps the default.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	// WatchModels enables the filesystem watcher on the models directory.
	WatchModels bool `json:"watch_models" yaml:"watch_models" toml:"watch_models"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
