package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
addr: :9999
models_dir: /tmp/models
port_range_start: 34000
port_range_end: 34050
runtime_multiplier: 1.4
backends:
  llamacpp:
    executable: /usr/bin/llama-server
    health_path: /health
default_backend: llamacpp
watch_models: true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp/models" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.PortRangeStart != 34000 || cfg.PortRangeEnd != 34050 {
		t.Fatalf("port range not parsed: %+v", cfg)
	}
	if cfg.RuntimeMultiplier != 1.4 {
		t.Fatalf("RuntimeMultiplier = %v, want 1.4", cfg.RuntimeMultiplier)
	}
	be, ok := cfg.Backends["llamacpp"]
	if !ok || be.Executable != "/usr/bin/llama-server" || be.HealthPath != "/health" {
		t.Fatalf("backend not parsed: %+v", cfg.Backends)
	}
	if !cfg.WatchModels {
		t.Fatal("watch_models not parsed")
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json",
		`{"addr":":7070","models_dir":"/m","min_vram_fraction":0.25,"default_backend":"bitnet","backends":{"bitnet":{"executable":"/opt/bitnet"}}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.MinVRAMFraction != 0.25 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DefaultBackend != "bitnet" || cfg.Backends["bitnet"].Executable != "/opt/bitnet" {
		t.Fatalf("backend not parsed: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `
addr = ":8081"
models_dir = "/x"
startup_timeout_sec = 60
cors_enabled = true
cors_allowed_origins = ["http://localhost:3000"]

[backends.llamacpp]
executable = "/usr/bin/llama-server"
extra_args = ["--ctx-size", "4096"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.StartupTimeoutSec != 60 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORSEnabled || len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("cors not parsed: %+v", cfg)
	}
	be := cfg.Backends["llamacpp"]
	if be.Executable != "/usr/bin/llama-server" || len(be.ExtraArgs) != 2 {
		t.Fatalf("backend not parsed: %+v", be)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatal("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatal("expected error on missing file")
	}
	bad := writeTempFile(t, d, "bad.json", `{"addr":`)
	if _, err := Load(bad); err == nil {
		t.Fatal("expected error on malformed JSON")
	}
	badYAML := writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(badYAML); err == nil {
		t.Fatal("expected error on malformed YAML")
	}
	badTOML := writeTempFile(t, d, "bad.toml", "addr=:8080\nmodels_dir\n")
	if _, err := Load(badTOML); err == nil {
		t.Fatal("expected error on malformed TOML")
	}
}
