package supervisor

import (
	"net"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"valid process_alive", ServerConfig{Executable: "/bin/true", Port: 8080, HealthCheckMethod: HealthProcessAlive}, false},
		{"valid http with url", ServerConfig{Executable: "/bin/true", Port: 8080, HealthCheckMethod: HealthHTTPGet, HealthCheckURL: "http://127.0.0.1:8080/health"}, false},
		{"missing executable", ServerConfig{Port: 8080, HealthCheckMethod: HealthProcessAlive}, true},
		{"port too large", ServerConfig{Executable: "/bin/true", Port: 70000, HealthCheckMethod: HealthProcessAlive}, true},
		{"http without url", ServerConfig{Executable: "/bin/true", Port: 8080, HealthCheckMethod: HealthHTTPGet}, true},
		{"tcp without port", ServerConfig{Executable: "/bin/true", HealthCheckMethod: HealthTCPConnect}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.withDefaults().Validate()
			if tc.wantErr && !IsConfiguration(err) {
				t.Fatalf("Validate = %v, want configuration error", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate = %v, want nil", err)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := ServerConfig{Executable: "/bin/true", Port: 8080}.withDefaults()
	if cfg.StartupTimeout != 30*time.Second {
		t.Fatalf("StartupTimeout = %s, want 30s", cfg.StartupTimeout)
	}
	if cfg.HealthCheckInterval != time.Second {
		t.Fatalf("HealthCheckInterval = %s, want 1s", cfg.HealthCheckInterval)
	}
	if cfg.GracefulShutdownTimeout != 5*time.Second {
		t.Fatalf("GracefulShutdownTimeout = %s, want 5s", cfg.GracefulShutdownTimeout)
	}
	if cfg.HealthCheckMethod != HealthProcessAlive {
		t.Fatalf("HealthCheckMethod = %q, want %q", cfg.HealthCheckMethod, HealthProcessAlive)
	}
}

func TestPortAllocator(t *testing.T) {
	a, err := NewPortAllocator(33100, 33110)
	if err != nil {
		t.Fatalf("NewPortAllocator: %v", err)
	}
	p1, err := a.Allocate("model-a")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p2, err := a.Allocate("model-b")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("allocated the same port %d twice", p1)
	}
	if got := a.Owner(p1); got != "model-a" {
		t.Fatalf("Owner(%d) = %q, want model-a", p1, got)
	}
	a.Release(p1)
	if got := a.Owner(p1); got != "" {
		t.Fatalf("Owner after Release = %q, want empty", got)
	}
	if n := a.ReleaseOwner("model-b"); n != 1 {
		t.Fatalf("ReleaseOwner freed %d ports, want 1", n)
	}
	if a.InUse() != 0 {
		t.Fatalf("InUse = %d, want 0", a.InUse())
	}
}

func TestPortAllocatorSkipsBoundPorts(t *testing.T) {
	a, err := NewPortAllocator(33120, 33125)
	if err != nil {
		t.Fatalf("NewPortAllocator: %v", err)
	}
	// Occupy the first port of the range with an unrelated listener.
	ln, err := net.Listen("tcp", "127.0.0.1:33120")
	if err != nil {
		t.Skipf("cannot bind 33120: %v", err)
	}
	defer ln.Close()
	p, err := a.Allocate("m")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p == 33120 {
		t.Fatal("allocator handed out a port that is already bound")
	}
}

func TestPortAllocatorExhaustion(t *testing.T) {
	if _, err := NewPortAllocator(9, 5); err == nil {
		t.Fatal("expected error for inverted range")
	}
	a, err := NewPortAllocator(33130, 33131)
	if err != nil {
		t.Fatalf("NewPortAllocator: %v", err)
	}
	if _, err := a.Allocate("a"); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate("b"); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate("c"); err == nil {
		t.Fatal("expected exhaustion error")
	}
}
