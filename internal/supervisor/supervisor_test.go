package supervisor

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"
)

// buildTestBackend builds the fake backend used for subprocess tests and
// returns its path.
func buildTestBackend(t *testing.T) string {
	t.Helper()
	tdir := t.TempDir()
	bin := filepath.Join(tdir, "fake_backend")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_backend.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake backend: %v: %s", err, string(out))
	}
	return bin
}

// pickPort grabs a free localhost port by binding :0 and closing it.
func pickPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pick port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func httpConfig(bin string, port int) ServerConfig {
	return ServerConfig{
		Executable:          bin,
		Args:                []string{"-port", strconv.Itoa(port)},
		Port:                port,
		HealthCheckURL:      "http://127.0.0.1:" + strconv.Itoa(port) + "/health",
		HealthCheckMethod:   HealthHTTPGet,
		StartupTimeout:      5 * time.Second,
		HealthCheckInterval: 20 * time.Millisecond,
	}
}

func TestStartStopLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	s, err := New(httpConfig(bin, port))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Fatalf("state after Start = %q, want %q", got, StateRunning)
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning = false after successful Start")
	}
	if s.PID() <= 0 {
		t.Fatalf("PID = %d, want > 0", s.PID())
	}
	if !s.HealthCheck() {
		t.Fatal("HealthCheck = false while running")
	}

	if !s.Stop(0) {
		t.Fatal("Stop returned false")
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state after Stop = %q, want %q", got, StateStopped)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning = true after Stop")
	}
}

func TestStartExecutableNotFound(t *testing.T) {
	s, err := New(ServerConfig{
		Executable:        filepath.Join(t.TempDir(), "no-such-backend"),
		Port:              12345,
		HealthCheckMethod: HealthProcessAlive,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = s.Start()
	if !IsExecutableNotFound(err) {
		t.Fatalf("Start err = %v, want executable-not-found", err)
	}
	// A missing binary must never leave the state machine mid-start.
	if got := s.State(); got != StateStopped {
		t.Fatalf("state after failed Start = %q, want %q", got, StateStopped)
	}
}

func TestStartTwiceInvalidState(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	s, err := New(httpConfig(bin, port))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); !IsInvalidState(err) {
		t.Fatalf("second Start err = %v, want invalid-state", err)
	}
	s.Stop(0)
}

func TestStopIdempotent(t *testing.T) {
	s, err := New(ServerConfig{
		Executable:        "/bin/true",
		Port:              12346,
		HealthCheckMethod: HealthProcessAlive,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 2; i++ {
		if !s.Stop(0) {
			t.Fatalf("Stop call %d returned false on never-started supervisor", i+1)
		}
		if got := s.State(); got != StateStopped {
			t.Fatalf("state after Stop call %d = %q, want %q", i+1, got, StateStopped)
		}
	}
}

func TestStopEscalatesWhenSigtermIgnored(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	cfg := httpConfig(bin, port)
	cfg.Args = append(cfg.Args, "-ignore-sigterm")
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Graceful phase is ignored by the child; the forced kill must still win.
	if !s.Stop(200 * time.Millisecond) {
		t.Fatal("Stop returned false, expected forced kill to succeed")
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state after escalated Stop = %q, want %q", got, StateStopped)
	}
}

func TestReadinessTimeoutWhenNeverListening(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	cfg := httpConfig(bin, port)
	cfg.Args = append(cfg.Args, "-no-listen")
	cfg.StartupTimeout = 300 * time.Millisecond
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	err = s.Start()
	if !IsReadinessTimeout(err) {
		t.Fatalf("Start err = %v, want readiness-timeout", err)
	}
	if got := s.State(); got != StateError {
		t.Fatalf("state after readiness timeout = %q, want %q", got, StateError)
	}
	if s.IsRunning() {
		t.Fatal("process leaked after failed Start")
	}
}

func TestReadinessAbortsEarlyWhenProcessDies(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	cfg := httpConfig(bin, port)
	cfg.Args = append(cfg.Args, "-no-listen", "-exit-after", "100ms")
	cfg.StartupTimeout = 10 * time.Second
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	begin := time.Now()
	err = s.Start()
	elapsed := time.Since(begin)
	if !IsReadinessTimeout(err) {
		t.Fatalf("Start err = %v, want readiness-timeout", err)
	}
	// Death must short-circuit the wait instead of running out the clock.
	if elapsed > 5*time.Second {
		t.Fatalf("Start took %s, expected early exit on process death", elapsed)
	}
	if tail := s.StderrTail(); tail == "" {
		t.Fatal("expected stderr tail from crashed backend")
	}
}

func TestStopDuringStartExitsReadinessLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	cfg := httpConfig(bin, port)
	cfg.Args = append(cfg.Args, "-no-listen")
	cfg.StartupTimeout = 10 * time.Second
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	stopped := make(chan bool, 1)
	go func() {
		// Let Start reach the readiness poll before stopping.
		time.Sleep(150 * time.Millisecond)
		stopped <- s.Stop(0)
	}()

	begin := time.Now()
	err = s.Start()
	elapsed := time.Since(begin)
	if err == nil {
		t.Fatal("Start succeeded despite concurrent Stop")
	}
	// The poll loop must observe the stop and bail out, not run out the
	// full startup timeout.
	if elapsed > 5*time.Second {
		t.Fatalf("Start took %s, expected early exit on concurrent Stop", elapsed)
	}
	if !<-stopped {
		t.Fatal("concurrent Stop returned false")
	}
	if s.IsRunning() {
		t.Fatal("process leaked after concurrent Stop")
	}
	if got := s.State(); got == StateStarting || got == StateRunning {
		t.Fatalf("state after concurrent Stop = %q", got)
	}
}

func TestReconcileDetectsDeath(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	cfg := httpConfig(bin, port)
	cfg.HealthCheckMethod = HealthProcessAlive
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := s.PID()
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("kill %d: %v", pid, err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning still true after SIGKILL")
	}
	// IsRunning is a pure read; the state only flips on Reconcile.
	if got := s.State(); got != StateRunning {
		t.Fatalf("state before Reconcile = %q, want %q", got, StateRunning)
	}
	st, err := s.Reconcile()
	if st != StateError {
		t.Fatalf("Reconcile state = %q, want %q", st, StateError)
	}
	if !IsProcessDied(err) {
		t.Fatalf("Reconcile err = %v, want process-died", err)
	}
	if st, err := s.Reconcile(); st != StateError || err != nil {
		t.Fatalf("second Reconcile = (%q, %v), want (%q, nil)", st, err, StateError)
	}
}

func TestTCPConnectHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	cfg := httpConfig(bin, port)
	cfg.HealthCheckMethod = HealthTCPConnect
	cfg.HealthCheckURL = ""
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.HealthCheck() {
		t.Fatal("tcp_connect HealthCheck = false against listening backend")
	}
	s.Stop(0)
	// Probing a closed port must report unhealthy, never panic or error.
	if s.HealthCheck() {
		t.Fatal("HealthCheck = true after Stop")
	}
}

func TestRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildTestBackend(t)
	port := pickPort(t)
	s, err := New(httpConfig(bin, port))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := s.PID()
	if err := s.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Fatalf("state after Restart = %q, want %q", got, StateRunning)
	}
	if s.PID() == first {
		t.Fatalf("Restart kept pid %d, want a new process", first)
	}
	s.Stop(0)
}
