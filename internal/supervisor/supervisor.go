// Package supervisor owns one external backend process per Supervisor:
// spawn, readiness polling, health checks and two-phase shutdown.
//
// Supervision is synchronous and poll-driven. There is no background
// watcher: callers re-invoke HealthCheck or Reconcile periodically.
// Instances are independent and individually safe for concurrent use.
package supervisor

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Supervisor drives a single backend process through
// stopped -> starting -> running -> stopping -> stopped, with error as the
// branch for spawn failures, readiness timeouts and detected death.
type Supervisor struct {
	cfg        ServerConfig
	httpClient *http.Client

	mu      sync.Mutex
	state   ServerState
	cmd     *exec.Cmd
	waitCh  chan struct{}
	waitErr error
	stdout  *tailBuffer
	stderr  *tailBuffer
}

// New validates cfg and constructs a Supervisor in the stopped state.
func New(cfg ServerConfig) (*Supervisor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Supervisor{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: healthCheckTimeout},
		state:      StateStopped,
	}, nil
}

// Config returns the immutable process configuration.
func (s *Supervisor) Config() ServerConfig { return s.cfg }

// State returns the current lifecycle state.
func (s *Supervisor) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns the process and blocks until it is ready or the startup
// timeout elapses. On any failure the partial process is stopped before
// returning: Start never leaks a process.
//
// Returns an invalid-state error when not stopped and an
// executable-not-found error (state stays stopped) when the binary is
// missing.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.state != StateStopped {
		st := s.state
		s.mu.Unlock()
		return invalidStateError{state: st}
	}
	if fi, err := os.Stat(s.cfg.Executable); err != nil || fi.IsDir() {
		s.mu.Unlock()
		return executableNotFoundError{path: s.cfg.Executable}
	}
	s.state = StateStarting
	s.stdout = newTailBuffer()
	s.stderr = newTailBuffer()

	cmd := exec.Command(s.cfg.Executable, s.cfg.Args...)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	// Stdin stays nil: the child reads from the null device, never from us.
	if err := cmd.Start(); err != nil {
		s.state = StateError
		s.mu.Unlock()
		return spawnError{cause: err}
	}
	s.cmd = cmd
	waitCh := make(chan struct{})
	s.waitCh = waitCh
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(waitCh)
	}()
	s.mu.Unlock()

	log.Printf("supervisor event=spawn exe=%q pid=%d port=%d", s.cfg.Executable, cmd.Process.Pid, s.cfg.Port)

	if s.WaitForReady(s.cfg.StartupTimeout) {
		s.mu.Lock()
		if s.state == StateStarting {
			s.state = StateRunning
			s.mu.Unlock()
			log.Printf("supervisor event=ready pid=%d port=%d", cmd.Process.Pid, s.cfg.Port)
			return nil
		}
		// Stopped concurrently while the readiness probe passed.
		st := s.state
		s.mu.Unlock()
		s.Stop(0)
		return invalidStateError{state: st}
	}

	// Readiness failed: stop whatever is left, then surface the timeout.
	tail := s.stderr.String()
	s.Stop(0)
	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()
	log.Printf("supervisor event=ready_timeout exe=%q port=%d", s.cfg.Executable, s.cfg.Port)
	return readinessTimeoutError{executable: s.cfg.Executable, stderrTail: tail}
}

// WaitForReady polls HealthCheck at the configured interval until the
// process is healthy, dead, being stopped or the timeout elapses. A dead
// process aborts the wait immediately instead of running out the clock.
func (s *Supervisor) WaitForReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.HealthCheck() {
			return true
		}
		if !s.IsRunning() {
			log.Printf("supervisor event=died_during_startup exe=%q", s.cfg.Executable)
			return false
		}
		switch s.State() {
		case StateStopping, StateStopped:
			return false
		}
		time.Sleep(s.cfg.HealthCheckInterval)
	}
	return false
}

// HealthCheck probes the process. It confirms liveness first, then
// dispatches on the configured method. Failures are reported as false,
// never as errors, so polling loops stay resilient.
func (s *Supervisor) HealthCheck() bool {
	if !s.IsRunning() {
		return false
	}
	switch s.cfg.HealthCheckMethod {
	case HealthProcessAlive:
		return true
	case HealthHTTPGet, HealthHTTPPost:
		if s.cfg.HealthCheckURL == "" {
			log.Printf("supervisor event=health_no_url exe=%q", s.cfg.Executable)
			return true
		}
		return s.httpHealthy()
	case HealthTCPConnect:
		conn, err := net.DialTimeout("tcp",
			net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.Port)), healthCheckTimeout)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	default:
		// Degrade to liveness rather than failing hard on a typo.
		log.Printf("supervisor event=health_unknown_method method=%q", s.cfg.HealthCheckMethod)
		return true
	}
}

func (s *Supervisor) httpHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	method := http.MethodGet
	if s.cfg.HealthCheckMethod == HealthHTTPPost {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.HealthCheckURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IsRunning is a pure liveness read: it reports whether the spawned
// process is still alive and never mutates state. Use Reconcile to fold a
// detected death into the state machine.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	cmd, waitCh := s.cmd, s.waitCh
	s.mu.Unlock()
	if cmd == nil || waitCh == nil {
		return false
	}
	select {
	case <-waitCh:
		return false
	default:
		return true
	}
}

// Reconcile folds observed liveness into the state machine: discovering a
// dead process while the state is running flips it to error and returns a
// process-died error. Death is only ever detected here, lazily, not pushed.
func (s *Supervisor) Reconcile() (ServerState, error) {
	alive := s.IsRunning()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning && !alive {
		s.state = StateError
		code := s.exitCodeLocked()
		log.Printf("supervisor event=process_died exe=%q exit_code=%d", s.cfg.Executable, code)
		return s.state, processDiedError{exitCode: code}
	}
	return s.state, nil
}

// Stop tears the process down: graceful signal first, then a forced kill
// after timeout (the configured graceful shutdown timeout when zero).
// Idempotent: stopping an already-stopped supervisor returns true
// immediately. Returns false only if the forced kill itself fails, so a
// misbehaving backend can never block the supervisor indefinitely.
func (s *Supervisor) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	if s.cmd == nil {
		s.state = StateStopped
		s.mu.Unlock()
		return true
	}
	if timeout <= 0 {
		timeout = s.cfg.GracefulShutdownTimeout
	}
	s.state = StateStopping
	cmd, waitCh := s.cmd, s.waitCh
	s.mu.Unlock()

	pid := cmd.Process.Pid
	log.Printf("supervisor event=stop pid=%d", pid)
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-waitCh:
		s.markStopped()
		return true
	case <-time.After(timeout):
		log.Printf("supervisor event=stop_escalate pid=%d waited=%s", pid, timeout)
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Printf("supervisor event=kill_failed pid=%d err=%v", pid, err)
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return false
	}
	select {
	case <-waitCh:
		s.markStopped()
		return true
	case <-time.After(forcedShutdownGrace):
		log.Printf("supervisor event=kill_not_reaped pid=%d", pid)
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return false
	}
}

func (s *Supervisor) markStopped() {
	s.mu.Lock()
	s.state = StateStopped
	s.cmd = nil
	s.mu.Unlock()
}

// Restart stops the process, waits a settle delay to avoid port reuse
// races, then starts it again.
func (s *Supervisor) Restart() error {
	s.Stop(0)
	time.Sleep(restartSettleDelay)
	return s.Start()
}

// PID returns the process id, or 0 when no process was spawned.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Supervisor) exitCodeLocked() int {
	if s.cmd == nil || s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// StderrTail returns the retained tail of the child's stderr, for
// diagnostics only; output is never parsed for control decisions.
func (s *Supervisor) StderrTail() string {
	s.mu.Lock()
	buf := s.stderr
	s.mu.Unlock()
	if buf == nil {
		return ""
	}
	return buf.String()
}

// StdoutTail returns the retained tail of the child's stdout.
func (s *Supervisor) StdoutTail() string {
	s.mu.Lock()
	buf := s.stdout
	s.mu.Unlock()
	if buf == nil {
		return ""
	}
	return buf.String()
}

// Close is the teardown safety net: if a live process handle remains it is
// stopped best-effort with a warning. Not the primary shutdown path.
func (s *Supervisor) Close() error {
	if s.IsRunning() {
		log.Printf("supervisor event=close_while_running exe=%q pid=%d", s.cfg.Executable, s.PID())
		s.Stop(0)
	}
	return nil
}
