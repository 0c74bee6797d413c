package supervisor

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/webagency/opencode-bridge/internal/config"
	"github.com/webagency/opencode-bridge/internal/errors"
)

// handle is the supervisor-owned record of a spawned server process.
// Exactly one handle exists at a time and it is mutated only under the
// supervisor's lock.
type handle struct {
	cmd       *exec.Cmd
	startedAt time.Time
	waitErr   error
	done      chan struct{} // closed when the process has been reaped
}

// running reports whether the process has not yet exited.
func (h *handle) running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Supervisor owns the lifecycle of at most one opencode server process.
//
// The server is a scarce, slow-to-start singleton shared by every request.
// EnsureRunning treats "already running" as success whether the process is
// ours or an externally started one, so concurrent requests never race to
// spawn duplicates. All process-state access goes through the supervisor's
// lock; no other component touches the process directly.
type Supervisor struct {
	log   *slog.Logger
	opts  *config.Options
	probe *http.Client

	// group collapses concurrent EnsureRunning callers into a single
	// probe-and-spawn sequence.
	group singleflight.Group

	mu sync.Mutex
	h  *handle
}

// New creates a supervisor for the server described by opts.
func New(log *slog.Logger, opts *config.Options) *Supervisor {
	return &Supervisor{
		log:  log.With("component", "supervisor"),
		opts: opts,
		probe: &http.Client{
			Timeout: opts.ProbeTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Alive probes the server port and reports whether anything answered.
//
// Any HTTP-level response, including 404 or a redirect, counts as alive:
// the probe proves the port is served, not that the intended server is
// correct. It cannot distinguish the opencode server from an unrelated
// process already bound to the port; that is a deliberate policy carried
// over from the extension's original host.
func (s *Supervisor) Alive() bool {
	resp, err := s.probe.Get(s.opts.BaseURL() + "/")
	if err != nil {
		return false
	}

	defer resp.Body.Close()

	return true
}

// EnsureRunning makes sure a responsive server is listening, spawning one
// if needed. It is safe to call repeatedly and concurrently; overlapping
// callers share a single check-and-start sequence.
//
// Returns BinaryNotFoundError if the opencode binary cannot be located and
// StartupTimeoutError if a spawned server never became responsive (in
// which case the process has already been stopped).
func (s *Supervisor) EnsureRunning(ctx context.Context) error {
	_, err, _ := s.group.Do("ensure", func() (any, error) {
		return nil, s.ensure(ctx)
	})

	return err
}

func (s *Supervisor) ensure(ctx context.Context) error {
	s.mu.Lock()

	if s.h != nil {
		if s.h.running() && s.Alive() {
			s.mu.Unlock()

			return nil
		}

		// Process exited or stopped answering; drop the stale handle and
		// fall through to the normal start sequence.
		s.log.Warn("Dropping stale server handle", "running", s.h.running())
		s.h = nil
	}

	// Something is already listening that we did not start. Adopt it
	// rather than spawning a duplicate.
	if s.Alive() {
		s.log.Info("Adopted externally started server", "url", s.opts.BaseURL())
		s.mu.Unlock()

		return nil
	}

	path, err := s.locate()
	if err != nil {
		s.mu.Unlock()

		return err
	}

	h, err := s.spawn(path)
	if err != nil {
		s.mu.Unlock()

		return err
	}

	s.h = h
	s.mu.Unlock()

	if s.waitReady(ctx) {
		return nil
	}

	// Spawned but never became responsive: stop it so nothing is left
	// behind, then report the timeout.
	if err := s.Shutdown(); err != nil {
		s.log.Error("Failed to stop unresponsive server", "error", err)
	}

	return &errors.StartupTimeoutError{Timeout: s.opts.StartupTimeout}
}

// spawn starts the opencode server as a child process. Must be called with
// the lock held.
func (s *Supervisor) spawn(path string) (*handle, error) {
	//nolint:gosec // G204: the binary path comes from discovery or explicit config
	cmd := exec.Command(path,
		"serve",
		"--port", strconv.Itoa(s.opts.Port),
		"--hostname", s.opts.Host,
	)

	// Drain both output streams so the child can never block on a full
	// pipe; its chatter is only interesting at debug level.
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start opencode server: %w", err)
	}

	s.log.Info("Spawned opencode server", "pid", cmd.Process.Pid, "path", path)

	go s.drain("stdout", stdout)
	go s.drain("stderr", stderr)

	h := &handle{
		cmd:       cmd,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
		s.log.Debug("Server process exited", "error", h.waitErr)
	}()

	return h, nil
}

func (s *Supervisor) drain(name string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.log.Debug("Server output", "stream", name, "line", scanner.Text())
	}
}

// waitReady polls the liveness probe until the server answers, the startup
// timeout elapses, or ctx is cancelled.
func (s *Supervisor) waitReady(ctx context.Context) bool {
	deadline := time.Now().Add(s.opts.StartupTimeout)

	for time.Now().Before(deadline) {
		if s.Alive() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.opts.RetryDelay):
		}
	}

	return false
}

// Shutdown stops the supervised process if one exists: graceful
// termination first, escalating to a kill after the grace period. It is
// idempotent and safe to call when nothing was ever started.
func (s *Supervisor) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.h == nil {
		return nil
	}

	h := s.h
	s.h = nil

	if !h.running() {
		return nil
	}

	s.log.Info("Stopping opencode server", "pid", h.cmd.Process.Pid)

	if err := signalProcess(h.cmd.Process, syscall.SIGTERM); err != nil {
		s.log.Debug("Graceful termination failed, killing", "error", err)

		if err := h.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill server (pid %d): %w", h.cmd.Process.Pid, err)
		}
	}

	select {
	case <-h.done:
	case <-time.After(s.opts.ShutdownGrace):
		s.log.Warn("Server did not exit within grace period, killing", "pid", h.cmd.Process.Pid)

		if err := h.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill server (pid %d): %w", h.cmd.Process.Pid, err)
		}

		<-h.done
	}

	return nil
}

// signalProcess sends sig to a process, returning nil if the process has
// already exited.
func signalProcess(proc *os.Process, sig os.Signal) error {
	err := proc.Signal(sig)
	if stderrors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}
