package supervisor

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webagency/opencode-bridge/internal/config"
	"github.com/webagency/opencode-bridge/internal/errors"
)

// testOptions returns fast-failing options pointed at the given host:port.
func testOptions(t *testing.T, addr string) *config.Options {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	opts := &config.Options{
		Host:           host,
		Port:           port,
		StartupTimeout: 500 * time.Millisecond,
		RetryDelay:     50 * time.Millisecond,
		ProbeTimeout:   200 * time.Millisecond,
		ShutdownGrace:  time.Second,
	}
	opts.Normalize()

	return opts
}

// closedPort returns an address nothing is listening on.
func closedPort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// fakeBinary writes an executable shell script and returns its path.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "opencode")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

// TestInstalled_ExplicitPath tests discovery with an explicit path.
func TestInstalled_ExplicitPath(t *testing.T) {
	bin := fakeBinary(t, "#!/bin/sh\nexit 0\n")

	opts := testOptions(t, closedPort(t))
	opts.BinaryPath = bin

	s := New(slog.Default(), opts)

	path, err := s.Installed()
	require.NoError(t, err)
	require.Equal(t, bin, path)
}

// TestInstalled_NotFound tests that a missing explicit path returns
// BinaryNotFoundError listing the searched location.
func TestInstalled_NotFound(t *testing.T) {
	opts := testOptions(t, closedPort(t))
	opts.BinaryPath = "/nonexistent/path/to/opencode"

	s := New(slog.Default(), opts)

	_, err := s.Installed()
	require.Error(t, err)

	var notFound *errors.BinaryNotFoundError

	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{"/nonexistent/path/to/opencode"}, notFound.SearchedPaths)
}

// TestAlive_AnyResponse tests that any HTTP response proves liveness,
// including an error page.
func TestAlive_AnyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(slog.Default(), testOptions(t, srv.Listener.Addr().String()))
	require.True(t, s.Alive())
}

// TestAlive_NoListener tests that a closed port is reported dead.
func TestAlive_NoListener(t *testing.T) {
	s := New(slog.Default(), testOptions(t, closedPort(t)))
	require.False(t, s.Alive())
}

// TestEnsureRunning_AdoptsExternalServer tests that a server already
// listening on the port is adopted instead of spawning a duplicate. The
// configured binary path does not exist, so any spawn attempt would fail.
func TestEnsureRunning_AdoptsExternalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := testOptions(t, srv.Listener.Addr().String())
	opts.BinaryPath = "/nonexistent/opencode"

	s := New(slog.Default(), opts)

	require.NoError(t, s.EnsureRunning(context.Background()))

	// Repeated calls stay cheap successes.
	require.NoError(t, s.EnsureRunning(context.Background()))
}

// TestEnsureRunning_NotInstalled tests that a dead port plus a missing
// binary yields BinaryNotFoundError without attempting a spawn.
func TestEnsureRunning_NotInstalled(t *testing.T) {
	opts := testOptions(t, closedPort(t))
	opts.BinaryPath = "/nonexistent/opencode"

	s := New(slog.Default(), opts)

	err := s.EnsureRunning(context.Background())
	require.Error(t, err)

	var notFound *errors.BinaryNotFoundError

	require.ErrorAs(t, err, &notFound)
}

// TestEnsureRunning_StartupTimeout tests that a spawned process that
// never answers the probe is stopped and reported as a startup timeout.
func TestEnsureRunning_StartupTimeout(t *testing.T) {
	opts := testOptions(t, closedPort(t))
	opts.BinaryPath = fakeBinary(t, "#!/bin/sh\nsleep 60\n")

	s := New(slog.Default(), opts)

	err := s.EnsureRunning(context.Background())
	require.Error(t, err)

	var timeout *errors.StartupTimeoutError

	require.ErrorAs(t, err, &timeout)

	// The failed process was stopped internally; nothing is left behind.
	s.mu.Lock()
	require.Nil(t, s.h)
	s.mu.Unlock()
}

// TestEnsureRunning_SingleSpawn tests that two concurrent callers result
// in exactly one spawned process.
func TestEnsureRunning_SingleSpawn(t *testing.T) {
	spawnLog := filepath.Join(t.TempDir(), "spawns")
	t.Setenv("SPAWN_LOG", spawnLog)

	opts := testOptions(t, closedPort(t))
	opts.BinaryPath = fakeBinary(t, "#!/bin/sh\necho spawned >> \"$SPAWN_LOG\"\nsleep 60\n")

	s := New(slog.Default(), opts)

	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = s.EnsureRunning(context.Background())
		}()
	}

	wg.Wait()

	data, err := os.ReadFile(spawnLog)
	require.NoError(t, err)
	require.Equal(t, "spawned\n", string(data))
}

// TestShutdown_NoHandle tests that Shutdown is safe and idempotent when
// nothing was ever started.
func TestShutdown_NoHandle(t *testing.T) {
	s := New(slog.Default(), testOptions(t, closedPort(t)))

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())
}

// TestShutdown_StopsProcess tests that Shutdown terminates a running
// child and clears the handle.
func TestShutdown_StopsProcess(t *testing.T) {
	opts := testOptions(t, closedPort(t))
	opts.StartupTimeout = 100 * time.Millisecond

	s := New(slog.Default(), opts)

	s.mu.Lock()
	h, err := s.spawn(fakeBinary(t, "#!/bin/sh\nsleep 60\n"))
	require.NoError(t, err)
	s.h = h
	s.mu.Unlock()

	require.NoError(t, s.Shutdown())

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped after shutdown")
	}

	s.mu.Lock()
	require.Nil(t, s.h)
	s.mu.Unlock()
}
