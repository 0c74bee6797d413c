package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"
)

// Defaults mirror the behavior of the opencode CLI's serve mode and the
// timeouts the browser extension expects.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 4096
	DefaultBinaryName     = "opencode"
	DefaultConnectTimeout = 30 * time.Second
	DefaultStartupTimeout = 60 * time.Second
	DefaultShutdownGrace  = 5 * time.Second
	DefaultRetryDelay     = 1 * time.Second
	DefaultProbeTimeout   = 2 * time.Second
	DefaultMaxRetries     = 3

	// streamTimeoutFactor scales the connect timeout for the event-stream
	// connection, which is held open for the whole interaction.
	streamTimeoutFactor = 10
)

// Options configures the bridge.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Host is the address the opencode server listens on.
	Host string

	// Port is the TCP port the opencode server listens on.
	Port int

	// BinaryPath is an explicit path to the opencode binary.
	// If empty, the binary is searched in PATH and common locations.
	BinaryPath string

	// ConnectTimeout bounds each ordinary HTTP call to the server.
	ConnectTimeout time.Duration

	// StreamTimeout bounds the long-lived event-stream connection.
	// If zero, it defaults to 10x ConnectTimeout.
	StreamTimeout time.Duration

	// StartupTimeout bounds how long a freshly spawned server may take to
	// answer the liveness probe.
	StartupTimeout time.Duration

	// ShutdownGrace is how long a terminated server may take to exit
	// before it is killed.
	ShutdownGrace time.Duration

	// RetryDelay is the fixed delay between request retries and between
	// startup probe attempts.
	RetryDelay time.Duration

	// ProbeTimeout bounds a single liveness probe.
	ProbeTimeout time.Duration

	// MaxRetries is the attempt budget for non-streaming requests.
	MaxRetries int
}

// Default returns Options populated with default values.
func Default() *Options {
	return &Options{
		Host:           DefaultHost,
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		StartupTimeout: DefaultStartupTimeout,
		ShutdownGrace:  DefaultShutdownGrace,
		RetryDelay:     DefaultRetryDelay,
		ProbeTimeout:   DefaultProbeTimeout,
		MaxRetries:     DefaultMaxRetries,
	}
}

// Normalize fills zero-valued fields with defaults so every consumer sees
// a fully resolved configuration.
func (o *Options) Normalize() {
	d := Default()

	if o.Host == "" {
		o.Host = d.Host
	}

	if o.Port == 0 {
		o.Port = d.Port
	}

	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}

	if o.StreamTimeout == 0 {
		o.StreamTimeout = o.ConnectTimeout * streamTimeoutFactor
	}

	if o.StartupTimeout == 0 {
		o.StartupTimeout = d.StartupTimeout
	}

	if o.ShutdownGrace == 0 {
		o.ShutdownGrace = d.ShutdownGrace
	}

	if o.RetryDelay == 0 {
		o.RetryDelay = d.RetryDelay
	}

	if o.ProbeTimeout == 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}

	if o.MaxRetries == 0 {
		o.MaxRetries = d.MaxRetries
	}
}

// BaseURL returns the server's base URL, e.g. "http://127.0.0.1:4096".
func (o *Options) BaseURL() string {
	return "http://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// ApplyEnv overrides options from OPENCODE_BRIDGE_* environment variables.
// Unset variables leave the current value untouched; unparseable values
// are reported as errors rather than silently ignored.
func (o *Options) ApplyEnv() error {
	if v := os.Getenv("OPENCODE_BRIDGE_HOST"); v != "" {
		o.Host = v
	}

	if v := os.Getenv("OPENCODE_BRIDGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse OPENCODE_BRIDGE_PORT: %w", err)
		}

		o.Port = port
	}

	if v := os.Getenv("OPENCODE_BRIDGE_BINARY"); v != "" {
		o.BinaryPath = v
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"OPENCODE_BRIDGE_CONNECT_TIMEOUT", &o.ConnectTimeout},
		{"OPENCODE_BRIDGE_STREAM_TIMEOUT", &o.StreamTimeout},
		{"OPENCODE_BRIDGE_STARTUP_TIMEOUT", &o.StartupTimeout},
		{"OPENCODE_BRIDGE_SHUTDOWN_GRACE", &o.ShutdownGrace},
		{"OPENCODE_BRIDGE_RETRY_DELAY", &o.RetryDelay},
		{"OPENCODE_BRIDGE_PROBE_TIMEOUT", &o.ProbeTimeout},
	}

	for _, d := range durations {
		v := os.Getenv(d.name)
		if v == "" {
			continue
		}

		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}

		*d.dst = parsed
	}

	if v := os.Getenv("OPENCODE_BRIDGE_MAX_RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse OPENCODE_BRIDGE_MAX_RETRIES: %w", err)
		}

		o.MaxRetries = retries
	}

	return nil
}
