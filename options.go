package bridge

import (
	"io"
	"log/slog"
	"time"
)

// Option configures the Host using the functional options pattern.
type Option func(*hostOptions)

// hostOptions collects everything New needs beyond the server config.
type hostOptions struct {
	logger *slog.Logger
	input  io.Reader
	output io.Writer

	serverHost     string
	serverPort     int
	binaryPath     string
	connectTimeout time.Duration
	streamTimeout  time.Duration
	startupTimeout time.Duration
	shutdownGrace  time.Duration
	retryDelay     time.Duration
	probeTimeout   time.Duration
	maxRetries     int
}

func applyOptions(opts []Option) *hostOptions {
	options := &hostOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output. The logger must not write
// to stdout, which carries the framing protocol.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *hostOptions) {
		o.logger = logger
	}
}

// WithInput overrides the frame input stream. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(o *hostOptions) {
		o.input = r
	}
}

// WithOutput overrides the frame output stream. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *hostOptions) {
		o.output = w
	}
}

// WithServerHost sets the address the opencode server listens on.
func WithServerHost(host string) Option {
	return func(o *hostOptions) {
		o.serverHost = host
	}
}

// WithServerPort sets the TCP port the opencode server listens on.
func WithServerPort(port int) Option {
	return func(o *hostOptions) {
		o.serverPort = port
	}
}

// WithBinaryPath sets an explicit path to the opencode binary, skipping
// the PATH search.
func WithBinaryPath(path string) Option {
	return func(o *hostOptions) {
		o.binaryPath = path
	}
}

// WithConnectTimeout bounds each ordinary HTTP call to the server.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *hostOptions) {
		o.connectTimeout = d
	}
}

// WithStreamTimeout bounds the long-lived event-stream connection.
// Defaults to 10x the connect timeout.
func WithStreamTimeout(d time.Duration) Option {
	return func(o *hostOptions) {
		o.streamTimeout = d
	}
}

// WithStartupTimeout bounds how long a freshly spawned server may take to
// become responsive.
func WithStartupTimeout(d time.Duration) Option {
	return func(o *hostOptions) {
		o.startupTimeout = d
	}
}

// WithShutdownGrace sets how long a terminated server may take to exit
// before it is killed.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *hostOptions) {
		o.shutdownGrace = d
	}
}

// WithRetryDelay sets the fixed delay between request retries and between
// startup probe attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *hostOptions) {
		o.retryDelay = d
	}
}

// WithProbeTimeout bounds a single liveness probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *hostOptions) {
		o.probeTimeout = d
	}
}

// WithMaxRetries sets the attempt budget for non-streaming requests.
func WithMaxRetries(n int) Option {
	return func(o *hostOptions) {
		o.maxRetries = n
	}
}
