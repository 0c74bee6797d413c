package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/webagency/opencode-bridge/internal/config"
	"github.com/webagency/opencode-bridge/internal/errors"
	"github.com/webagency/opencode-bridge/internal/framing"
	"github.com/webagency/opencode-bridge/internal/opencode"
	"github.com/webagency/opencode-bridge/internal/supervisor"
)

// Installation guidance attached to "not installed" responses.
const (
	installURL          = "https://github.com/code-yeongyu/opencode"
	installInstructions = "Install OpenCode using: npm install -g opencode"
)

// Host is the top-level dispatch loop of the native messaging host.
//
// Run reads one frame at a time and processes it fully, including a whole
// streaming interaction, before reading the next. A long-running stream
// therefore blocks subsequent requests; that serialization is deliberate
// and matches what the extension expects from a native messaging host.
type Host struct {
	log    *slog.Logger
	opts   *config.Options
	reader *framing.Reader
	writer *framing.Writer
	sup    *supervisor.Supervisor
	client *opencode.Client

	// shutdownOnce guarantees the server stop sequence runs exactly once
	// whether Run exits via EOF, cancellation, or panic.
	shutdownOnce sync.Once
}

// New creates a Host. Configuration is resolved from defaults, then
// OPENCODE_BRIDGE_* environment variables, then the given options.
func New(opts ...Option) (*Host, error) {
	o := applyOptions(opts)

	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	if o.serverHost != "" {
		cfg.Host = o.serverHost
	}

	if o.serverPort != 0 {
		cfg.Port = o.serverPort
	}

	if o.binaryPath != "" {
		cfg.BinaryPath = o.binaryPath
	}

	if o.connectTimeout != 0 {
		cfg.ConnectTimeout = o.connectTimeout
	}

	if o.streamTimeout != 0 {
		cfg.StreamTimeout = o.streamTimeout
	}

	if o.startupTimeout != 0 {
		cfg.StartupTimeout = o.startupTimeout
	}

	if o.shutdownGrace != 0 {
		cfg.ShutdownGrace = o.shutdownGrace
	}

	if o.retryDelay != 0 {
		cfg.RetryDelay = o.retryDelay
	}

	if o.probeTimeout != 0 {
		cfg.ProbeTimeout = o.probeTimeout
	}

	if o.maxRetries != 0 {
		cfg.MaxRetries = o.maxRetries
	}

	cfg.Normalize()

	log := o.logger
	if log == nil {
		log = NopLogger()
	}

	input := o.input
	if input == nil {
		input = os.Stdin
	}

	output := o.output
	if output == nil {
		output = os.Stdout
	}

	sup := supervisor.New(log, cfg)

	return &Host{
		log:    log.With("component", "host"),
		opts:   cfg,
		reader: framing.NewReader(input, log),
		writer: framing.NewWriter(output, log),
		sup:    sup,
		client: opencode.New(log, cfg, sup.EnsureRunning),
	}, nil
}

// Run drives the dispatch loop until the input stream ends or ctx is
// cancelled, then stops the managed server process. It always leaves the
// supervisor shut down, including on panic.
func (h *Host) Run(ctx context.Context) (err error) {
	defer h.shutdown()

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Dispatch loop panicked", "panic", r)

			// Best effort: a failure to even send the error frame is
			// swallowed, silence is handled by the extension's timeout.
			_ = h.writer.Write(Response{
				Success: false,
				Error:   fmt.Sprintf("Unexpected error: %v", r),
			})

			err = fmt.Errorf("dispatch loop panicked: %v", r)
		}
	}()

	// Without the binary nothing can be served; report once and exit.
	if _, err := h.sup.Installed(); err != nil {
		_ = h.writer.Write(h.notInstalledResponse(nil))

		return err
	}

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Cancelled, shutting down")

			return ctx.Err()
		default:
		}

		frame, err := h.reader.Read()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				h.log.Info("Input closed, shutting down")

				return nil
			}

			// A malformed frame means the channel can no longer be
			// trusted; treat it as end of input rather than a crash.
			h.log.Warn("Terminating on undecodable frame", "error", err)

			return nil
		}

		h.dispatch(ctx, frame)
	}
}

// dispatch handles one decoded frame: validation, server startup, then
// the streaming or non-streaming exchange.
func (h *Host) dispatch(ctx context.Context, frame json.RawMessage) {
	log := h.log.With("request_id", ulid.Make().String())

	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		log.Warn("Frame is not a request object", "error", err)
		h.write(log, Response{Success: false, Error: "Invalid request: " + err.Error()})

		return
	}

	if req.Prompt == "" {
		h.write(log, Response{
			Success:   false,
			Error:     "No prompt provided",
			RequestID: req.RequestID,
		})

		return
	}

	if req.Agent != "" {
		log.Info("Routing to agent", "agent", req.Agent)
	}

	if _, err := h.sup.Installed(); err != nil {
		h.write(log, h.notInstalledResponse(req.RequestID))

		return
	}

	if err := h.sup.EnsureRunning(ctx); err != nil {
		log.Error("Server startup failed", "error", err)

		var notFoundErr *errors.BinaryNotFoundError
		if stderrors.As(err, &notFoundErr) {
			h.write(log, h.notInstalledResponse(req.RequestID))

			return
		}

		h.write(log, Response{
			Success: false,
			Error:   "Failed to start OpenCode server",
			Troubleshooting: []string{
				"Ensure OpenCode is installed and in PATH",
				fmt.Sprintf("Check that port %d is not blocked", h.opts.Port),
				"Verify OpenCode serve command works in terminal",
			},
			RequestID: req.RequestID,
		})

		return
	}

	forwarded := opencode.Request{
		Prompt:  req.Prompt,
		Context: req.Context,
		Agent:   req.Agent,
	}

	if req.Stream {
		h.dispatchStream(ctx, log, forwarded, req.RequestID)
	} else {
		h.dispatchForward(ctx, log, forwarded, req.RequestID)
	}
}

// dispatchForward runs the request/response exchange and emits exactly
// one response frame.
func (h *Host) dispatchForward(
	ctx context.Context,
	log *slog.Logger,
	req opencode.Request,
	requestID json.RawMessage,
) {
	data, err := h.client.Forward(ctx, req)
	if err != nil {
		log.Error("Forward failed", "error", err)

		resp := Response{Success: false, Error: err.Error(), RequestID: requestID}
		var postErr *errors.MessagePostError
		if stderrors.As(err, &postErr) {
			resp.Details = postErr.Body
		}

		h.write(log, resp)

		return
	}

	h.write(log, Response{Success: true, Data: data, RequestID: requestID})
}

// dispatchStream forwards every translated event as its own frame, then
// closes the exchange with a stream_complete frame.
func (h *Host) dispatchStream(
	ctx context.Context,
	log *slog.Logger,
	req opencode.Request,
	requestID json.RawMessage,
) {
	for ev := range h.client.Stream(ctx, req) {
		h.write(log, StreamEventFrame{
			Type:      FrameStreamEvent,
			Event:     ev,
			RequestID: requestID,
		})
	}

	h.write(log, StreamCompleteFrame{
		Type:      FrameStreamComplete,
		RequestID: requestID,
	})
}

// write emits one frame, logging instead of failing the loop on error:
// every failure path must still produce a frame, but a dead output stream
// only surfaces when the next read ends the loop.
func (h *Host) write(log *slog.Logger, v any) {
	if err := h.writer.Write(v); err != nil {
		log.Error("Failed to write frame", "error", err)
	}
}

func (h *Host) notInstalledResponse(requestID json.RawMessage) Response {
	return Response{
		Success:      false,
		Error:        "OpenCode is not installed",
		InstallURL:   installURL,
		Instructions: installInstructions,
		RequestID:    requestID,
	}
}

// shutdown stops the supervised server exactly once.
func (h *Host) shutdown() {
	h.shutdownOnce.Do(func() {
		if err := h.sup.Shutdown(); err != nil {
			h.log.Error("Server shutdown failed", "error", err)
		}
	})
}
