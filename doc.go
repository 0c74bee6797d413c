// Package bridge implements a native messaging host that connects a
// browser extension to a local OpenCode server.
//
// The bridge reads length-prefixed JSON frames from standard input,
// manages the lifecycle of the opencode server process, forwards each
// prompt through the server's HTTP API, and writes response frames (or a
// stream of translated server-sent events) back to standard output.
//
// # Basic Usage
//
//	host, err := bridge.New(
//	    bridge.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	if err := host.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run processes one frame at a time until the input stream closes or ctx
// is cancelled, then stops the managed server process.
//
// # Logging
//
// All logging goes through slog and must be directed at stderr or a file:
// stdout carries the framing protocol and is owned by the host. If no
// logger is configured, logging is disabled.
package bridge
