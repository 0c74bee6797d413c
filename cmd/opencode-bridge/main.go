// Command opencode-bridge is the native messaging host executable
// registered with the browser. The browser launches it and speaks
// length-prefixed JSON frames over its stdin/stdout; logging therefore
// goes to stderr or a file, never stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	bridge "github.com/webagency/opencode-bridge"
)

func main() {
	app := &cli.App{
		Name:  "opencode-bridge",
		Usage: "bridge browser extension messages to a local OpenCode server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Address the OpenCode server listens on.",
				EnvVars: []string{"OPENCODE_BRIDGE_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "TCP port the OpenCode server listens on.",
				EnvVars: []string{"OPENCODE_BRIDGE_PORT"},
			},
			&cli.StringFlag{
				Name:    "binary",
				Usage:   "Explicit path to the opencode binary (skips the PATH search).",
				EnvVars: []string{"OPENCODE_BRIDGE_BINARY"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load OPENCODE_BRIDGE_* variables from this file before starting.",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error, or off.",
				Value:   "off",
				EnvVars: []string{"OPENCODE_BRIDGE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Write logs to this file instead of stderr.",
				EnvVars: []string{"OPENCODE_BRIDGE_LOG_FILE"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if envFile := c.String("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	logger, closeLog, err := newLogger(c.String("log-level"), c.String("log-file"))
	if err != nil {
		return err
	}
	defer closeLog()

	opts := []bridge.Option{bridge.WithLogger(logger)}

	if host := c.String("host"); host != "" {
		opts = append(opts, bridge.WithServerHost(host))
	}

	if port := c.Int("port"); port != 0 {
		opts = append(opts, bridge.WithServerPort(port))
	}

	if binary := c.String("binary"); binary != "" {
		opts = append(opts, bridge.WithBinaryPath(binary))
	}

	host, err := bridge.New(opts...)
	if err != nil {
		return err
	}

	// The browser closes our stdin to stop us, but the OS may also send a
	// termination signal; both end the loop between frames.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// newLogger builds the slog logger for the given level and destination.
// Level "off" disables logging entirely.
func newLogger(level, file string) (*slog.Logger, func(), error) {
	closeLog := func() {}

	if strings.EqualFold(level, "off") {
		return bridge.NopLogger(), closeLog, nil
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var w io.Writer = os.Stderr

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}

		w = f
		closeLog = func() { _ = f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closeLog, nil
}
