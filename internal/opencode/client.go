package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/webagency/opencode-bridge/internal/config"
	"github.com/webagency/opencode-bridge/internal/errors"
)

// Restarter is called after a network-level failure to get the server
// running again before the next attempt. The supervisor's EnsureRunning
// satisfies it.
type Restarter func(ctx context.Context) error

// Client talks to the opencode server's HTTP API: session create, message
// post, and the server-sent event stream.
type Client struct {
	log     *slog.Logger
	opts    *config.Options
	base    string
	restart Restarter

	// httpc serves the short request/response calls; streamc holds the
	// long-lived event-stream connection and gets a far larger timeout.
	httpc   *http.Client
	streamc *http.Client

	// sleep is replaceable in tests to observe retry delays.
	sleep func(time.Duration)
}

// New creates a client for the server described by opts. restart may be
// nil, in which case network failures are retried without a restart
// attempt.
func New(log *slog.Logger, opts *config.Options, restart Restarter) *Client {
	return &Client{
		log:     log.With("component", "opencode_client"),
		opts:    opts,
		base:    opts.BaseURL(),
		restart: restart,
		httpc:   &http.Client{Timeout: opts.ConnectTimeout},
		streamc: &http.Client{Timeout: opts.StreamTimeout},
		sleep:   time.Sleep,
	}
}

// createSession asks the server for a fresh session. Returns the session
// id and the raw session record; the record is echoed later in the
// stream's completion event.
func (c *Client) createSession(ctx context.Context, prompt string) (string, json.RawMessage, error) {
	body, status, err := c.post(ctx, c.base+"/session", map[string]string{
		"title": sessionTitle(prompt),
	})
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	if status != http.StatusOK {
		return "", nil, &errors.SessionCreateError{Status: status}
	}

	var session struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(body, &session); err != nil || session.ID == "" {
		return "", nil, errors.ErrNoSessionID
	}

	c.log.Debug("Created session", "session_id", session.ID)

	return session.ID, body, nil
}

// postMessage posts the message payload to a session. Network failures
// are returned as errors; HTTP-level rejections are returned through the
// status code so callers can apply their own retry policy.
func (c *Client) postMessage(
	ctx context.Context,
	sessionID string,
	payload MessagePayload,
) (json.RawMessage, int, error) {
	body, status, err := c.post(ctx, c.base+"/session/"+sessionID+"/message", payload)
	if err != nil {
		return nil, 0, fmt.Errorf("post message: %w", err)
	}

	return body, status, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) (json.RawMessage, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return body, resp.StatusCode, nil
}
