package opencode

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/webagency/opencode-bridge/internal/errors"
)

// maxBodyExcerpt caps the response excerpt attached to non-retryable
// server errors.
const maxBodyExcerpt = 500

// Forward drives the non-streaming exchange: create a session, post the
// message, return the server's response body verbatim.
//
// The attempt budget is opts.MaxRetries. A 503 from either call is
// retried after the fixed retry delay; other HTTP rejections of the
// message post are non-retryable and surface immediately as
// MessagePostError. Network-level failures trigger a server restart (the
// server may have crashed) before the next attempt. When the budget is
// exhausted, the last recorded error is returned.
func (c *Client) Forward(ctx context.Context, req Request) (json.RawMessage, error) {
	payload := buildPayload(req)

	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sessionID, _, err := c.createSession(ctx, req.Prompt)
		if err != nil {
			lastErr = err
			c.log.Warn("Session create failed", "attempt", attempt, "error", err)

			var createErr *errors.SessionCreateError

			switch {
			case stderrors.As(err, &createErr) && createErr.Status == http.StatusServiceUnavailable:
				c.sleep(c.opts.RetryDelay)
			case stderrors.As(err, &createErr) || stderrors.Is(err, errors.ErrNoSessionID):
				// Status-coded rejection: next attempt without backoff.
			default:
				c.recoverServer(ctx, attempt)
			}

			continue
		}

		body, status, err := c.postMessage(ctx, sessionID, payload)
		if err != nil {
			lastErr = err
			c.log.Warn("Message post failed", "attempt", attempt, "error", err)
			c.recoverServer(ctx, attempt)

			continue
		}

		switch {
		case status == http.StatusOK:
			c.log.Debug("Message accepted", "session_id", sessionID, "attempt", attempt)

			return body, nil

		case status == http.StatusServiceUnavailable:
			lastErr = fmt.Errorf("%w (attempt %d/%d)", errors.ErrServerUnavailable, attempt, c.opts.MaxRetries)
			c.log.Warn("Server unavailable", "attempt", attempt)
			c.sleep(c.opts.RetryDelay)

		default:
			return nil, &errors.MessagePostError{
				Status: status,
				Body:   truncate(string(body), maxBodyExcerpt),
			}
		}
	}

	return nil, lastErr
}

// recoverServer attempts a proactive restart between attempts after a
// network-level failure. Only runs while attempts remain.
func (c *Client) recoverServer(ctx context.Context, attempt int) {
	if attempt >= c.opts.MaxRetries {
		return
	}

	if c.restart != nil {
		if err := c.restart(ctx); err != nil {
			c.log.Warn("Server restart failed", "error", err)
		}
	}

	c.sleep(c.opts.RetryDelay)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}
