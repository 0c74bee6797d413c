package errors

import (
	"errors"
	"fmt"
	"time"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*BinaryNotFoundError)(nil)
	_ BridgeError = (*StartupTimeoutError)(nil)
	_ BridgeError = (*SessionCreateError)(nil)
	_ BridgeError = (*MessagePostError)(nil)
	_ BridgeError = (*StreamError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrMalformedFrame indicates a stdio frame could not be decoded.
	// The dispatch loop treats this the same as end of input.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrEmptyPrompt indicates a request arrived without a prompt.
	ErrEmptyPrompt = errors.New("no prompt provided")

	// ErrNoSessionID indicates a session-create response carried no id.
	ErrNoSessionID = errors.New("no session ID in response")

	// ErrServerUnavailable indicates the server answered 503 and the
	// request may be retried.
	ErrServerUnavailable = errors.New("server unavailable")
)

// BinaryNotFoundError indicates the opencode binary was not found.
type BinaryNotFoundError struct {
	SearchedPaths []string
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("opencode binary not found in: %v", e.SearchedPaths)
}

// IsBridgeError implements BridgeError.
func (e *BinaryNotFoundError) IsBridgeError() bool { return true }

// StartupTimeoutError indicates the server process was spawned but never
// answered the liveness probe within the startup timeout. The supervisor
// has already stopped the process when this error is returned.
type StartupTimeoutError struct {
	Timeout time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("opencode server not responsive after %s", e.Timeout)
}

// IsBridgeError implements BridgeError.
func (e *StartupTimeoutError) IsBridgeError() bool { return true }

// SessionCreateError indicates the session-create call failed.
type SessionCreateError struct {
	Status int
	Err    error
}

func (e *SessionCreateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to create session: %v", e.Err)
	}

	return fmt.Sprintf("failed to create session: %d", e.Status)
}

func (e *SessionCreateError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *SessionCreateError) IsBridgeError() bool { return true }

// MessagePostError indicates the message-post call was rejected with a
// non-retryable HTTP status. Body holds a truncated response excerpt.
type MessagePostError struct {
	Status int
	Body   string
}

func (e *MessagePostError) Error() string {
	return fmt.Sprintf("opencode server error: %d", e.Status)
}

// IsBridgeError implements BridgeError.
func (e *MessagePostError) IsBridgeError() bool { return true }

// StreamError indicates a transport-level failure while consuming the
// event stream. Streaming is never retried: partial output has already
// been forwarded and replaying it would duplicate output.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("streaming error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *StreamError) IsBridgeError() bool { return true }
