package bridge

import "github.com/webagency/opencode-bridge/internal/errors"

// Re-export error types from internal package

// BinaryNotFoundError indicates the opencode binary was not found.
type BinaryNotFoundError = errors.BinaryNotFoundError

// StartupTimeoutError indicates the server never became responsive.
type StartupTimeoutError = errors.StartupTimeoutError

// SessionCreateError indicates the session-create call failed.
type SessionCreateError = errors.SessionCreateError

// MessagePostError indicates the message post was rejected with a
// non-retryable status.
type MessagePostError = errors.MessagePostError

// StreamError indicates a transport-level failure during streaming.
type StreamError = errors.StreamError

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrMalformedFrame indicates a stdio frame could not be decoded.
	ErrMalformedFrame = errors.ErrMalformedFrame

	// ErrEmptyPrompt indicates a request arrived without a prompt.
	ErrEmptyPrompt = errors.ErrEmptyPrompt

	// ErrNoSessionID indicates a session-create response carried no id.
	ErrNoSessionID = errors.ErrNoSessionID

	// ErrServerUnavailable indicates the server answered 503.
	ErrServerUnavailable = errors.ErrServerUnavailable
)
