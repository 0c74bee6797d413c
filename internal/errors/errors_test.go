package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBinaryNotFoundError tests the message and marker interface.
func TestBinaryNotFoundError(t *testing.T) {
	err := &BinaryNotFoundError{SearchedPaths: []string{"/usr/bin/opencode"}}

	require.Contains(t, err.Error(), "/usr/bin/opencode")
	require.True(t, err.IsBridgeError())
}

// TestStartupTimeoutError tests that the timeout appears in the message.
func TestStartupTimeoutError(t *testing.T) {
	err := &StartupTimeoutError{Timeout: 60 * time.Second}

	require.Contains(t, err.Error(), "1m0s")
}

// TestSessionCreateError tests both the status-coded and wrapped forms.
func TestSessionCreateError(t *testing.T) {
	statusErr := &SessionCreateError{Status: 503}
	require.Equal(t, "failed to create session: 503", statusErr.Error())
	require.NoError(t, statusErr.Unwrap())

	cause := stderrors.New("connection refused")
	wrapped := &SessionCreateError{Err: cause}
	require.Contains(t, wrapped.Error(), "connection refused")
	require.ErrorIs(t, wrapped, cause)
}

// TestMessagePostError tests that the message carries the status but not
// the body excerpt.
func TestMessagePostError(t *testing.T) {
	err := &MessagePostError{Status: 500, Body: "internal details"}

	require.Equal(t, "opencode server error: 500", err.Error())
	require.NotContains(t, err.Error(), "internal details")
}

// TestStreamError_Unwrap tests that the transport cause stays reachable
// through the chain.
func TestStreamError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("attempt 1: %w", &StreamError{Err: cause})

	require.ErrorIs(t, err, cause)

	var streamErr *StreamError

	require.ErrorAs(t, err, &streamErr)
}
