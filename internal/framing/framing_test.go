package framing

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webagency/opencode-bridge/internal/errors"
)

// TestRoundTrip tests that a written frame reads back byte-identical.
func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf, slog.Default())
	r := NewReader(&buf, slog.Default())

	original := json.RawMessage(`{"prompt":"hi","stream":false}`)

	err := w.Write(original)
	require.NoError(t, err)

	got, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, original, got)
}

// TestWriter_LittleEndianPrefix tests the exact wire layout of a frame.
func TestWriter_LittleEndianPrefix(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf, slog.Default())

	err := w.Write(map[string]bool{"ok": true})
	require.NoError(t, err)

	raw := buf.Bytes()
	require.Greater(t, len(raw), 4)

	length := binary.LittleEndian.Uint32(raw[:4])
	require.Equal(t, int(length), len(raw)-4)
	require.JSONEq(t, `{"ok":true}`, string(raw[4:]))
}

// TestReader_EOF tests that a cleanly closed stream returns io.EOF, not a
// malformed-frame error.
func TestReader_EOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), slog.Default())

	_, err := r.Read()
	require.ErrorIs(t, err, io.EOF)
}

// TestReader_TruncatedPrefix tests that a partial length prefix yields a
// malformed-frame error instead of a crash.
func TestReader_TruncatedPrefix(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}), slog.Default())

	_, err := r.Read()
	require.ErrorIs(t, err, errors.ErrMalformedFrame)
}

// TestReader_TruncatedBody tests that a body shorter than the declared
// length yields a malformed-frame error.
func TestReader_TruncatedBody(t *testing.T) {
	var buf bytes.Buffer

	var prefix [4]byte

	binary.LittleEndian.PutUint32(prefix[:], 10)
	buf.Write(prefix[:])
	buf.WriteString(`{"a"`)

	r := NewReader(&buf, slog.Default())

	_, err := r.Read()
	require.ErrorIs(t, err, errors.ErrMalformedFrame)
}

// TestReader_ZeroLength tests that a zero-length frame is rejected.
func TestReader_ZeroLength(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0, 0, 0}), slog.Default())

	_, err := r.Read()
	require.ErrorIs(t, err, errors.ErrMalformedFrame)
}

// TestReader_OversizedLength tests that an absurd length prefix is
// rejected before any allocation of that size.
func TestReader_OversizedLength(t *testing.T) {
	var prefix [4]byte

	binary.LittleEndian.PutUint32(prefix[:], MaxFrameSize+1)

	r := NewReader(bytes.NewReader(prefix[:]), slog.Default())

	_, err := r.Read()
	require.ErrorIs(t, err, errors.ErrMalformedFrame)
}

// TestReader_InvalidJSON tests that a frame with a non-JSON body is
// rejected as malformed.
func TestReader_InvalidJSON(t *testing.T) {
	var buf bytes.Buffer

	body := []byte("not json!")

	var prefix [4]byte

	binary.LittleEndian.PutUint32(prefix[:], uint32(len(body)))
	buf.Write(prefix[:])
	buf.Write(body)

	r := NewReader(&buf, slog.Default())

	_, err := r.Read()
	require.ErrorIs(t, err, errors.ErrMalformedFrame)
}

// TestRoundTrip_Multiple tests that several frames on one stream read
// back in order.
func TestRoundTrip_Multiple(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf, slog.Default())
	r := NewReader(&buf, slog.Default())

	frames := []json.RawMessage{
		json.RawMessage(`{"n":1}`),
		json.RawMessage(`{"n":2}`),
		json.RawMessage(`{"n":3}`),
	}

	for _, f := range frames {
		require.NoError(t, w.Write(f))
	}

	for _, want := range frames {
		got, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := r.Read()
	require.ErrorIs(t, err, io.EOF)
}
