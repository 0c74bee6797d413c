package framing

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/webagency/opencode-bridge/internal/errors"
)

// MaxFrameSize caps the declared length of a single frame. A prefix above
// this limit is treated as garbage rather than an allocation request.
const MaxFrameSize = 16 * 1024 * 1024 // 16MB

// Reader decodes length-prefixed JSON frames from a byte stream.
//
// The wire format is the browser native messaging protocol: a 4-byte
// unsigned little-endian length followed by a UTF-8 JSON body of exactly
// that many bytes. A single Reader owns its underlying stream; it is not
// safe for concurrent use.
type Reader struct {
	log *slog.Logger
	r   *bufio.Reader
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader, log *slog.Logger) *Reader {
	return &Reader{
		log: log.With("component", "framing"),
		r:   bufio.NewReader(r),
	}
}

// Read blocks until a complete frame is available and returns its body.
//
// A cleanly closed stream returns io.EOF. Anything else that prevents a
// frame from being decoded (truncated prefix, zero or oversized length,
// truncated body, invalid JSON) returns an error wrapping
// errors.ErrMalformedFrame; callers decide whether to terminate.
func (r *Reader) Read() (json.RawMessage, error) {
	var prefix [4]byte

	n, err := io.ReadFull(r.r, prefix[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			r.log.Debug("Input stream closed")

			return nil, io.EOF
		}

		return nil, fmt.Errorf("%w: truncated length prefix: %v", errors.ErrMalformedFrame, err)
	}

	length := binary.LittleEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, fmt.Errorf("%w: zero-length frame", errors.ErrMalformedFrame)
	}

	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds limit", errors.ErrMalformedFrame, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, fmt.Errorf("%w: truncated body: %v", errors.ErrMalformedFrame, err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", errors.ErrMalformedFrame)
	}

	r.log.Debug("Read frame", "length", length)

	return json.RawMessage(body), nil
}

// Writer encodes values as length-prefixed JSON frames.
//
// Writes are serialized by an internal mutex so event frames from the
// streaming path never interleave with response frames, and each frame is
// flushed before Write returns.
type Writer struct {
	log *slog.Logger
	mu  sync.Mutex
	w   *bufio.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer, log *slog.Logger) *Writer {
	return &Writer{
		log: log.With("component", "framing"),
		w:   bufio.NewWriter(w),
	}
}

// Write serializes v to JSON and writes it as a single frame.
func (w *Writer) Write(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	if len(body) > MaxFrameSize {
		return fmt.Errorf("encode frame: body of %d bytes exceeds limit", len(body))
	}

	var prefix [4]byte

	binary.LittleEndian.PutUint32(prefix[:], uint32(len(body)))

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}

	if _, err := w.w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}

	w.log.Debug("Wrote frame", "length", len(body))

	return nil
}
