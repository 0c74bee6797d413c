package opencode

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/webagency/opencode-bridge/internal/errors"
)

const (
	// ssePrefix marks event payload lines in the server's event stream.
	ssePrefix = "data: "

	// maxSSELineSize caps a single event-stream line.
	maxSSELineSize = 1024 * 1024 // 1MB

	// streamBufferSize is the event channel buffer. The dispatch loop is
	// the only consumer; a small buffer lets translation run ahead of
	// frame writes without unbounded growth.
	streamBufferSize = 16
)

// Stream drives the streaming exchange and returns the resulting event
// channel. The sequence is finite: it ends with a Complete or ErrorEvent,
// after which the channel is closed. Each call opens a fresh session and
// connection; streams are not restartable, and failures are surfaced
// rather than retried because partial output has already been forwarded.
//
// Cancelling ctx abandons the stream; the channel is closed without a
// terminal event.
func (c *Client) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, streamBufferSize)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		c.translate(ctx, req, events)

		return nil
	})

	go func() {
		_ = eg.Wait()
		close(events)
	}()

	return events
}

// translate performs the session setup, attaches to the event stream, and
// re-emits normalized events until a terminal condition.
func (c *Client) translate(ctx context.Context, req Request, events chan<- Event) {
	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Session setup mirrors Forward but without the retry loop: a failure
	// here yields a single error event and ends the sequence.
	sessionID, sessionData, err := c.createSession(ctx, req.Prompt)
	if err != nil {
		emit(newErrorEvent(err))

		return
	}

	_, status, err := c.postMessage(ctx, sessionID, buildPayload(req))
	if err != nil {
		emit(newErrorEvent(err))

		return
	}

	if status != http.StatusOK {
		emit(newErrorEvent(fmt.Errorf("failed to send message: %d", status)))

		return
	}

	if !emit(newStreamStarted(sessionID)) {
		return
	}

	eventURL := c.base + "/event?sessionId=" + url.QueryEscape(sessionID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, eventURL, nil)
	if err != nil {
		emit(newErrorEvent(&errors.StreamError{Err: err}))

		return
	}

	resp, err := c.streamc.Do(httpReq)
	if err != nil {
		emit(newErrorEvent(&errors.StreamError{Err: err}))

		return
	}

	defer resp.Body.Close()

	c.log.Debug("Attached to event stream", "session_id", sessionID)

	tr := &translator{sessionData: sessionData}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, maxSSELineSize), maxSSELineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}

		ev, terminal := tr.translate(line[len(ssePrefix):])
		if ev == nil {
			continue
		}

		if !emit(ev) {
			return
		}

		if terminal {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.log.Warn("Event stream read failed", "session_id", sessionID, "error", err)
		emit(newErrorEvent(&errors.StreamError{Err: err}))

		return
	}

	// Stream closed without a completed status: emit the same terminal
	// shape as a normal completion.
	emit(newComplete(tr.text.String(), tr.sessionData))
}

// rawEvent is the wire shape of one server-sent event payload.
type rawEvent struct {
	Type       string `json:"type"`
	Properties struct {
		Part struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"part"`
		Name   string          `json:"name"`
		Input  json.RawMessage `json:"input"`
		Result json.RawMessage `json:"result"`
		Info   struct {
			Status string `json:"status"`
		} `json:"info"`
	} `json:"properties"`
}

// translator holds the per-stream accumulation state: the running text
// concatenation and the ordered list of executing tools used to correlate
// tool results.
type translator struct {
	text        strings.Builder
	tools       []string
	sessionData json.RawMessage
}

// translate maps one raw event payload to an outgoing event. Returns a
// nil event for lines that produce no output (unknown types, non-text
// parts, malformed JSON — skipped without aborting the stream) and
// terminal=true when the stream must end.
func (t *translator) translate(payload string) (Event, bool) {
	var raw rawEvent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, false
	}

	switch raw.Type {
	case "message.part.updated":
		if raw.Properties.Part.Type != "text" {
			return nil, false
		}

		chunk := raw.Properties.Part.Text
		t.text.WriteString(chunk)

		return newPartialText(t.text.String(), chunk), false

	case "tool.execute":
		name := raw.Properties.Name
		t.tools = append(t.tools, name)

		return newToolExecuting(name, raw.Properties.Input), false

	case "tool.result":
		tool := "unknown"
		if len(t.tools) > 0 {
			tool = t.tools[len(t.tools)-1]
		}

		return newToolResult(tool, raw.Properties.Result), false

	case "session.updated":
		if raw.Properties.Info.Status == "completed" {
			return newComplete(t.text.String(), t.sessionData), true
		}

		return nil, false
	}

	return nil, false
}
