package bridge

import (
	"encoding/json"

	"github.com/webagency/opencode-bridge/internal/opencode"
)

// PageContext describes the browser page a request originated from.
type PageContext = opencode.PageContext

// Re-export streaming event types from the internal package.

// Event is one normalized output event produced by a streaming request.
type Event = opencode.Event

// StreamStarted acknowledges that the session is set up.
type StreamStarted = opencode.StreamStarted

// PartialText carries one text delta and the running concatenation.
type PartialText = opencode.PartialText

// ToolExecuting reports that the server started running a tool.
type ToolExecuting = opencode.ToolExecuting

// ToolResult carries the result of the most recent tool execution.
type ToolResult = opencode.ToolResult

// Complete is the terminal event of a successful stream.
type Complete = opencode.Complete

// ErrorEvent is the terminal event of a failed stream.
type ErrorEvent = opencode.ErrorEvent

// Request is one incoming frame from the extension.
//
// RequestID is kept as raw JSON so any scalar the extension sends is
// echoed back unchanged.
type Request struct {
	Prompt    string          `json:"prompt"`
	Context   *PageContext    `json:"context,omitempty"`
	Agent     string          `json:"agent,omitempty"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
	Stream    bool            `json:"stream,omitempty"`
}

// Response is the single reply frame of a non-streaming request.
// Success carries the server's message-creation payload verbatim in Data;
// failure carries a human-readable Error plus optional hints.
type Response struct {
	Success         bool            `json:"success"`
	Data            json.RawMessage `json:"data,omitempty"`
	Error           string          `json:"error,omitempty"`
	Details         string          `json:"details,omitempty"`
	InstallURL      string          `json:"install_url,omitempty"`
	Instructions    string          `json:"instructions,omitempty"`
	Troubleshooting []string        `json:"troubleshooting,omitempty"`
	RequestID       json.RawMessage `json:"requestId,omitempty"`
}

// StreamEventFrame wraps one translated event for the extension.
type StreamEventFrame struct {
	Type      string          `json:"type"`
	Event     Event           `json:"event"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
}

// StreamCompleteFrame closes a streaming exchange after the last event.
type StreamCompleteFrame struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
}

// Frame type tags for the streaming direction.
const (
	FrameStreamEvent    = "stream_event"
	FrameStreamComplete = "stream_complete"
)
