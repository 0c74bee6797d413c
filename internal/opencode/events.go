package opencode

import "encoding/json"

// Event type tags emitted by the streaming translator.
const (
	EventStreamStarted = "stream_started"
	EventPartialText   = "partial_text"
	EventToolExecuting = "tool_executing"
	EventToolResult    = "tool_result"
	EventComplete      = "complete"
	EventError         = "error"
)

// Event is one normalized output event produced by the streaming
// translator. Implementations: StreamStarted, PartialText, ToolExecuting,
// ToolResult, Complete, ErrorEvent.
type Event interface {
	isEvent()
}

// Compile-time verification that all event types implement Event.
var (
	_ Event = StreamStarted{}
	_ Event = PartialText{}
	_ Event = ToolExecuting{}
	_ Event = ToolResult{}
	_ Event = Complete{}
	_ Event = ErrorEvent{}
)

// StreamStarted acknowledges that the session is set up and events will
// follow.
type StreamStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func (StreamStarted) isEvent() {}

func newStreamStarted(sessionID string) StreamStarted {
	return StreamStarted{Type: EventStreamStarted, SessionID: sessionID}
}

// PartialText carries one text delta. Text is the running concatenation
// across the whole stream; Chunk is just this delta.
type PartialText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Chunk string `json:"chunk"`
}

func (PartialText) isEvent() {}

func newPartialText(text, chunk string) PartialText {
	return PartialText{Type: EventPartialText, Text: text, Chunk: chunk}
}

// ToolExecuting reports that the server started running a tool.
type ToolExecuting struct {
	Type     string          `json:"type"`
	Tool     string          `json:"tool"`
	Input    json.RawMessage `json:"input,omitempty"`
	Thinking string          `json:"thinking"`
}

func (ToolExecuting) isEvent() {}

func newToolExecuting(tool string, input json.RawMessage) ToolExecuting {
	return ToolExecuting{
		Type:     EventToolExecuting,
		Tool:     tool,
		Input:    input,
		Thinking: "Executing: " + tool,
	}
}

// ToolResult carries the result of the most recently executing tool.
// Tool is "unknown" when no tool execution preceded it.
type ToolResult struct {
	Type   string          `json:"type"`
	Tool   string          `json:"tool"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (ToolResult) isEvent() {}

func newToolResult(tool string, result json.RawMessage) ToolResult {
	return ToolResult{Type: EventToolResult, Tool: tool, Result: result}
}

// Complete is the terminal event of a successful stream. FinalText is the
// full accumulated text; SessionData echoes the session-create response.
type Complete struct {
	Type        string          `json:"type"`
	FinalText   string          `json:"final_text"`
	SessionData json.RawMessage `json:"session_data,omitempty"`
}

func (Complete) isEvent() {}

func newComplete(finalText string, sessionData json.RawMessage) Complete {
	return Complete{Type: EventComplete, FinalText: finalText, SessionData: sessionData}
}

// ErrorEvent is the terminal event of a failed stream.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (ErrorEvent) isEvent() {}

func newErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Type: EventError, Error: err.Error()}
}
