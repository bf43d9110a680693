package agent

import (
	"encoding/json"
	"time"
)

// EventType tags an Event on the wire and internally.
type EventType string

const (
	EventStart     EventType = "start"
	EventTTFT      EventType = "ttft"
	EventToken     EventType = "token"
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventDone      EventType = "done"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat"
)

// Event is the only type that crosses the adapter boundary. Vendor SDK
// event shapes never leave their adapter; the orchestrator and the SSE
// layer see this union alone.
//
// Per model the sequence is strictly ordered: start first, at most one
// ttft (before any non-empty token), tool_start/tool_end pairs, then
// exactly one of done or error. Heartbeats carry no model id.
type Event struct {
	Type    EventType
	ModelID string

	// Timestamp is the emission time for start, tool_start and heartbeat.
	Timestamp time.Time

	// TTFT is the start-to-first-token latency for ttft events.
	TTFT time.Duration

	// Content is the incremental text for token events.
	Content string

	// ToolName names the tool for tool_start and tool_end.
	ToolName string

	// ToolDuration is the invocation wall time for tool_end.
	ToolDuration time.Duration

	// Total is the whole-stream wall time for done.
	Total time.Duration

	// TokensIn and TokensOut are vendor-reported usage for done. Zero when
	// the vendor did not report usage.
	TokensIn  int64
	TokensOut int64

	// Message is the human-readable error text for error events.
	Message string

	// RetryAfter, when positive on an error event, signals the failure is
	// retriable after that delay. Zero means terminal.
	RetryAfter time.Duration

	// ToolUse and ToolResult carry the blocks behind tool_start and
	// tool_end so the committed assistant turn can be rebuilt from the
	// event stream. They never reach the wire.
	ToolUse    *ToolUseBlock
	ToolResult *ToolResultBlock
}

// Terminal reports whether the event ends its model's stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Retriable reports whether an error event advertises a retry window.
func (e Event) Retriable() bool {
	return e.Type == EventError && e.RetryAfter > 0
}

func NewStartEvent(modelID string, t time.Time) Event {
	return Event{Type: EventStart, ModelID: modelID, Timestamp: t}
}

func NewTTFTEvent(modelID string, ttft time.Duration) Event {
	return Event{Type: EventTTFT, ModelID: modelID, TTFT: ttft}
}

func NewTokenEvent(modelID, content string) Event {
	return Event{Type: EventToken, ModelID: modelID, Content: content}
}

func NewToolStartEvent(modelID, tool string, t time.Time) Event {
	return Event{Type: EventToolStart, ModelID: modelID, ToolName: tool, Timestamp: t}
}

func NewToolEndEvent(modelID, tool string, d time.Duration) Event {
	return Event{Type: EventToolEnd, ModelID: modelID, ToolName: tool, ToolDuration: d}
}

func NewDoneEvent(modelID string, total time.Duration, tokensIn, tokensOut int64) Event {
	return Event{Type: EventDone, ModelID: modelID, Total: total, TokensIn: tokensIn, TokensOut: tokensOut}
}

func NewErrorEvent(modelID, message string) Event {
	return Event{Type: EventError, ModelID: modelID, Message: message}
}

func NewRetriableErrorEvent(modelID, message string, retryAfter time.Duration) Event {
	return Event{Type: EventError, ModelID: modelID, Message: message, RetryAfter: retryAfter}
}

func NewHeartbeatEvent(t time.Time) Event {
	return Event{Type: EventHeartbeat, Timestamp: t}
}

// Wire payload shapes. Field sets per type are part of the external
// protocol; millisecond fields are integers, timestamps are Unix seconds.

type startPayload struct {
	ModelID   string  `json:"model_id"`
	Timestamp float64 `json:"timestamp"`
}

type ttftPayload struct {
	ModelID string `json:"model_id"`
	TTFTMs  int64  `json:"ttft_ms"`
}

type tokenPayload struct {
	ModelID string `json:"model_id"`
	Content string `json:"content"`
}

type toolStartPayload struct {
	ModelID   string  `json:"model_id"`
	ToolName  string  `json:"tool_name"`
	Timestamp float64 `json:"timestamp"`
}

type toolEndPayload struct {
	ModelID    string `json:"model_id"`
	ToolName   string `json:"tool_name"`
	DurationMs int64  `json:"duration_ms"`
}

type donePayload struct {
	ModelID   string `json:"model_id"`
	TotalMs   int64  `json:"total_ms"`
	TokensIn  int64  `json:"tokens_in"`
	TokensOut int64  `json:"tokens_out"`
}

type errorPayload struct {
	ModelID      string `json:"model_id"`
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

type heartbeatPayload struct {
	Timestamp float64 `json:"timestamp"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// WireData serializes the event's JSON payload for its SSE frame.
func (e Event) WireData() ([]byte, error) {
	switch e.Type {
	case EventStart:
		return json.Marshal(startPayload{ModelID: e.ModelID, Timestamp: unixSeconds(e.Timestamp)})
	case EventTTFT:
		return json.Marshal(ttftPayload{ModelID: e.ModelID, TTFTMs: e.TTFT.Milliseconds()})
	case EventToken:
		return json.Marshal(tokenPayload{ModelID: e.ModelID, Content: e.Content})
	case EventToolStart:
		return json.Marshal(toolStartPayload{ModelID: e.ModelID, ToolName: e.ToolName, Timestamp: unixSeconds(e.Timestamp)})
	case EventToolEnd:
		return json.Marshal(toolEndPayload{ModelID: e.ModelID, ToolName: e.ToolName, DurationMs: e.ToolDuration.Milliseconds()})
	case EventDone:
		return json.Marshal(donePayload{ModelID: e.ModelID, TotalMs: e.Total.Milliseconds(), TokensIn: e.TokensIn, TokensOut: e.TokensOut})
	case EventError:
		return json.Marshal(errorPayload{ModelID: e.ModelID, Error: e.Message, RetryAfterMs: e.RetryAfter.Milliseconds()})
	case EventHeartbeat:
		return json.Marshal(heartbeatPayload{Timestamp: unixSeconds(e.Timestamp)})
	}
	return json.Marshal(struct{}{})
}
