package toolcore

import "encoding/json"

// EventKind enumerates the ExecutionEvent variants from the data model.
type EventKind string

const (
	EventToolExecutionStart    EventKind = "tool_execution_start"
	EventToolExecutionComplete EventKind = "tool_execution_complete"
	EventApprovalRequired      EventKind = "approval_required"
	EventToolCallApproved      EventKind = "tool_call_approved"
	EventToolCallRejected      EventKind = "tool_call_rejected"
)

// ExecutionEvent is the tagged record emitted fire-and-forget to the stream
// callback. Only the fields relevant to Kind are populated; the zero value of
// an irrelevant field is left unset rather than modeled as separate structs.
type ExecutionEvent struct {
	Kind       EventKind       `json:"kind"`
	SessionID  string          `json:"session_id"`
	ToolCallID string          `json:"tool_call_id"`
	Tool       string          `json:"tool"`
	RequestID  string          `json:"request_id,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Success    bool            `json:"success,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	OutputPreview string       `json:"output_preview,omitempty"`
}

// StreamCallback receives ExecutionEvents. Implementations must return
// promptly; the core never awaits or retries delivery.
type StreamCallback interface {
	Emit(ev ExecutionEvent)
}

// StreamCallbackFunc adapts a function to StreamCallback.
type StreamCallbackFunc func(ev ExecutionEvent)

func (f StreamCallbackFunc) Emit(ev ExecutionEvent) { f(ev) }

// emitAsync dispatches ev to sink from a fresh goroutine so the caller never
// blocks on delivery, keeping emission fire-and-forget rather than a
// blocking channel send.
func emitAsync(sink StreamCallback, ev ExecutionEvent) {
	if sink == nil {
		return
	}
	go sink.Emit(ev)
}

// Emit is the package-level entry point tool-execution components use to
// fire an event without awaiting delivery.
func Emit(sink StreamCallback, ev ExecutionEvent) {
	emitAsync(sink, ev)
}
