package approval

import (
	"context"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// Pipeline runs the full per-call approval algorithm: ask the policy for an
// ApprovalRequirement, and for NeedsApproval consult the session memo before
// suspending on the callback. It never imposes its own timeout; callers
// that want one wrap ctx with context.WithTimeout before calling Evaluate.
type Pipeline struct {
	Policy   toolcore.ExecPolicy
	Callback toolcore.ApprovalCallback
	Sink     toolcore.StreamCallback
}

// NewPipeline wires a Checker and Manager into a Pipeline emitting events to
// sink. sink may be nil.
func NewPipeline(policy *Checker, callback *Manager, sink toolcore.StreamCallback) *Pipeline {
	return &Pipeline{Policy: policy, Callback: callback, Sink: sink}
}

// Evaluate runs the per-call approval algorithm. If it returns proceed=true, the
// caller dispatches the call normally. Otherwise result is the synthesized
// ToolResult the caller should use in place of dispatch.
func (p *Pipeline) Evaluate(ctx context.Context, sessionID string, call toolcore.ToolCall, mode toolcore.SandboxMode) (result *toolcore.ToolResult, proceed bool) {
	req := p.Policy.Evaluate(ctx, call, mode)

	switch req.Kind {
	case toolcore.RequirementApproved:
		p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallApproved, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool})
		return nil, true

	case toolcore.RequirementForbidden:
		p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallRejected, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool, Reason: req.Reason})
		return rejectionResult(call, "Tool call forbidden: "+req.Reason), false

	case toolcore.RequirementNeedsApproval:
		return p.evaluateNeedsApproval(ctx, sessionID, call, req.Reason)
	}

	return rejectionResult(call, "Tool call forbidden: unrecognized approval requirement"), false
}

func (p *Pipeline) evaluateNeedsApproval(ctx context.Context, sessionID string, call toolcore.ToolCall, reason string) (*toolcore.ToolResult, bool) {
	if decision, ok := p.Callback.IsSessionApproved(sessionID, call.Tool); ok {
		if decision.Allows() {
			p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallApproved, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool})
			return nil, true
		}
		p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallRejected, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool, Reason: "remembered denial"})
		return rejectionResult(call, "Tool call rejected: remembered denial"), false
	}

	requestID := NewRequestID()
	p.emit(toolcore.ExecutionEvent{
		Kind: toolcore.EventApprovalRequired, SessionID: sessionID, ToolCallID: call.ID,
		Tool: call.Tool, RequestID: requestID, Args: call.Args, Reason: reason,
	})

	decision, err := p.Callback.RequestApproval(ctx, requestID, call, reason)
	if err != nil {
		p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallRejected, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool, Reason: err.Error()})
		return rejectionResult(call, "Tool call rejected: "+err.Error()), false
	}

	if decision.Remembers() {
		p.Callback.MarkSessionApproved(sessionID, call.Tool, decision)
	}

	if decision.Allows() {
		p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallApproved, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool})
		return nil, true
	}

	p.emit(toolcore.ExecutionEvent{Kind: toolcore.EventToolCallRejected, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool, Reason: "user"})
	return rejectionResult(call, "Tool call rejected: user"), false
}

func (p *Pipeline) emit(ev toolcore.ExecutionEvent) {
	toolcore.Emit(p.Sink, ev)
}

func rejectionResult(call toolcore.ToolCall, output string) *toolcore.ToolResult {
	return &toolcore.ToolResult{
		ToolCallID: call.ID,
		Tool:       call.Tool,
		Output:     output,
		Success:    false,
	}
}
