package toolcore

import "context"

// ExecPolicy computes the ApprovalRequirement for a ToolCall. It is read-only
// after construction and safe for concurrent use by many callers.
type ExecPolicy interface {
	Evaluate(ctx context.Context, call ToolCall, mode SandboxMode) ApprovalRequirement
}

// ApprovalCallback is the operator-facing interface queried when the policy
// requires human confirmation. It owns the session memo itself (not the
// agent state) so memoized decisions survive across turns.
type ApprovalCallback interface {
	// RequestApproval blocks until the operator decides or ctx is canceled.
	// A canceled context is treated as DecisionDeny by the caller.
	RequestApproval(ctx context.Context, requestID string, call ToolCall, reason string) (ApprovalDecision, error)
	// IsSessionApproved reports a memoized decision for a tool name, if any.
	IsSessionApproved(sessionID, tool string) (decision ApprovalDecision, ok bool)
	// MarkSessionApproved records a *Remember decision for a tool name.
	MarkSessionApproved(sessionID, tool string, decision ApprovalDecision)
}

// RemoteClient is the shared handle to the remote-tool subsystem. It
// is optional on AgentState; a nil RemoteClient means qualified tool names
// resolve to a deterministic error instead of a panic.
type RemoteClient interface {
	CallTool(ctx context.Context, server, tool string, args []byte) (output string, success bool, err error)
}

// AgentState is threaded through turns. The scheduler takes
// PendingToolCalls, leaving it empty, and appends to ToolResults.
type AgentState struct {
	SessionID            string
	TurnCount            int
	PendingToolCalls      []ToolCall
	ToolResults           []ToolResult
	ExecPolicy            ExecPolicy
	ApprovalCallback      ApprovalCallback
	StreamCallback        StreamCallback
	WorkingDirectory      string
	SandboxMode           SandboxMode
	SandboxWritableRoots  []string
	MCPClient             RemoteClient
}
