package approval

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// pendingRequest tracks one in-flight approval request awaiting an operator
// decision, using a pending-map/channel shape. It carries no internal
// timer: the pipeline never imposes a timeout itself — the caller wraps
// one with context.WithTimeout if it wants one.
type pendingRequest struct {
	requestID string
	sessionID string
	call      toolcore.ToolCall
	reason    string
	resultCh  chan toolcore.ApprovalDecision
}

// Manager is the operator-facing suspension point: it generates request
// IDs, blocks RequestApproval until Resolve is called (or ctx is canceled),
// and tracks the session memo plus the on-disk remembered-decision store.
// It implements toolcore.ApprovalCallback.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	memo    *sessionMemo
	store   *Store
}

// NewManager builds a Manager backed by store for ApproveAndRemember/
// DenyAndRemember persistence. store may be nil to disable on-disk
// persistence (session memo still applies).
func NewManager(store *Store) *Manager {
	return &Manager{
		pending: make(map[string]*pendingRequest),
		memo:    newSessionMemo(),
		store:   store,
	}
}

// RequestApproval implements toolcore.ApprovalCallback. It registers a
// pending request under a fresh UUID v4 ID and blocks until Resolve is
// called for that ID or ctx is canceled.
func (m *Manager) RequestApproval(ctx context.Context, requestID string, call toolcore.ToolCall, reason string) (toolcore.ApprovalDecision, error) {
	resultCh := make(chan toolcore.ApprovalDecision, 1)
	req := &pendingRequest{requestID: requestID, call: call, reason: reason, resultCh: resultCh}

	m.mu.Lock()
	m.pending[requestID] = req
	m.mu.Unlock()

	select {
	case decision := <-resultCh:
		return decision, nil
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, requestID)
		m.mu.Unlock()
		return toolcore.DecisionDeny, ctx.Err()
	}
}

// Resolve delivers an operator decision for a pending request ID. It
// returns an error if no request is pending under that ID.
func (m *Manager) Resolve(requestID string, decision toolcore.ApprovalDecision) error {
	m.mu.Lock()
	req, ok := m.pending[requestID]
	if !ok {
		m.mu.Unlock()
		return errors.New("approval request not found or already resolved")
	}
	delete(m.pending, requestID)
	m.mu.Unlock()

	select {
	case req.resultCh <- decision:
	default:
	}
	return nil
}

// Pending returns the tool calls awaiting a decision, for surfacing to an
// operator UI.
func (m *Manager) Pending() []toolcore.ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]toolcore.ToolCall, 0, len(m.pending))
	for _, req := range m.pending {
		calls = append(calls, req.call)
	}
	return calls
}

// IsSessionApproved implements toolcore.ApprovalCallback, consulting the
// in-process session memo first and falling back to the on-disk store.
func (m *Manager) IsSessionApproved(sessionID, tool string) (toolcore.ApprovalDecision, bool) {
	if approved, ok := m.memo.get(sessionID, tool); ok {
		if approved {
			return toolcore.DecisionApprove, true
		}
		return toolcore.DecisionDeny, true
	}
	if m.store != nil {
		if approved, ok := m.store.Lookup(sessionID, tool); ok {
			m.memo.set(sessionID, tool, approved)
			if approved {
				return toolcore.DecisionApprove, true
			}
			return toolcore.DecisionDeny, true
		}
	}
	return toolcore.DecisionDeny, false
}

// MarkSessionApproved implements toolcore.ApprovalCallback. Only the
// Remember variants persist to the on-disk store; plain Approve/Deny only
// update the in-process memo for the remainder of this process's lifetime.
func (m *Manager) MarkSessionApproved(sessionID, tool string, decision toolcore.ApprovalDecision) {
	m.memo.set(sessionID, tool, decision.Allows())
	if decision.Remembers() && m.store != nil {
		_ = m.store.Remember(sessionID, tool, "", decision.Allows())
	}
}

// NewRequestID generates a fresh UUID v4 approval request ID.
func NewRequestID() string {
	return uuid.NewString()
}
