package approval

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

func shellCall(command string) toolcore.ToolCall {
	args, _ := json.Marshal(map[string]string{"command": command})
	return toolcore.ToolCall{ID: "tc-1", Tool: "shell", Args: args}
}

func TestChecker_ReadFileAlwaysApproved(t *testing.T) {
	c := NewChecker()
	call := toolcore.ToolCall{ID: "tc-1", Tool: "read_file"}
	req := c.Evaluate(context.Background(), call, toolcore.SandboxReadOnly)
	assert.Equal(t, toolcore.RequirementApproved, req.Kind)
}

func TestChecker_WriteFileNeedsApprovalUnlessDangerFullAccess(t *testing.T) {
	c := NewChecker()
	call := toolcore.ToolCall{ID: "tc-1", Tool: "write_file"}

	req := c.Evaluate(context.Background(), call, toolcore.SandboxWorkspaceWrite)
	assert.Equal(t, toolcore.RequirementNeedsApproval, req.Kind)

	req = c.Evaluate(context.Background(), call, toolcore.SandboxDangerFullAccess)
	assert.Equal(t, toolcore.RequirementApproved, req.Kind)
}

func TestChecker_ShellForbiddenCommandIsForbidden(t *testing.T) {
	c := NewChecker()
	req := c.Evaluate(context.Background(), shellCall("rm -rf /"), toolcore.SandboxDangerFullAccess)
	assert.Equal(t, toolcore.RequirementForbidden, req.Kind)
}

func TestChecker_ShellWhitelistedIsApproved(t *testing.T) {
	c := NewChecker()
	req := c.Evaluate(context.Background(), shellCall("ls -la"), toolcore.SandboxWorkspaceWrite)
	assert.Equal(t, toolcore.RequirementApproved, req.Kind)
}

func TestChecker_PromptForEverythingStillApprovesWhitelisted(t *testing.T) {
	c := NewChecker()
	c.SetDefaultPolicy(Policy{PromptForEverything: true})
	req := c.Evaluate(context.Background(), shellCall("ls -la"), toolcore.SandboxWorkspaceWrite)
	assert.Equal(t, toolcore.RequirementApproved, req.Kind)
}

func TestChecker_PromptForEverythingNeedsApprovalForSafeNonWhitelisted(t *testing.T) {
	c := NewChecker()
	c.SetDefaultPolicy(Policy{PromptForEverything: true})
	req := c.Evaluate(context.Background(), shellCall("npm run build"), toolcore.SandboxWorkspaceWrite)
	assert.Equal(t, toolcore.RequirementNeedsApproval, req.Kind)
}

func TestChecker_DenylistDominatesStaticTable(t *testing.T) {
	c := NewChecker()
	c.SetDefaultPolicy(Policy{Denylist: []string{"read_file"}})
	req := c.Evaluate(context.Background(), toolcore.ToolCall{Tool: "read_file"}, toolcore.SandboxReadOnly)
	assert.Equal(t, toolcore.RequirementForbidden, req.Kind)
}

func TestChecker_AllowlistOverridesNeedsApproval(t *testing.T) {
	c := NewChecker()
	c.SetDefaultPolicy(Policy{Allowlist: []string{"write_file"}})
	req := c.Evaluate(context.Background(), toolcore.ToolCall{Tool: "write_file"}, toolcore.SandboxWorkspaceWrite)
	assert.Equal(t, toolcore.RequirementApproved, req.Kind)
}

func TestPipeline_ApprovedProceedsWithoutCallback(t *testing.T) {
	p := NewPipeline(NewChecker(), NewManager(nil), nil)
	result, proceed := p.Evaluate(context.Background(), "sess-1", toolcore.ToolCall{ID: "tc-1", Tool: "read_file"}, toolcore.SandboxReadOnly)
	assert.True(t, proceed)
	assert.Nil(t, result)
}

func TestPipeline_ForbiddenSynthesizesRejectionWithoutDispatch(t *testing.T) {
	p := NewPipeline(NewChecker(), NewManager(nil), nil)
	result, proceed := p.Evaluate(context.Background(), "sess-1", shellCall("rm -rf /"), toolcore.SandboxDangerFullAccess)
	require.False(t, proceed)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "Tool call forbidden:")
}

func TestPipeline_NeedsApprovalWaitsForManagerDecision(t *testing.T) {
	manager := NewManager(nil)
	p := NewPipeline(NewChecker(), manager, nil)
	call := toolcore.ToolCall{ID: "tc-1", Tool: "write_file"}

	type outcome struct {
		result  *toolcore.ToolResult
		proceed bool
	}
	done := make(chan outcome, 1)
	go func() {
		result, proceed := p.Evaluate(context.Background(), "sess-1", call, toolcore.SandboxWorkspaceWrite)
		done <- outcome{result, proceed}
	}()

	require.Eventually(t, func() bool {
		return len(manager.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	pending := manager.Pending()
	require.Len(t, pending, 1)
	require.NoError(t, manager.Resolve(requestIDOf(t, manager), toolcore.DecisionApprove))

	select {
	case o := <-done:
		assert.True(t, o.proceed)
		assert.Nil(t, o.result)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not return after approval")
	}
}

// requestIDOf extracts the single pending request's ID for tests that don't
// otherwise have it in scope.
func requestIDOf(t *testing.T, m *Manager) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.pending {
		return id
	}
	t.Fatal("no pending request")
	return ""
}

func TestPipeline_NeedsApprovalDeniedSynthesizesRejection(t *testing.T) {
	manager := NewManager(nil)
	p := NewPipeline(NewChecker(), manager, nil)
	call := toolcore.ToolCall{ID: "tc-1", Tool: "write_file"}

	type outcome struct {
		result  *toolcore.ToolResult
		proceed bool
	}
	done := make(chan outcome, 1)
	go func() {
		result, proceed := p.Evaluate(context.Background(), "sess-1", call, toolcore.SandboxWorkspaceWrite)
		done <- outcome{result, proceed}
	}()

	require.Eventually(t, func() bool { return len(manager.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, manager.Resolve(requestIDOf(t, manager), toolcore.DecisionDeny))

	select {
	case o := <-done:
		assert.False(t, o.proceed)
		require.NotNil(t, o.result)
		assert.Contains(t, o.result.Output, "Tool call rejected:")
	case <-time.After(time.Second):
		t.Fatal("pipeline did not return after denial")
	}
}

func TestPipeline_ContextCancellationRejects(t *testing.T) {
	manager := NewManager(nil)
	p := NewPipeline(NewChecker(), manager, nil)
	ctx, cancel := context.WithCancel(context.Background())
	call := toolcore.ToolCall{ID: "tc-1", Tool: "write_file"}

	type outcome struct {
		result  *toolcore.ToolResult
		proceed bool
	}
	done := make(chan outcome, 1)
	go func() {
		result, proceed := p.Evaluate(ctx, "sess-1", call, toolcore.SandboxWorkspaceWrite)
		done <- outcome{result, proceed}
	}()

	require.Eventually(t, func() bool { return len(manager.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case o := <-done:
		assert.False(t, o.proceed)
		require.NotNil(t, o.result)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not return after cancellation")
	}
}

func TestManager_ApproveAndRememberPersistsToStore(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "allow.json"))
	manager := NewManager(store)

	manager.MarkSessionApproved("agent-1", "write_file", toolcore.DecisionApproveAndRemember)

	decision, ok := manager.IsSessionApproved("agent-1", "write_file")
	require.True(t, ok)
	assert.True(t, decision.Allows())

	// A fresh manager over the same store should recover the memo from disk.
	fresh := NewManager(store)
	decision, ok = fresh.IsSessionApproved("agent-1", "write_file")
	require.True(t, ok)
	assert.True(t, decision.Allows())
}

func TestManager_PlainApproveDoesNotPersist(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "allow.json"))
	manager := NewManager(store)
	manager.MarkSessionApproved("agent-1", "write_file", toolcore.DecisionApprove)

	fresh := NewManager(store)
	_, ok := fresh.IsSessionApproved("agent-1", "write_file")
	assert.False(t, ok)
}

func TestStore_RememberAndLookupRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.json")
	store := NewStore(path)

	require.NoError(t, store.Remember("agent-1", "shell", "trusted build", true))

	approved, ok := store.Lookup("agent-1", "shell")
	require.True(t, ok)
	assert.True(t, approved)

	_, ok = store.Lookup("agent-1", "apply_patch")
	assert.False(t, ok)
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("shell", "shell"))
	assert.True(t, matchesPattern("mcp__*", "mcp__github__create_issue"))
	assert.True(t, matchesPattern("*_file", "write_file"))
	assert.False(t, matchesPattern("shell", "write_file"))
}
