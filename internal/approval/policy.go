// Package approval implements the policy evaluation, session memo, and
// operator-callback suspension described for the approval pipeline: for
// every ToolCall the policy is asked for an ApprovalRequirement, which is
// Approved, Forbidden, or NeedsApproval, before the scheduler is allowed to
// dispatch the call.
//
// Grounded on internal/agent/approval.go's layered ApprovalChecker.Check and
// internal/infra/exec_approvals.go's ApprovalManager.Request suspension
// pattern.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/joweeba/dTOOL/internal/safety"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// staticRequirement is the non-shell tool-name verdict table:
// read_file is always Approved; write-capable tools need approval outside
// DangerFullAccess.
var staticApproved = map[string]bool{
	"read_file":      true,
	"list_dir":       true,
	"list_directory": true,
	"search_files":   true,
}

var staticNeedsApproval = map[string]string{
	"write_file":  "write_file can modify files in the workspace",
	"apply_patch": "apply_patch can modify files in the workspace",
}

// Policy is per-agent configuration layered on top of the static tool-name
// table and the shell command analyzer: an explicit denylist dominates an
// explicit allowlist, which dominates the static table.
type Policy struct {
	// Allowlist holds tool-name patterns (exact, "prefix*", or "*suffix")
	// that are always Approved regardless of the static table.
	Allowlist []string
	// Denylist holds tool-name patterns that are always Forbidden.
	Denylist []string
	// PromptForEverything puts the shell tool in "Always-prompt" mode: a
	// Safe-classified command still needs approval unless it is also on
	// safety's whitelist. Off by default, where any Safe command is
	// Approved regardless of whitelist membership.
	PromptForEverything bool
}

// Checker evaluates ApprovalRequirements for ToolCalls, implementing
// toolcore.ExecPolicy. It is safe for concurrent use.
type Checker struct {
	mu            sync.RWMutex
	agentPolicies map[string]*Policy
	defaultPolicy Policy
}

// NewChecker builds a Checker with an empty default policy.
func NewChecker() *Checker {
	return &Checker{agentPolicies: make(map[string]*Policy)}
}

// SetAgentPolicy installs a policy override for a specific agent ID.
func (c *Checker) SetAgentPolicy(agentID string, p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := p
	c.agentPolicies[agentID] = &cp
}

// SetDefaultPolicy replaces the policy applied to agents with no override.
func (c *Checker) SetDefaultPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultPolicy = p
}

func (c *Checker) policyFor(agentID string) Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.agentPolicies[agentID]; ok {
		return *p
	}
	return c.defaultPolicy
}

// Evaluate implements toolcore.ExecPolicy. DangerFullAccess bypasses every
// write-capable restriction but never the denylist or a Reject-level shell
// command: a forbidden command is forbidden in every mode.
func (c *Checker) Evaluate(ctx context.Context, call toolcore.ToolCall, mode toolcore.SandboxMode) toolcore.ApprovalRequirement {
	return c.evaluateFor("", call, mode)
}

// EvaluateFor is Evaluate scoped to a specific agent's policy overrides.
func (c *Checker) EvaluateFor(ctx context.Context, agentID string, call toolcore.ToolCall, mode toolcore.SandboxMode) toolcore.ApprovalRequirement {
	return c.evaluateFor(agentID, call, mode)
}

func (c *Checker) evaluateFor(agentID string, call toolcore.ToolCall, mode toolcore.SandboxMode) toolcore.ApprovalRequirement {
	policy := c.policyFor(agentID)

	if matchesAny(policy.Denylist, call.Tool) {
		return toolcore.Forbidden(fmt.Sprintf("tool %q is denied by policy", call.Tool))
	}
	if matchesAny(policy.Allowlist, call.Tool) {
		return toolcore.Approved()
	}

	if call.Tool == "shell" {
		return c.evaluateShell(call, mode, policy)
	}

	if staticApproved[call.Tool] {
		return toolcore.Approved()
	}
	if reason, ok := staticNeedsApproval[call.Tool]; ok {
		if mode == toolcore.SandboxDangerFullAccess {
			return toolcore.Approved()
		}
		return toolcore.NeedsApproval(reason)
	}

	// Unknown tools default to needing approval rather than silently running.
	return toolcore.NeedsApproval(fmt.Sprintf("tool %q has no static policy entry", call.Tool))
}

func (c *Checker) evaluateShell(call toolcore.ToolCall, mode toolcore.SandboxMode, policy Policy) toolcore.ApprovalRequirement {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(call.Args, &input); err != nil || strings.TrimSpace(input.Command) == "" {
		return toolcore.NeedsApproval("unable to parse shell command for safety analysis")
	}

	check := safety.Analyze(input.Command)
	switch check.Kind {
	case toolcore.SafetyReject:
		return toolcore.Forbidden(check.Reason)
	case toolcore.SafetyRequiresApproval:
		return toolcore.NeedsApproval(check.Reason)
	default:
		// Safe alone does not mean whitelisted: under PromptForEverything,
		// only a whitelisted command bypasses approval; every other Safe
		// command still needs one.
		if policy.PromptForEverything && !safety.IsWhitelisted(input.Command) {
			return toolcore.NeedsApproval("policy requires approval for every command not on the whitelist")
		}
		return toolcore.Approved()
	}
}

func matchesAny(patterns []string, tool string) bool {
	for _, p := range patterns {
		if matchesPattern(p, tool) {
			return true
		}
	}
	return false
}

// matchesPattern implements exact / "prefix*" / "*suffix" tool-name pattern
// matching, without a colon-qualified "mcp:" form since the remote client
// qualifies tools as "mcp__<server>__<tool>" instead.
func matchesPattern(pattern, tool string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if pattern == tool {
		return true
	}
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(tool, strings.TrimSuffix(pattern, "*")) {
		return true
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(tool, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	return false
}
