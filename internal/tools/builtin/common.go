package builtin

import (
	"fmt"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// errorResult builds a failed ToolResult for an argument or filesystem
// error, before any subprocess has run (DurationMs left at zero).
func errorResult(ec toolcore.ExecContext, tool string, err error) *toolcore.ToolResult {
	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       tool,
		Output:     fmt.Sprintf("%s: %v", tool, err),
		Success:    false,
	}
}

// readOnlyRejection is the fixed message write-capable tools return when
// the sandbox mode is ReadOnly. This is a ModeViolation, distinct from the
// approval pipeline's "Tool call forbidden:"-prefixed PolicyForbidden
// rejections, so it carries its own prefix.
func readOnlyRejection(ec toolcore.ExecContext, tool string) *toolcore.ToolResult {
	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       tool,
		Output:     "Mode violation: write attempted under read-only sandbox mode",
		Success:    false,
	}
}
