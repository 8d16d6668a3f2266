package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joweeba/dTOOL/internal/patch"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

const applyPatchSchema = `{
	"type": "object",
	"properties": {
		"patch": {"type": "string", "description": "A unified diff or a *** Begin Patch custom-hunk payload."}
	},
	"required": ["patch"]
}`

// ApplyPatchTool classifies and applies a patch payload, gated by sandbox
// mode exactly like write_file.
type ApplyPatchTool struct {
	workspaceRoot string
}

// NewApplyPatchTool builds an apply_patch tool scoped to workspaceRoot.
func NewApplyPatchTool(workspaceRoot string) *ApplyPatchTool {
	return &ApplyPatchTool{workspaceRoot: workspaceRoot}
}

func (t *ApplyPatchTool) Name() string        { return "apply_patch" }
func (t *ApplyPatchTool) Description() string { return "Apply a patch (unified diff or custom hunk format) to workspace files." }
func (t *ApplyPatchTool) Schema() json.RawMessage { return json.RawMessage(applyPatchSchema) }

func (t *ApplyPatchTool) Execute(ctx context.Context, ec toolcore.ExecContext, args json.RawMessage) (*toolcore.ToolResult, error) {
	if ec.SandboxMode == toolcore.SandboxReadOnly {
		return readOnlyRejection(ec, "apply_patch"), nil
	}
	if err := validateArgs(applyPatchSchema, args); err != nil {
		return errorResult(ec, "apply_patch", err), nil
	}
	var input struct {
		Patch string `json:"patch"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult(ec, "apply_patch", fmt.Errorf("decode arguments: %w", err)), nil
	}

	result := patch.Apply(input.Patch, t.workspaceRoot)

	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       "apply_patch",
		Output:     result.Output,
		Success:    result.Success,
	}, nil
}
