package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joweeba/dTOOL/internal/sandbox"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

const shellSchema = `{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "Shell command line to execute."},
		"timeout_seconds": {"type": "integer", "minimum": 1, "description": "Optional override of the default timeout."}
	},
	"required": ["command"]
}`

// ShellTool runs a command through the sandbox executor. The executor
// itself resolves mode (ReadOnly/WorkspaceWrite/DangerFullAccess) and
// capability fallback, so this tool is a thin argument-shape adapter.
type ShellTool struct {
	executor *sandbox.Executor
}

// NewShellTool builds a shell tool bound to executor.
func NewShellTool(executor *sandbox.Executor) *ShellTool {
	return &ShellTool{executor: executor}
}

func (t *ShellTool) Name() string        { return "shell" }
func (t *ShellTool) Description() string { return "Run a shell command in the sandboxed workspace." }
func (t *ShellTool) Schema() json.RawMessage { return json.RawMessage(shellSchema) }

func (t *ShellTool) Execute(ctx context.Context, ec toolcore.ExecContext, args json.RawMessage) (*toolcore.ToolResult, error) {
	if err := validateArgs(shellSchema, args); err != nil {
		return errorResult(ec, "shell", err), nil
	}
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult(ec, "shell", fmt.Errorf("decode arguments: %w", err)), nil
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if input.TimeoutSeconds > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(input.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	started := time.Now()
	output, exitStatus, err := t.executor.Execute(execCtx, input.Command)
	duration := time.Since(started)

	if err != nil {
		return &toolcore.ToolResult{
			ToolCallID: ec.ToolCallID,
			Tool:       "shell",
			Output:     fmt.Sprintf("%s\n(error: %v)", output, err),
			Success:    false,
			DurationMs: duration.Milliseconds(),
		}, nil
	}

	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       "shell",
		Output:     output,
		Success:    exitStatus == 0,
		DurationMs: duration.Milliseconds(),
	}, nil
}
