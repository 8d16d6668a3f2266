package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

const writeFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Path to write, relative to the workspace."},
		"content": {"type": "string", "description": "File contents to write."},
		"append": {"type": "boolean", "description": "Append instead of overwrite."}
	},
	"required": ["path", "content"]
}`

// WriteFileTool writes a workspace file, gated by sandbox mode.
type WriteFileTool struct {
	resolver resolver
}

// NewWriteFileTool builds a write_file tool scoped to workspaceRoot.
func NewWriteFileTool(workspaceRoot string) *WriteFileTool {
	return &WriteFileTool{resolver: resolver{root: workspaceRoot}}
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file in the workspace." }
func (t *WriteFileTool) Schema() json.RawMessage { return json.RawMessage(writeFileSchema) }

func (t *WriteFileTool) Execute(ctx context.Context, ec toolcore.ExecContext, args json.RawMessage) (*toolcore.ToolResult, error) {
	if ec.SandboxMode == toolcore.SandboxReadOnly {
		return readOnlyRejection(ec, "write_file"), nil
	}
	if err := validateArgs(writeFileSchema, args); err != nil {
		return errorResult(ec, "write_file", err), nil
	}
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult(ec, "write_file", fmt.Errorf("decode arguments: %w", err)), nil
	}

	resolved, err := t.resolver.resolve(input.Path)
	if err != nil {
		return errorResult(ec, "write_file", err), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errorResult(ec, "write_file", fmt.Errorf("create directory: %w", err)), nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return errorResult(ec, "write_file", fmt.Errorf("open file: %w", err)), nil
	}
	defer file.Close()

	n, err := file.WriteString(input.Content)
	if err != nil {
		return errorResult(ec, "write_file", fmt.Errorf("write file: %w", err)), nil
	}

	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       "write_file",
		Output:     fmt.Sprintf("wrote %d bytes to %s", n, input.Path),
		Success:    true,
	}, nil
}
