package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

const readFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Path to the file, relative to the workspace."},
		"offset": {"type": "integer", "minimum": 0, "description": "Byte offset to start reading from."},
		"max_bytes": {"type": "integer", "minimum": 0, "description": "Maximum bytes to read, capped by the tool default."}
	},
	"required": ["path"]
}`

// ReadFileTool reads a workspace file with an offset and a byte cap.
type ReadFileTool struct {
	resolver     resolver
	maxReadBytes int
}

// NewReadFileTool builds a read_file tool scoped to workspaceRoot.
func NewReadFileTool(workspaceRoot string, maxReadBytes int) *ReadFileTool {
	if maxReadBytes <= 0 {
		maxReadBytes = 200_000
	}
	return &ReadFileTool{resolver: resolver{root: workspaceRoot}, maxReadBytes: maxReadBytes}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a file from the workspace." }
func (t *ReadFileTool) Schema() json.RawMessage { return json.RawMessage(readFileSchema) }

func (t *ReadFileTool) Execute(ctx context.Context, ec toolcore.ExecContext, args json.RawMessage) (*toolcore.ToolResult, error) {
	if err := validateArgs(readFileSchema, args); err != nil {
		return errorResult(ec, "read_file", err), nil
	}
	var input struct {
		Path     string `json:"path"`
		Offset   int64  `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult(ec, "read_file", fmt.Errorf("decode arguments: %w", err)), nil
	}

	resolved, err := t.resolver.resolve(input.Path)
	if err != nil {
		return errorResult(ec, "read_file", err), nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return errorResult(ec, "read_file", fmt.Errorf("open file: %w", err)), nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errorResult(ec, "read_file", fmt.Errorf("stat file: %w", err)), nil
	}

	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return errorResult(ec, "read_file", fmt.Errorf("seek file: %w", err)), nil
		}
	}

	limit := t.maxReadBytes
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - input.Offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return errorResult(ec, "read_file", fmt.Errorf("read file: %w", err)), nil
	}

	output := string(buf)
	if truncated := info.Size() > 0 && input.Offset+int64(len(buf)) < info.Size(); truncated {
		output += fmt.Sprintf("\n... (truncated, %d of %d bytes shown)", len(buf), info.Size())
	}

	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       "read_file",
		Output:     output,
		Success:    true,
	}, nil
}
