package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

const listDirSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Directory to list, relative to the workspace. Defaults to \".\"."}
	}
}`

// ListDirTool lists the immediate entries of a workspace directory. It is
// also bound under the "list_directory" alias, per spec's aliasing note.
type ListDirTool struct {
	resolver resolver
}

// NewListDirTool builds a list_dir tool scoped to workspaceRoot.
func NewListDirTool(workspaceRoot string) *ListDirTool {
	return &ListDirTool{resolver: resolver{root: workspaceRoot}}
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the entries of a workspace directory." }
func (t *ListDirTool) Schema() json.RawMessage { return json.RawMessage(listDirSchema) }

func (t *ListDirTool) Execute(ctx context.Context, ec toolcore.ExecContext, args json.RawMessage) (*toolcore.ToolResult, error) {
	if err := validateArgs(listDirSchema, args); err != nil {
		return errorResult(ec, "list_dir", err), nil
	}
	var input struct {
		Path string `json:"path"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return errorResult(ec, "list_dir", fmt.Errorf("decode arguments: %w", err)), nil
		}
	}
	if strings.TrimSpace(input.Path) == "" {
		input.Path = "."
	}

	resolved, err := t.resolver.resolve(input.Path)
	if err != nil {
		return errorResult(ec, "list_dir", err), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errorResult(ec, "list_dir", fmt.Errorf("read directory: %w", err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       "list_dir",
		Output:     strings.Join(names, "\n"),
		Success:    true,
	}, nil
}
