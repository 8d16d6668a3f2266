package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joweeba/dTOOL/internal/sandbox"
	"github.com/joweeba/dTOOL/internal/search"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

const searchFilesSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Search term, fuzzy filename fragment, glob pattern, or content regex."},
		"path": {"type": "string", "description": "Directory to search under, relative to the workspace."},
		"mode": {"type": "string", "enum": ["fuzzy", "content", "glob"]},
		"limit": {"type": "integer", "minimum": 1}
	},
	"required": ["query"]
}`

// SearchFilesTool implements the fuzzy/content/glob file search engine.
type SearchFilesTool struct {
	workspaceRoot string
}

// NewSearchFilesTool builds a search_files tool scoped to workspaceRoot.
func NewSearchFilesTool(workspaceRoot string) *SearchFilesTool {
	return &SearchFilesTool{workspaceRoot: workspaceRoot}
}

func (t *SearchFilesTool) Name() string        { return "search_files" }
func (t *SearchFilesTool) Description() string { return "Search files by name, content, or glob pattern." }
func (t *SearchFilesTool) Schema() json.RawMessage { return json.RawMessage(searchFilesSchema) }

func (t *SearchFilesTool) Execute(ctx context.Context, ec toolcore.ExecContext, args json.RawMessage) (*toolcore.ToolResult, error) {
	if err := validateArgs(searchFilesSchema, args); err != nil {
		return errorResult(ec, "search_files", err), nil
	}
	var input struct {
		Query string `json:"query"`
		Path  string `json:"path"`
		Mode  string `json:"mode"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult(ec, "search_files", fmt.Errorf("decode arguments: %w", err)), nil
	}

	result := search.SearchFiles(search.Options{
		Query:            input.Query,
		Path:             input.Path,
		Mode:             search.Mode(input.Mode),
		Limit:            input.Limit,
		WorkspaceRoot:    t.workspaceRoot,
		SandboxAvailable: ec.SandboxMode == toolcore.SandboxDangerFullAccess || sandbox.IsAvailable(),
	})

	return &toolcore.ToolResult{
		ToolCallID: ec.ToolCallID,
		Tool:       "search_files",
		Output:     result.Output,
		Success:    result.Success,
	}, nil
}
