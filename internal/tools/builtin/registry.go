package builtin

import (
	"github.com/joweeba/dTOOL/internal/sandbox"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// Registry holds the six built-in tools, keyed by every name the
// dispatcher accepts for them, including the list_dir/list_directory
// alias.
type Registry struct {
	tools map[string]toolcore.Tool
}

// NewRegistry builds the full built-in tool set for a workspace.
func NewRegistry(workspaceRoot string, executor *sandbox.Executor, maxReadBytes int) *Registry {
	listDir := NewListDirTool(workspaceRoot)
	r := &Registry{tools: map[string]toolcore.Tool{
		"shell":          NewShellTool(executor),
		"read_file":      NewReadFileTool(workspaceRoot, maxReadBytes),
		"write_file":     NewWriteFileTool(workspaceRoot),
		"list_dir":       listDir,
		"list_directory": listDir,
		"search_files":   NewSearchFilesTool(workspaceRoot),
		"apply_patch":    NewApplyPatchTool(workspaceRoot),
	}}
	return r
}

// Lookup returns the built-in tool for name, if any.
func (r *Registry) Lookup(name string) (toolcore.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every built-in tool name, including aliases.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
