package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joweeba/dTOOL/internal/sandbox"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

func TestRegistry_LookupAndAliases(t *testing.T) {
	r := NewRegistry(t.TempDir(), sandbox.NewExecutor(), 0)
	for _, name := range []string{"shell", "read_file", "write_file", "list_dir", "list_directory", "search_files", "apply_patch"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "expected built-in %q to be registered", name)
	}
	_, ok := r.Lookup("not_a_tool")
	assert.False(t, ok)
}

func TestWriteFileTool_ReadOnlyModeRejects(t *testing.T) {
	tool := NewWriteFileTool(t.TempDir())
	args, _ := json.Marshal(map[string]string{"path": "a.txt", "content": "hi"})
	result, err := tool.Execute(context.Background(), toolcore.ExecContext{SandboxMode: toolcore.SandboxReadOnly}, args)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "read-only sandbox mode")
}

func TestWriteThenReadFileTool_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	writeTool := NewWriteFileTool(dir)
	readTool := NewReadFileTool(dir, 0)

	writeArgs, _ := json.Marshal(map[string]string{"path": "note.txt", "content": "hello world"})
	wr, err := writeTool.Execute(context.Background(), toolcore.ExecContext{SandboxMode: toolcore.SandboxWorkspaceWrite}, writeArgs)
	require.NoError(t, err)
	require.True(t, wr.Success, wr.Output)

	readArgs, _ := json.Marshal(map[string]string{"path": "note.txt"})
	rr, err := readTool.Execute(context.Background(), toolcore.ExecContext{}, readArgs)
	require.NoError(t, err)
	require.True(t, rr.Success)
	assert.Equal(t, "hello world", rr.Output)
}

func TestReadFileTool_MissingPathFailsValidation(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), 0)
	result, err := tool.Execute(context.Background(), toolcore.ExecContext{}, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestListDirTool_DefaultsToWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	tool := NewListDirTool(dir)
	result, err := tool.Execute(context.Background(), toolcore.ExecContext{}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "a.txt")
	assert.Contains(t, result.Output, "sub/")
}

func TestApplyPatchTool_ReadOnlyModeRejects(t *testing.T) {
	tool := NewApplyPatchTool(t.TempDir())
	args, _ := json.Marshal(map[string]string{"patch": "*** Begin Patch\n*** End Patch"})
	result, err := tool.Execute(context.Background(), toolcore.ExecContext{SandboxMode: toolcore.SandboxReadOnly}, args)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "read-only sandbox mode")
}

func TestSearchFilesTool_FuzzyFindsWrittenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte("package main"), 0o644))

	tool := NewSearchFilesTool(dir)
	args, _ := json.Marshal(map[string]string{"query": "widget"})
	result, err := tool.Execute(context.Background(), toolcore.ExecContext{SandboxMode: toolcore.SandboxDangerFullAccess}, args)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "widget.go")
}
