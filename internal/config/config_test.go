package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "working_directory: /tmp/work\n")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "ReadOnly", cfg.SandboxMode)
	assert.Equal(t, DefaultTimeoutSecs, cfg.TimeoutSecs)
	assert.Equal(t, DefaultMaxParallelTasks, cfg.MaxParallelTasks.Limit())
	assert.False(t, cfg.MaxParallelTasks.Unlimited())
	assert.Equal(t, DefaultMaxOutputSizeBytes, cfg.MaxOutputSizeBytes)
	assert.True(t, cfg.TraceRedactEnabled())
	assert.True(t, cfg.MetricsRedactEnabled())
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "not_a_real_option: true\n")

	_, err := Load(path, "")
	require.Error(t, err)
}

func TestLoad_ParsesExplicitOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
sandbox_mode: WorkspaceWrite
working_directory: /tmp/work
sandbox_writable_roots:
  - /tmp/scratch
timeout_secs: 30
max_parallel_tasks: 8
max_output_size_bytes: 2048
approval_allowlist_path: /tmp/allow.json
config_hot_reload: true
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "WorkspaceWrite", cfg.SandboxMode)
	assert.Equal(t, []string{"/tmp/scratch"}, cfg.SandboxWritableRoots)
	assert.Equal(t, 30, cfg.TimeoutSecs)
	assert.Equal(t, 8, cfg.MaxParallelTasks.Limit())
	assert.Equal(t, 2048, cfg.MaxOutputSizeBytes)
	assert.Equal(t, "/tmp/allow.json", cfg.ApprovalAllowlistPath)
	assert.True(t, cfg.ConfigHotReload)
}

func TestSandboxModeValue_AcceptsSpecAndStringForms(t *testing.T) {
	cfg := &Config{SandboxMode: "DangerFullAccess"}
	mode, err := cfg.SandboxModeValue()
	require.NoError(t, err)
	assert.Equal(t, toolcore.SandboxDangerFullAccess, mode)

	cfg2 := &Config{SandboxMode: "workspace-write"}
	mode2, err := cfg2.SandboxModeValue()
	require.NoError(t, err)
	assert.Equal(t, toolcore.SandboxWorkspaceWrite, mode2)
}

func TestSandboxModeValue_RejectsUnknown(t *testing.T) {
	cfg := &Config{SandboxMode: "bogus"}
	_, err := cfg.SandboxModeValue()
	assert.Error(t, err)
}

func TestTraceRedactEnabled_EnvOverridesDefaultWhenUnset(t *testing.T) {
	t.Setenv("TRACE_REDACT", "false")
	cfg := &Config{}
	assert.False(t, cfg.TraceRedactEnabled())
}

func TestTraceRedactEnabled_FileValueWinsOverEnv(t *testing.T) {
	t.Setenv("TRACE_REDACT", "false")
	on := true
	cfg := &Config{TraceRedact: &on}
	assert.True(t, cfg.TraceRedactEnabled())
}

func TestLoad_MCPServerIDDefaultsToMapKey(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
mcp_servers:
  search:
    transport: stdio
    command: search-server
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, "search")
	assert.Equal(t, "search", cfg.MCPServers["search"].ID)
}

func TestLoad_MaxParallelTasksAcceptsUnlimited(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "max_parallel_tasks: unlimited\n")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.True(t, cfg.MaxParallelTasks.Unlimited())
	assert.Equal(t, math.MaxInt32, cfg.MaxParallelTasks.Limit())
}

func TestLoad_MaxParallelTasksRejectsZeroAndGarbage(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "zero.yaml", "max_parallel_tasks: 0\n")
	_, err := Load(path, "")
	assert.Error(t, err)

	path2 := writeConfig(t, dir, "garbage.yaml", "max_parallel_tasks: not-a-number\n")
	_, err = Load(path2, "")
	assert.Error(t, err)
}

func TestWatchPaths_SkipsEmptyEntries(t *testing.T) {
	cfg := &Config{ApprovalAllowlistPath: "/tmp/allow.json"}
	assert.Equal(t, []string{"/tmp/allow.json"}, cfg.WatchPaths())

	cfg2 := &Config{}
	assert.Empty(t, cfg2.WatchPaths())
}

func TestLoad_EnvExpansionAndInclude(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOOLCORE_TEST_DIR", "/tmp/from-env")
	base := writeConfig(t, dir, "base.yaml", "timeout_secs: 15\n")
	writeConfig(t, dir, "config.yaml", `
$include: base.yaml
working_directory: ${TOOLCORE_TEST_DIR}
`)

	cfg, err := Load(filepath.Join(dir, "config.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.TimeoutSecs)
	assert.Equal(t, "/tmp/from-env", cfg.WorkingDirectory)
	_ = base
}
