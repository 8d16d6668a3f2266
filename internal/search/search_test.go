package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestDetectMode(t *testing.T) {
	assert.Equal(t, ModeGlob, detectMode("*.go"))
	assert.Equal(t, ModeGlob, detectMode("main.?o"))
	assert.Equal(t, ModeFuzzy, detectMode("main"))
}

func TestFuzzyScore(t *testing.T) {
	score, ok := fuzzyScore("mn", "main.go")
	assert.True(t, ok)
	assert.Greater(t, score, 0)

	_, ok = fuzzyScore("zzz", "main.go")
	assert.False(t, ok)
}

func TestFuzzySearch_OrdersByScoreAndExcludesBuildDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":           "package main",
		"internal/main2.go": "package internal",
		"vendor/main3.go":   "package vendor",
		"node_modules/x.go": "package nm",
	})

	result := SearchFiles(Options{Query: "main", Path: ".", WorkspaceRoot: root, Mode: ModeFuzzy})
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "main.go")
	assert.Contains(t, result.Output, "main2.go")
	assert.NotContains(t, result.Output, "vendor")
	assert.NotContains(t, result.Output, "node_modules")
}

func TestResolveSearchPath_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := resolveSearchPath(Options{WorkspaceRoot: root, Path: "../../etc"})
	assert.Error(t, err)
}

func TestResolveSearchPath_NonexistentRelativeResolvesToRoot(t *testing.T) {
	root := t.TempDir()
	resolved, err := resolveSearchPath(Options{WorkspaceRoot: root, Path: "does/not/exist"})
	require.NoError(t, err)
	rootAbs, _ := filepath.Abs(root)
	assert.Equal(t, rootAbs, resolved)
}

func TestResolveSearchPath_SandboxAvailableSkipsCheck(t *testing.T) {
	root := t.TempDir()
	resolved, err := resolveSearchPath(Options{WorkspaceRoot: root, Path: "../../etc", SandboxAvailable: true})
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
}

func TestSearchFiles_GlobMode(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a", "b.txt": "text"})
	result := SearchFiles(Options{Query: "*.go", WorkspaceRoot: root})
	assert.True(t, result.Success)
}
