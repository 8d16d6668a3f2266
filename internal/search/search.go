// Package search implements the file search engine: fuzzy filename
// matching, content grep, and glob matching, with auto-detection between
// them and a workspace-containment check.
//
// The fuzzy matcher is hand-written since no suitable third-party library
// is available; the workspace-containment check follows a resolver's
// path-escape logic, and the content/glob modes shell out to a preferred
// binary with a portable fallback.
package search

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Mode selects which of the three search strategies to run.
type Mode string

const (
	ModeFuzzy   Mode = "fuzzy"
	ModeContent Mode = "content"
	ModeGlob    Mode = "glob"
)

// excludedDirs are never descended into by the fuzzy matcher.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
}

// Options configures one SearchFiles call.
type Options struct {
	Query         string
	Path          string
	Mode          Mode
	Limit         int
	WorkspaceRoot string
	// SandboxAvailable, when true, skips the workspace-containment check:
	// the sandbox primitive itself already confines filesystem access.
	SandboxAvailable bool
}

// Result is the outcome of a SearchFiles call.
type Result struct {
	Output  string
	Success bool
}

// SearchFiles runs the search described by opts, auto-detecting the mode
// when unset.
func SearchFiles(opts Options) Result {
	mode := opts.Mode
	if mode == "" {
		mode = detectMode(opts.Query)
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	searchPath, err := resolveSearchPath(opts)
	if err != nil {
		return Result{Output: err.Error(), Success: false}
	}

	switch mode {
	case ModeGlob:
		return globSearch(opts.Query, searchPath, opts.Limit)
	case ModeContent:
		return contentSearch(opts.Query, searchPath, opts.Limit)
	default:
		return fuzzySearch(opts.Query, searchPath, opts.Limit)
	}
}

func detectMode(query string) Mode {
	if strings.ContainsAny(query, "*?") {
		return ModeGlob
	}
	return ModeFuzzy
}

// resolveSearchPath applies the workspace-containment check: when the
// sandbox primitive is not available, the search path must resolve to a
// descendant of the workspace root. A non-existent relative path resolves
// to the workspace root itself.
func resolveSearchPath(opts Options) (string, error) {
	root := opts.WorkspaceRoot
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}

	requested := strings.TrimSpace(opts.Path)
	if requested == "" {
		return rootAbs, nil
	}

	var target string
	if filepath.IsAbs(requested) {
		target = filepath.Clean(requested)
	} else {
		target = filepath.Join(rootAbs, requested)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve search path: %w", err)
	}

	if opts.SandboxAvailable {
		return targetAbs, nil
	}

	if _, err := os.Stat(targetAbs); os.IsNotExist(err) {
		return rootAbs, nil
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("search path %q is outside the workspace directory", opts.Path)
	}
	return targetAbs, nil
}

// match is one fuzzy-search hit.
type match struct {
	path  string
	score int
}

func fuzzySearch(query, root string, limit int) Result {
	query = strings.ToLower(query)
	var matches []match

	_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if excludedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		score, ok := fuzzyScore(query, strings.ToLower(name))
		if !ok {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}
		matches = append(matches, match{path: rel, score: score})
		return nil
	})

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	truncated := len(matches) > limit
	if truncated {
		matches = matches[:limit]
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s (score: %d)\n", m.path, m.score)
	}
	if truncated {
		fmt.Fprintf(&sb, "... (%d more results truncated)\n", len(matches))
	}
	return Result{Output: strings.TrimRight(sb.String(), "\n"), Success: true}
}

// fuzzyScore reports a subsequence match score: every character of query
// must appear in name in order, not necessarily contiguously. Consecutive
// matches and matches at the start of name score higher.
func fuzzyScore(query, name string) (int, bool) {
	if query == "" {
		return 0, true
	}
	qi := 0
	score := 0
	consecutive := 0
	for ni := 0; ni < len(name) && qi < len(query); ni++ {
		if name[ni] == query[qi] {
			score++
			if ni == 0 {
				score += 5
			}
			consecutive++
			score += consecutive
			qi++
		} else {
			consecutive = 0
		}
	}
	if qi < len(query) {
		return 0, false
	}
	return score, true
}

func contentSearch(query, root string, limit int) Result {
	var cmd *exec.Cmd
	if path, err := exec.LookPath("rg"); err == nil {
		cmd = exec.Command(path, "-n", "--", query, root)
	} else {
		cmd = exec.Command("grep", "-rn", "--", query, root)
	}
	return runAndLimit(cmd, limit)
}

func globSearch(pattern, root string, limit int) Result {
	var cmd *exec.Cmd
	if path, err := exec.LookPath("fd"); err == nil {
		cmd = exec.Command(path, "--glob", "--", pattern, root)
	} else {
		cmd = exec.Command("find", root, "-name", pattern)
	}
	return runAndLimit(cmd, limit)
}

func runAndLimit(cmd *exec.Cmd, limit int) Result {
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}
	truncated := len(lines) > limit
	if truncated {
		lines = lines[:limit]
	}
	output := strings.Join(lines, "\n")
	if truncated {
		output += fmt.Sprintf("\n... (more results truncated)")
	}

	// grep/rg/fd/find exit non-zero on "no matches", which is not itself a
	// failure of the search operation.
	if err != nil && out.Len() == 0 && errOut.Len() > 0 {
		return Result{Output: strings.TrimSpace(errOut.String()), Success: false}
	}
	return Result{Output: output, Success: true}
}
