// Package patch implements the patch engine: format classification between
// the custom hunk-based format and a standard unified diff, dispatching
// each to its own applier.
//
// The context/delete/insert line-matching algorithm (applyFilePatch) is
// kept for the custom hunk format in hunk.go; the unified-diff path applies
// via a subprocess git apply rather than in-process matching.
package patch

import "strings"

// Format identifies which of the two supported patch syntaxes a payload
// uses.
type Format int

const (
	// FormatCustomHunk is the "*** Begin Patch" sentinel family.
	FormatCustomHunk Format = iota
	// FormatUnifiedDiff is a standard `diff --git` / `---`/`+++` payload.
	FormatUnifiedDiff
)

// Classify detects which format patch text uses: unified diff iff the
// trimmed text starts with "diff --git" or contains both a "--- " line
// and a "+++ " line.
func Classify(text string) Format {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "diff --git") {
		return FormatUnifiedDiff
	}
	hasOld, hasNew := false, false
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(line, "--- ") {
			hasOld = true
		}
		if strings.HasPrefix(line, "+++ ") {
			hasNew = true
		}
	}
	if hasOld && hasNew {
		return FormatUnifiedDiff
	}
	return FormatCustomHunk
}

// Result is the outcome of applying a patch, either format.
type Result struct {
	Output  string
	Success bool
}

// Apply classifies patchText and dispatches to the matching applier.
// workDir is the working directory both appliers resolve relative paths
// against.
func Apply(patchText, workDir string) Result {
	if strings.TrimSpace(patchText) == "" {
		return Result{Output: "patch is required", Success: false}
	}
	switch Classify(patchText) {
	case FormatUnifiedDiff:
		return applyUnifiedDiff(patchText, workDir)
	default:
		return applyCustomHunk(patchText, workDir)
	}
}
