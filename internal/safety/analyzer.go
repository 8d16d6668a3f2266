// Package safety implements the command safety analyzer: a layered
// whitelist/forbidden/dangerous classifier for shell command lines.
//
// Follows a quote-aware tokenizing approach (AnalyzeCommandQuoteAware),
// repurposed here as segmentSplit; the pattern lists cover the broader set
// of known-dangerous shell idioms rather than a minimal enumeration.
package safety

import (
	"regexp"
	"strings"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// whitelist maps a command stem to Safe regardless of approval mode. Stems
// are matched against the first one or two whitespace-separated words of a
// segment.
var whitelist = map[string]bool{
	"ls":          true,
	"cat":         true,
	"grep":        true,
	"pwd":         true,
	"echo":        true,
	"git status":  true,
	"git diff":    true,
	"git log":     true,
	"cargo build": true,
	"cargo test":  true,
	"go build":    true,
	"go test":     true,
	"go vet":      true,
}

// forbiddenPatterns trigger Reject. Grounded verbatim on safety.rs's
// forbidden pattern list.
var forbiddenPatterns = []struct {
	pattern *regexp.Regexp
	reason  string
}{
	{regexp.MustCompile(`rm\s+-rf\s+(/|~|\$HOME)(\s|$)`), "recursive force-delete of a root-level path"},
	{regexp.MustCompile(`rm\s+-rf\s+\*`), "recursive force-delete of a wildcard expansion"},
	{regexp.MustCompile(`rm\s+-r\s+\.\.`), "recursive delete that escapes the working directory"},
	{regexp.MustCompile(`curl\b[^|]*\|\s*(bash|sh|zsh)\b`), "piping a remote download directly into a shell"},
	{regexp.MustCompile(`wget\b[^|]*\|\s*(bash|sh|zsh|shell)\b`), "piping a remote download directly into a shell"},
	{regexp.MustCompile(`kill\s+-9\s+(-1|0)\b`), "sends SIGKILL to every process the caller can see"},
	{regexp.MustCompile(`>\s*/dev/sd[a-z]\b`), "raw write to a block device"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), "fork bomb"},
}

// dangerousPatterns trigger RequiresApproval. Grounded verbatim on
// safety.rs's dangerous pattern list.
var dangerousPatterns = []struct {
	pattern *regexp.Regexp
	reason  string
}{
	{regexp.MustCompile(`\b(dd|fdisk|parted|mkfs)\b`), "disk-level utility that can destroy a filesystem"},
	{regexp.MustCompile(`chmod\b[^;|&]*\b777\b`), "world-writable permission grant"},
	{regexp.MustCompile(`chown\s+-R\s+root\b`), "recursive ownership change to root"},
	{regexp.MustCompile(`\bsudo\b`), "privilege escalation"},
	{regexp.MustCompile(`su\s+-\s+root\b`), "privilege escalation"},
	{regexp.MustCompile(`\.env\b`), "reads a credential file"},
	{regexp.MustCompile(`/etc/passwd\b`), "reads a credential file"},
	{regexp.MustCompile(`\bsecrets?\b`), "reads a path that looks like a secrets store"},
	{regexp.MustCompile(`api[._-]?keys?\b`), "reads a path that looks like an API key store"},
	{regexp.MustCompile(`killall\s+-9\b`), "sends SIGKILL to every process matching a name"},
	{regexp.MustCompile(`git\s+push\s+(--force|-f)\b`), "force-push can overwrite remote history"},
	{regexp.MustCompile(`git\s+reset\s+--hard\b`), "discards uncommitted work irreversibly"},
	{regexp.MustCompile(`export\s+(PATH|LD_PRELOAD|LD_LIBRARY_PATH)=`), "rewrites a security-relevant environment variable"},
	{regexp.MustCompile(`history\s+-c\b`), "scrubs shell history"},
	{regexp.MustCompile(`rm\s+.*\.bash_history\b`), "scrubs shell history"},
	{regexp.MustCompile(`>\s*/dev/null\s+2>&1`), "silently discards diagnostic output"},
	{regexp.MustCompile(`\byes\s*\|`), "auto-confirms every downstream prompt"},
}

// Analyze classifies a shell command line, returning the highest-priority
// verdict among the whitelist, forbidden, and dangerous rule sets. Reject
// dominates RequiresApproval dominates Safe.
func Analyze(command string) toolcore.SafetyCheck {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return toolcore.SafetyCheck{Kind: toolcore.SafetySafe}
	}

	segments := segmentSplit(trimmed)

	var rejectReasons []string
	var dangerReasons []string

	check := func(s string) {
		for _, fp := range forbiddenPatterns {
			if fp.pattern.MatchString(s) {
				rejectReasons = append(rejectReasons, fp.reason)
			}
		}
		for _, dp := range dangerousPatterns {
			if dp.pattern.MatchString(s) {
				dangerReasons = append(dangerReasons, dp.reason)
			}
		}
	}

	check(trimmed)
	for _, seg := range segments {
		check(seg.text)
	}

	if len(rejectReasons) > 0 {
		return toolcore.SafetyCheck{Kind: toolcore.SafetyReject, Reason: joinUnique(rejectReasons)}
	}
	if len(dangerReasons) > 0 {
		return toolcore.SafetyCheck{Kind: toolcore.SafetyRequiresApproval, Reason: joinUnique(dangerReasons)}
	}
	// Everything else yields Safe; whitelist membership is consulted by the
	// approval pipeline's Policy.PromptForEverything mode, not by this verdict.
	return toolcore.SafetyCheck{Kind: toolcore.SafetySafe}
}

// IsWhitelisted reports whether every segment of command matches the
// highest-priority whitelist of command stems that bypass approval even
// under a policy mode that otherwise prompts for everything.
func IsWhitelisted(command string) bool {
	return isWhitelisted(segmentSplit(strings.TrimSpace(command)))
}

func isWhitelisted(segments []segment) bool {
	if len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		if !stemWhitelisted(seg.text) {
			return false
		}
	}
	return true
}

func stemWhitelisted(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	if whitelist[fields[0]] {
		return true
	}
	if len(fields) >= 2 && whitelist[fields[0]+" "+fields[1]] {
		return true
	}
	return false
}

func joinUnique(reasons []string) string {
	seen := make(map[string]bool, len(reasons))
	var out []string
	for _, r := range reasons {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return strings.Join(out, "; ")
}

// segment is one pipeline- or chain-delimited piece of a command line, with
// quoted regions preserved intact so a literal like "rm -rf /" inside quotes
// is not split from its surrounding echo invocation.
type segment struct {
	text string
}

// segmentSplit splits cmd on unquoted ';', '|', '&&', '||' boundaries,
// using the same quote/escape state machine as AnalyzeCommandQuoteAware.
// Quoted content is never treated as a boundary,
// so `echo "rm -rf /"` yields a single segment rather than exposing the
// quoted text as its own invocation.
func segmentSplit(cmd string) []segment {
	var segments []segment
	var cur strings.Builder

	inSingle, inDouble, escaped := false, false, false

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			segments = append(segments, segment{text: text})
		}
		cur.Reset()
	}

	for i := 0; i < len(cmd); i++ {
		c := cmd[i]

		if escaped {
			cur.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && !inSingle {
			escaped = true
			cur.WriteByte(c)
			continue
		}
		if c == '\'' && !inDouble {
			inSingle = !inSingle
			cur.WriteByte(c)
			continue
		}
		if c == '"' && !inSingle {
			inDouble = !inDouble
			cur.WriteByte(c)
			continue
		}
		if inSingle || inDouble {
			cur.WriteByte(c)
			continue
		}

		switch {
		case c == ';':
			flush()
			continue
		case c == '|' && i+1 < len(cmd) && cmd[i+1] == '|':
			flush()
			i++
			continue
		case c == '&' && i+1 < len(cmd) && cmd[i+1] == '&':
			flush()
			i++
			continue
		case c == '|':
			flush()
			continue
		}

		cur.WriteByte(c)
	}
	flush()

	return segments
}
