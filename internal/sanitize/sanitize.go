// Package sanitize implements the output sanitizer: a pure, ordered rule
// chain that redacts credentials and PII from strings and JSON values before
// they are returned to the model, persisted to a trace, or exported as a
// metric label.
//
// Follows the builtin pattern list plus Apply structure of a guard-style
// redactor, extended with a broader pattern list covering cloud credentials,
// private keys, and common PII shapes beyond the mandatory nine.
package sanitize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// rule is one ordered entry in the sanitizer's rule chain.
type rule struct {
	name    string
	pattern *regexp.Regexp
	replace func(match string) string
}

func literalReplace(s string) func(string) string {
	return func(string) string { return s }
}

// ruleChain is the fixed, ordered rule set. Order matters: later rules may
// depend on earlier replacements having already run (e.g. the generic
// credential-assignment rule must fire before the catch-all generic-secret
// rule so the more specific replacement wins).
var ruleChain = []rule{
	{
		name:    "credential_assignment",
		pattern: regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret|password)\s*=\s*\S+`),
		replace: func(m string) string {
			loc := credentialAssignmentKey.FindStringSubmatch(m)
			if len(loc) < 2 {
				return "[REDACTED]"
			}
			return loc[1] + "=[REDACTED]"
		},
	},
	{
		name:    "openai_key",
		pattern: regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`),
		replace: literalReplace("[REDACTED-API-KEY]"),
	},
	{
		name:    "github_token_classic",
		pattern: regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`),
		replace: literalReplace("[REDACTED-GITHUB-TOKEN]"),
	},
	{
		name:    "aws_access_key",
		pattern: regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`),
		replace: literalReplace("[REDACTED-AWS-KEY]"),
	},
	{
		name:    "pem_private_key",
		pattern: regexp.MustCompile(`(?s)-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----.*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
		replace: literalReplace("[REDACTED-PRIVATE-KEY]"),
	},
	{
		name:    "basic_auth_url",
		pattern: regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`),
		replace: literalReplace("://[REDACTED]@"),
	},
	{
		name:    "bearer_basic_header",
		pattern: regexp.MustCompile(`(?i)\b(Bearer|Basic)\s+[A-Za-z0-9._~+/=-]+`),
		replace: func(m string) string {
			parts := strings.SplitN(m, " ", 2)
			if len(parts) == 0 {
				return "[REDACTED]"
			}
			return parts[0] + " [REDACTED]"
		},
	},
	{
		name:    "ssh_url",
		pattern: regexp.MustCompile(`ssh://[^@\s]+@[^\s/]+`),
		replace: literalReplace("ssh://[REDACTED]"),
	},
	{
		name:    "ipv4_port",
		pattern: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}:\d{1,5}\b`),
		replace: literalReplace("[REDACTED-HOST]"),
	},
	// --- extended rules, grounded on original_source redaction.rs ---
	{
		name:    "anthropic_key",
		pattern: regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`),
		replace: literalReplace("[REDACTED-ANTHROPIC-KEY]"),
	},
	{
		name:    "github_token_other",
		pattern: regexp.MustCompile(`\b(?:gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,}\b`),
		replace: literalReplace("[REDACTED-GITHUB-TOKEN]"),
	},
	{
		name:    "slack_token",
		pattern: regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]+`),
		replace: literalReplace("[REDACTED-SLACK-TOKEN]"),
	},
	{
		name:    "email",
		pattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		replace: literalReplace("[REDACTED-EMAIL]"),
	},
	{
		name:    "credit_card",
		pattern: regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12}|\d{4}[-\s]\d{4}[-\s]\d{4}[-\s]\d{4})\b`),
		replace: literalReplace("[REDACTED-CARD]"),
	},
	{
		name:    "generic_secret",
		pattern: regexp.MustCompile(`(?i)(?:password|passwd|pwd|secret|token)[=:\s]+['"]?([^\s'"]{8,})['"]?`),
		replace: func(m string) string {
			// credential_assignment already ran and may have left a
			// "key=[REDACTED]" span in place; this pattern's 8-char floor
			// matches "[REDACTED]" itself (10 chars), so without this guard
			// it would re-redact an already-redacted span and destroy the
			// "$1=[REDACTED]" format credential_assignment produced.
			if strings.Contains(m, "[REDACTED") {
				return m
			}
			return "[REDACTED]"
		},
	},
}

var credentialAssignmentKey = regexp.MustCompile(`(?i)^(api[_-]?key|apikey|token|secret|password)\s*=`)

// ssnRule is opt-in (see RedactPII) because the bare digit shape collides
// with ordinary numeric data too often to redact unconditionally.
var ssnRule = rule{
	name:    "ssn",
	pattern: regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`),
	replace: literalReplace("[REDACTED-SSN]"),
}

// Options configures a Sanitizer beyond the fixed rule chain.
type Options struct {
	// RedactPII additionally applies the SSN-shape rule, which is off by
	// default to avoid over-redacting ordinary numeric data.
	RedactPII bool
	// FieldPaths, when sanitizing JSON, forces the entire value at each
	// dotted path to "[REDACTED]" regardless of content.
	FieldPaths []string
}

// Sanitize applies the full ordered rule chain to s. It is idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x), because every replacement token uses
// the fixed "[REDACTED...]" bracket shape, which no rule's pattern matches.
func Sanitize(s string) string {
	return SanitizeWithOptions(s, Options{})
}

// SanitizeWithOptions is Sanitize with additional PII coverage.
func SanitizeWithOptions(s string, opts Options) string {
	out := s
	for _, r := range ruleChain {
		out = r.pattern.ReplaceAllStringFunc(out, r.replace)
	}
	if opts.RedactPII {
		out = ssnRule.pattern.ReplaceAllStringFunc(out, ssnRule.replace)
	}
	return out
}

// SanitizeJSON recursively sanitizes every string leaf of v, which must be a
// value produced by encoding/json (e.g. via json.Unmarshal into any). Field
// paths in opts.FieldPaths force their entire value to "[REDACTED]".
func SanitizeJSON(v any, opts Options) any {
	return sanitizeJSONPath(v, nil, opts)
}

func sanitizeJSONPath(v any, path []string, opts Options) any {
	if matchesFieldPath(path, opts.FieldPaths) {
		return "[REDACTED]"
	}
	switch t := v.(type) {
	case string:
		return SanitizeWithOptions(t, opts)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = sanitizeJSONPath(vv, append(append([]string{}, path...), k), opts)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = sanitizeJSONPath(vv, path, opts)
		}
		return out
	default:
		return v
	}
}

func matchesFieldPath(path, allowlist []string) bool {
	if len(path) == 0 || len(allowlist) == 0 {
		return false
	}
	joined := strings.Join(path, ".")
	for _, p := range allowlist {
		if p == joined {
			return true
		}
	}
	return false
}

// DefaultMaxOutputBytes is the default truncation threshold for tool output,
// matching max_output_size_bytes's documented default.
const DefaultMaxOutputBytes = 51200

// Truncate bounds s to at most maxBytes bytes, naming the remaining byte
// count in the sentinel rather than a fixed "...[truncated]" suffix.
// maxBytes <= 0 falls back to DefaultMaxOutputBytes. The cut point is
// line-aligned: it backs up to the last newline within the kept prefix, if
// one exists, so a line is never split mid-way. When the prefix has no
// newline, the cut instead backs up only as far as the nearest UTF-8 rune
// boundary, so the sentinel never splits a multi-byte rune.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxOutputBytes
	}
	if len(s) <= maxBytes {
		return s
	}
	// Shrink the kept prefix until prefix+sentinel fits within maxBytes; the
	// sentinel's own byte count grows only in the number of remaining-byte
	// digits, so this converges in at most a couple of iterations.
	cut := maxBytes
	for {
		if cut < 0 {
			cut = 0
		}
		aligned := cut
		if idx := strings.LastIndexByte(s[:cut], '\n'); idx >= 0 {
			aligned = idx
		} else {
			for aligned > 0 && !isRuneStart(s[aligned]) {
				aligned--
			}
		}
		remaining := len(s) - aligned
		sentinel := fmt.Sprintf("\n...[truncated, %d bytes remaining]", remaining)
		if aligned == 0 || aligned+len(sentinel) <= maxBytes {
			return s[:aligned] + sentinel
		}
		cut -= len(sentinel)
	}
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// SanitizeRawJSON is a convenience for sanitizing a json.RawMessage payload,
// round-tripping through map[string]any/[]any/string/etc.
func SanitizeRawJSON(raw json.RawMessage, opts Options) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("sanitize: decode json: %w", err)
	}
	sanitized := SanitizeJSON(v, opts)
	out, err := json.Marshal(sanitized)
	if err != nil {
		return nil, fmt.Errorf("sanitize: encode json: %w", err)
	}
	return out, nil
}
