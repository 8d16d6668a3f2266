// Package remote implements the remote tool client: qualified-name dispatch
// to MCP-style sidecar servers over stdio, HTTP, or websocket transports,
// with bounded retry and typed-content-to-string flattening.
//
// Built on the mcp package's Client/Manager/transport trio (connection
// lifecycle, JSON-RPC framing) plus the retry package for the
// attempt/backoff schedule. Connection establishment is collapsed per
// server via golang.org/x/sync/singleflight rather than a hand-rolled
// singleflight group.
package remote

import (
	"fmt"
	"strings"
)

const qualifiedPrefix = "mcp__"

// ParseQualifiedName splits a qualified tool name of the form
// "mcp__<server>__<tool>" into its server and tool components.
func ParseQualifiedName(name string) (server, tool string, err error) {
	if !strings.HasPrefix(name, qualifiedPrefix) {
		return "", "", fmt.Errorf("Invalid MCP tool name format")
	}
	rest := strings.TrimPrefix(name, qualifiedPrefix)
	idx := strings.Index(rest, "__")
	if idx <= 0 || idx == len(rest)-2 {
		return "", "", fmt.Errorf("Invalid MCP tool name format")
	}
	server = rest[:idx]
	tool = rest[idx+2:]
	if server == "" || tool == "" {
		return "", "", fmt.Errorf("Invalid MCP tool name format")
	}
	return server, tool, nil
}

// QualifiedName is the inverse of ParseQualifiedName, used by callers that
// build the pending tool-call name for a discovered remote tool.
func QualifiedName(server, tool string) string {
	return qualifiedPrefix + server + "__" + tool
}

// IsQualifiedName reports whether name carries the "mcp__" prefix, letting a
// caller route a ToolCall before attempting the (fallible) full parse.
func IsQualifiedName(name string) bool {
	return strings.HasPrefix(name, qualifiedPrefix)
}
