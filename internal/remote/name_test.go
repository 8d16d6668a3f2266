package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQualifiedName_Valid(t *testing.T) {
	server, tool, err := ParseQualifiedName("mcp__github__search_issues")
	require.NoError(t, err)
	assert.Equal(t, "github", server)
	assert.Equal(t, "search_issues", tool)
}

func TestParseQualifiedName_ToolNameContainsDoubleUnderscore(t *testing.T) {
	server, tool, err := ParseQualifiedName("mcp__github__list__branches")
	require.NoError(t, err)
	assert.Equal(t, "github", server)
	assert.Equal(t, "list__branches", tool)
}

func TestParseQualifiedName_MissingPrefix(t *testing.T) {
	_, _, err := ParseQualifiedName("github__search_issues")
	require.Error(t, err)
	assert.Equal(t, "Invalid MCP tool name format", err.Error())
}

func TestParseQualifiedName_MissingToolPart(t *testing.T) {
	_, _, err := ParseQualifiedName("mcp__github__")
	require.Error(t, err)
	assert.Equal(t, "Invalid MCP tool name format", err.Error())
}

func TestParseQualifiedName_MissingServerPart(t *testing.T) {
	_, _, err := ParseQualifiedName("mcp____search_issues")
	require.Error(t, err)
}

func TestParseQualifiedName_NoSeparator(t *testing.T) {
	_, _, err := ParseQualifiedName("mcp__justoneword")
	require.Error(t, err)
}

func TestQualifiedName_RoundTrips(t *testing.T) {
	name := QualifiedName("github", "search_issues")
	server, tool, err := ParseQualifiedName(name)
	require.NoError(t, err)
	assert.Equal(t, "github", server)
	assert.Equal(t, "search_issues", tool)
}
