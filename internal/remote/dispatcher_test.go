package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

func TestDispatcher_Dispatch_InvalidNameFailsWithoutDialing(t *testing.T) {
	d := NewDispatcher(NewRegistry(nil, nil))
	result, err := d.Dispatch(context.Background(), toolcore.ToolCall{ID: "1", Tool: "not_qualified"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid MCP tool name format", result.Output)
}

func TestDispatcher_Dispatch_RoutesToRegistry(t *testing.T) {
	srv := &fakeServer{resultText: "pong"}
	reg, ts := newTestRegistry(t, srv)
	defer ts.Close()

	d := NewDispatcher(reg)
	call := toolcore.ToolCall{ID: "1", Tool: QualifiedName("fake", "echo")}
	result, err := d.Dispatch(context.Background(), call)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "pong", result.Output)
	assert.Equal(t, "1", result.ToolCallID)
}
