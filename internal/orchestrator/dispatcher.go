package orchestrator

import (
	"context"
	"time"

	"github.com/joweeba/dTOOL/internal/remote"
	"github.com/joweeba/dTOOL/internal/tools/builtin"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// dispatcher is the scheduler.Dispatcher an orchestrated turn runs its
// accepted calls through: built-in tool names resolve against a
// builtin.Registry, qualified "mcp__<server>__<tool>" names fall through to
// the remote tool client. Built grounded on AgentState's own ambient fields
// (working directory, sandbox mode, writable roots) rather than a second
// config object, since every value a Tool needs is already there.
type dispatcher struct {
	registry *builtin.Registry
	remote   *remote.Dispatcher
	state    toolcore.AgentState
}

func newDispatcher(registry *builtin.Registry, remoteClient toolcore.RemoteClient, state toolcore.AgentState) *dispatcher {
	d := &dispatcher{registry: registry, state: state}
	if reg, ok := remoteClient.(*remote.Registry); ok {
		d.remote = remote.NewDispatcher(reg)
	}
	return d
}

func (d *dispatcher) Dispatch(ctx context.Context, call toolcore.ToolCall) (*toolcore.ToolResult, error) {
	if remote.IsQualifiedName(call.Tool) {
		if d.remote == nil {
			return &toolcore.ToolResult{
				ToolCallID: call.ID,
				Tool:       call.Tool,
				Output:     "no remote tool client configured",
				Success:    false,
			}, nil
		}
		return d.remote.Dispatch(ctx, call)
	}

	tool, ok := d.registry.Lookup(call.Tool)
	if !ok {
		return &toolcore.ToolResult{
			ToolCallID: call.ID,
			Tool:       call.Tool,
			Output:     "unknown tool: " + call.Tool,
			Success:    false,
		}, nil
	}

	ec := toolcore.ExecContext{
		SessionID:        d.state.SessionID,
		ToolCallID:       call.ID,
		WorkingDirectory: d.state.WorkingDirectory,
		SandboxMode:      d.state.SandboxMode,
		WritableRoots:    d.state.SandboxWritableRoots,
		Started:          time.Now(),
	}
	return tool.Execute(ctx, ec, call.Args)
}
