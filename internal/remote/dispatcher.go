package remote

import (
	"context"

	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// Dispatcher adapts a Registry to scheduler.Dispatcher, parsing each call's
// qualified tool name before delegating to Registry.CallTool.
type Dispatcher struct {
	Registry *Registry
}

// NewDispatcher wraps registry as a scheduler.Dispatcher.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{Registry: registry}
}

// Dispatch implements scheduler.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, call toolcore.ToolCall) (*toolcore.ToolResult, error) {
	server, tool, err := ParseQualifiedName(call.Tool)
	if err != nil {
		return &toolcore.ToolResult{
			ToolCallID: call.ID,
			Tool:       call.Tool,
			Output:     err.Error(),
			Success:    false,
		}, nil
	}

	output, success, err := d.Registry.CallTool(ctx, server, tool, call.Args)
	if err != nil {
		return nil, err
	}
	return &toolcore.ToolResult{
		ToolCallID: call.ID,
		Tool:       call.Tool,
		Output:     output,
		Success:    success,
	}, nil
}
