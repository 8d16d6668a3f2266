// Package orchestrator runs a single agent turn: it takes an AgentState
// whose PendingToolCalls is non-empty, drives it through the scheduler, and
// returns a new AgentState carrying ToolResults in place of the pending
// calls.
//
// Logs turn_start/turn_complete as plain slog.Info key-value pairs against
// slog.Default(), in keeping with the rest of this module's logging
// conventions. The turn itself brackets down to two steps:
// approve-then-dispatch, then state handoff.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/joweeba/dTOOL/internal/approval"
	"github.com/joweeba/dTOOL/internal/observability"
	"github.com/joweeba/dTOOL/internal/scheduler"
	"github.com/joweeba/dTOOL/internal/tools/builtin"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// Orchestrator wires together the per-turn building blocks: the default
// approval policy/callback pair (used when an AgentState doesn't supply its
// own), the scheduler's dispatch config, and the built-in tool registry.
type Orchestrator struct {
	registry *builtin.Registry
	config   scheduler.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	recorder *observability.Recorder

	defaultPolicy   toolcore.ExecPolicy
	defaultCallback toolcore.ApprovalCallback
}

// Options configures an Orchestrator. Logger, Metrics, Tracer, and Recorder
// may be left nil; a nil Logger falls back to slog.Default(), and nil
// Metrics/Tracer/Recorder simply skip that instrumentation.
type Options struct {
	Registry *builtin.Registry
	Config   scheduler.Config

	// DefaultPolicy/DefaultCallback back a turn whose AgentState leaves
	// ExecPolicy/ApprovalCallback nil. Both are required unless every
	// AgentState RunTurn ever receives supplies its own.
	DefaultPolicy   toolcore.ExecPolicy
	DefaultCallback toolcore.ApprovalCallback

	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Recorder *observability.Recorder
}

// New builds an Orchestrator. Registry must not be nil.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	config := opts.Config
	if config.MaxParallelTasks == 0 && config.PerToolTimeout == 0 && config.MaxAttempts == 0 {
		config = scheduler.DefaultConfig()
	}
	return &Orchestrator{
		registry:        opts.Registry,
		config:          config,
		logger:          logger,
		metrics:         opts.Metrics,
		tracer:          opts.Tracer,
		recorder:        opts.Recorder,
		defaultPolicy:   opts.DefaultPolicy,
		defaultCallback: opts.DefaultCallback,
	}
}

// RunTurn executes the approval-gated scheduling algorithm over state.PendingToolCalls
// and returns a new AgentState with TurnCount incremented, PendingToolCalls
// cleared, and ToolResults populated. state.PendingToolCalls must be
// non-empty.
func (o *Orchestrator) RunTurn(ctx context.Context, state toolcore.AgentState) toolcore.AgentState {
	turnCount := state.TurnCount + 1

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.TraceTurn(ctx, state.SessionID, turnCount)
		defer span.End()
	}

	var builder *observability.Builder
	if o.recorder != nil {
		builder = o.recorder.Start(state.SessionID, turnCount, "", "", 0)
	}

	o.logger.Info("turn_start", "session_id", state.SessionID, "turn_count", turnCount)
	start := time.Now()

	pipeline := &approval.Pipeline{
		Policy:   firstNonNilPolicy(state.ExecPolicy, o.defaultPolicy),
		Callback: firstNonNilCallback(state.ApprovalCallback, o.defaultCallback),
		Sink:     state.StreamCallback,
	}
	dispatch := newDispatcher(o.registry, state.MCPClient, state)
	sched := scheduler.New(pipeline, dispatch, state.StreamCallback, o.config)

	results := sched.Run(ctx, state.SessionID, state.PendingToolCalls, state.SandboxMode)

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
		if o.metrics != nil {
			status := "success"
			if !r.Success {
				status = "failure"
			}
			o.metrics.RecordToolInvocation(r.Tool, status, time.Duration(r.DurationMs)*time.Millisecond)
		}
		if builder != nil {
			builder.AddNode(r.Tool, start, time.Now(), r.Success)
		}
	}

	if builder != nil {
		_ = builder.Finish(ctx, map[string]any{"succeeded": succeeded, "failed": failed})
	}

	o.logger.Info("turn_complete", "session_id", state.SessionID, "turn_count", turnCount,
		"succeeded", succeeded, "failed", failed)

	return toolcore.AgentState{
		SessionID:            state.SessionID,
		TurnCount:            turnCount,
		PendingToolCalls:     nil,
		ToolResults:          results,
		ExecPolicy:           state.ExecPolicy,
		ApprovalCallback:     state.ApprovalCallback,
		StreamCallback:       state.StreamCallback,
		WorkingDirectory:     state.WorkingDirectory,
		SandboxMode:          state.SandboxMode,
		SandboxWritableRoots: state.SandboxWritableRoots,
		MCPClient:            state.MCPClient,
	}
}

func firstNonNilPolicy(perTurn, fallback toolcore.ExecPolicy) toolcore.ExecPolicy {
	if perTurn != nil {
		return perTurn
	}
	return fallback
}

func firstNonNilCallback(perTurn, fallback toolcore.ApprovalCallback) toolcore.ApprovalCallback {
	if perTurn != nil {
		return perTurn
	}
	return fallback
}
