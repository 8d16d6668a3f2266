// Package scheduler implements the two-phase approval-then-fan-out
// scheduler: phase 1 walks a turn's pending tool calls sequentially through
// the approval pipeline; phase 2 dispatches the accepted calls concurrently,
// bounded by a semaphore, sanitizing and truncating each raw output before
// it becomes a ToolResult.
//
// Uses a semaphore+WaitGroup+per-call-goroutine+retry-timeout pattern for
// the fan-out phase, split into an approval-gated two-phase model rather
// than a single dispatch pass.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joweeba/dTOOL/internal/approval"
	"github.com/joweeba/dTOOL/internal/sanitize"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// Dispatcher executes a single approved ToolCall, routing it to whichever
// built-in or remote tool the name resolves to. Implementations are not
// expected to sanitize or truncate output; the scheduler does that.
type Dispatcher interface {
	Dispatch(ctx context.Context, call toolcore.ToolCall) (*toolcore.ToolResult, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, call toolcore.ToolCall) (*toolcore.ToolResult, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, call toolcore.ToolCall) (*toolcore.ToolResult, error) {
	return f(ctx, call)
}

// Config configures scheduler behavior. MaxParallelTasks bounds fan-out
// concurrency; 0 disables the cap.
type Config struct {
	// MaxParallelTasks bounds how many accepted calls may dispatch at once.
	// Default 64; 0 means unbounded.
	MaxParallelTasks int
	// PerToolTimeout bounds a single dispatch attempt. Default 30s.
	PerToolTimeout time.Duration
	// MaxAttemptsByTool overrides MaxAttempts per tool name; tools absent
	// from the map use MaxAttempts (default 1 — no implicit retry).
	MaxAttemptsByTool map[string]int
	// MaxAttempts is the default attempt count for any tool not named in
	// MaxAttemptsByTool. Default 1.
	MaxAttempts int
	// RetryBackoff is the context-aware sleep between attempts.
	RetryBackoff time.Duration
	// MaxOutputBytes bounds ToolResult.Output; 0 uses sanitize.DefaultMaxOutputBytes.
	MaxOutputBytes int
}

// DefaultConfig returns the baseline defaults: 64-way concurrency, 30s
// per-tool timeout, no implicit retry.
func DefaultConfig() Config {
	return Config{
		MaxParallelTasks: 64,
		PerToolTimeout:   30 * time.Second,
		MaxAttempts:      1,
	}
}

// Scheduler runs the two-phase approval-then-dispatch algorithm over a
// turn's pending tool calls.
type Scheduler struct {
	pipeline   *approval.Pipeline
	dispatcher Dispatcher
	sink       toolcore.StreamCallback
	config     Config
}

// New builds a Scheduler. config zero-values are filled with DefaultConfig's
// equivalents.
func New(pipeline *approval.Pipeline, dispatcher Dispatcher, sink toolcore.StreamCallback, config Config) *Scheduler {
	if config.MaxParallelTasks == 0 {
		config.MaxParallelTasks = DefaultConfig().MaxParallelTasks
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = DefaultConfig().PerToolTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Scheduler{pipeline: pipeline, dispatcher: dispatcher, sink: sink, config: config}
}

// Run executes phase 1 (sequential approval) then phase 2 (parallel
// dispatch) over calls, returning one ToolResult per call. Results may be in
// a different order than calls; callers must match by ToolCallID.
func (s *Scheduler) Run(ctx context.Context, sessionID string, calls []toolcore.ToolCall, mode toolcore.SandboxMode) []toolcore.ToolResult {
	accepted := make([]toolcore.ToolCall, 0, len(calls))
	results := make([]toolcore.ToolResult, 0, len(calls))

	for _, call := range calls {
		rejection, proceed := s.pipeline.Evaluate(ctx, sessionID, call, mode)
		if proceed {
			accepted = append(accepted, call)
			continue
		}
		results = append(results, *rejection)
	}

	if len(accepted) == 0 {
		return results
	}

	dispatched := s.dispatchAll(ctx, sessionID, accepted)
	results = append(results, dispatched...)
	return results
}

func (s *Scheduler) dispatchAll(ctx context.Context, sessionID string, calls []toolcore.ToolCall) []toolcore.ToolResult {
	results := make([]toolcore.ToolResult, 0, len(calls))
	resultsMu := sync.Mutex{}

	var sem chan struct{}
	if s.config.MaxParallelTasks > 0 {
		sem = make(chan struct{}, s.config.MaxParallelTasks)
	}

	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(call toolcore.ToolCall) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					resultsMu.Lock()
					results = append(results, toolcore.ToolResult{
						ToolCallID: call.ID,
						Tool:       call.Tool,
						Output:     "tool execution canceled before dispatch",
						Success:    false,
					})
					resultsMu.Unlock()
					return
				}
			}

			result := s.dispatchOne(ctx, sessionID, call)

			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()
		}(call)
	}
	wg.Wait()
	return results
}

func (s *Scheduler) dispatchOne(ctx context.Context, sessionID string, call toolcore.ToolCall) toolcore.ToolResult {
	maxAttempts := s.config.MaxAttempts
	if n, ok := s.config.MaxAttemptsByTool[call.Tool]; ok && n > 0 {
		maxAttempts = n
	}

	var result toolcore.ToolResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = s.attemptOnce(ctx, sessionID, call, attempt)
		if result.Success {
			break
		}
		if attempt < maxAttempts && s.config.RetryBackoff > 0 {
			select {
			case <-time.After(s.config.RetryBackoff):
			case <-ctx.Done():
				return toolcore.ToolResult{ToolCallID: call.ID, Tool: call.Tool, Output: "tool execution canceled during retry backoff", Success: false}
			}
		}
	}
	return result
}

func (s *Scheduler) attemptOnce(ctx context.Context, sessionID string, call toolcore.ToolCall, attempt int) toolcore.ToolResult {
	toolcore.Emit(s.sink, toolcore.ExecutionEvent{
		Kind: toolcore.EventToolExecutionStart, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool,
	})

	start := time.Now()
	toolCtx, cancel := context.WithTimeout(ctx, s.config.PerToolTimeout)
	defer cancel()

	raw, err := s.dispatcher.Dispatch(toolCtx, call)
	duration := time.Since(start)

	var output string
	var success bool
	switch {
	case err != nil:
		if toolCtx.Err() != nil {
			output = fmt.Sprintf("tool execution timed out after %s", s.config.PerToolTimeout)
		} else {
			output = err.Error()
		}
		success = false
	case raw == nil:
		output = "tool returned no result"
		success = false
	default:
		output = raw.Output
		success = raw.Success
	}

	preview := output
	if len(preview) > 200 {
		preview = preview[:200]
	}
	toolcore.Emit(s.sink, toolcore.ExecutionEvent{
		Kind: toolcore.EventToolExecutionComplete, SessionID: sessionID, ToolCallID: call.ID, Tool: call.Tool,
		Success: success, DurationMs: duration.Milliseconds(), OutputPreview: preview,
	})

	sanitized := sanitize.Sanitize(output)
	truncated := sanitize.Truncate(sanitized, s.config.MaxOutputBytes)

	return toolcore.ToolResult{
		ToolCallID: call.ID,
		Tool:       call.Tool,
		Output:     truncated,
		Success:    success,
		DurationMs: duration.Milliseconds(),
	}
}
