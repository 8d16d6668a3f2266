package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joweeba/dTOOL/internal/sanitize"
)

// TraceNode is one ordered timing entry within a TraceRecord: a dispatched
// tool call or a nested agent invocation.
type TraceNode struct {
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
}

// Duration returns how long the node ran.
func (n TraceNode) Duration() time.Duration {
	return n.FinishedAt.Sub(n.StartedAt)
}

// TraceRecord is the append-only record persisted for one agent turn.
// ParentExecutionID/RootExecutionID/Depth are only set for nested agent
// invocations (a tool call that itself runs a sub-turn); a top-level turn
// leaves them at their zero value, with RootExecutionID equal to its own
// ExecutionID.
type TraceRecord struct {
	ExecutionID       string          `json:"execution_id"`
	ParentExecutionID string          `json:"parent_execution_id,omitempty"`
	RootExecutionID   string          `json:"root_execution_id"`
	Depth             int             `json:"depth,omitempty"`
	SessionID         string          `json:"session_id"`
	TurnCount         int             `json:"turn_count"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	Nodes             []TraceNode     `json:"nodes"`
	State             json.RawMessage `json:"state,omitempty"`
}

// TraceSink persists a completed TraceRecord. Implementations should not
// perform unbounded work synchronously; Recorder.Finish calls Persist
// inline and propagates its error.
type TraceSink interface {
	Persist(ctx context.Context, rec TraceRecord) error
}

// TraceSinkFunc adapts a function to TraceSink.
type TraceSinkFunc func(ctx context.Context, rec TraceRecord) error

// Persist implements TraceSink.
func (f TraceSinkFunc) Persist(ctx context.Context, rec TraceRecord) error {
	return f(ctx, rec)
}

// Recorder builds and persists TraceRecords. Persistence is opt-in: a
// Recorder with Enabled false (the default RecorderOptions zero value)
// never calls its sink, so a turn with tracing off pays only the cost of
// appending timings to an in-memory slice.
type Recorder struct {
	enabled     bool
	sink        TraceSink
	redactState bool
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Enabled turns on persistence via Sink. Default off.
	Enabled bool
	// Sink receives completed records. Required when Enabled is true.
	Sink TraceSink
	// DisableStateRedaction skips sanitizing the final state snapshot.
	// Redaction is on by default.
	DisableStateRedaction bool
}

// NewRecorder builds a Recorder from options.
func NewRecorder(opts RecorderOptions) *Recorder {
	return &Recorder{
		enabled:     opts.Enabled && opts.Sink != nil,
		sink:        opts.Sink,
		redactState: !opts.DisableStateRedaction,
	}
}

// Builder accumulates the nodes of one in-flight turn before it is
// finished and (if the owning Recorder is enabled) persisted.
type Builder struct {
	recorder *Recorder
	rec      TraceRecord
}

// Start begins a new trace for one turn. parentExecutionID and
// rootExecutionID are empty for a top-level turn; when non-empty, depth
// should be the parent's depth + 1.
func (r *Recorder) Start(sessionID string, turnCount int, parentExecutionID, rootExecutionID string, depth int) *Builder {
	id := uuid.NewString()
	root := rootExecutionID
	if root == "" {
		root = id
	}
	return &Builder{
		recorder: r,
		rec: TraceRecord{
			ExecutionID:       id,
			ParentExecutionID: parentExecutionID,
			RootExecutionID:   root,
			Depth:             depth,
			SessionID:         sessionID,
			TurnCount:         turnCount,
			StartedAt:         time.Now(),
		},
	}
}

// ExecutionID returns the id assigned to this in-flight trace, for callers
// that need to pass it down as a child's parentExecutionID.
func (b *Builder) ExecutionID() string {
	return b.rec.ExecutionID
}

// RootExecutionID returns the root id of this trace's invocation chain.
func (b *Builder) RootExecutionID() string {
	return b.rec.RootExecutionID
}

// AddNode appends one ordered per-node timing entry.
func (b *Builder) AddNode(name string, startedAt, finishedAt time.Time, success bool) {
	b.rec.Nodes = append(b.rec.Nodes, TraceNode{
		Name:       name,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Success:    success,
	})
}

// Finish marks the trace complete, attaches the final state snapshot, and
// persists it through the owning Recorder's sink if tracing is enabled.
// state is marshaled to JSON and, unless redaction was disabled, every leaf
// string is sanitized before being attached to the record.
func (b *Builder) Finish(ctx context.Context, state any) error {
	b.rec.FinishedAt = time.Now()
	if b.recorder == nil || !b.recorder.enabled {
		return nil
	}

	if state != nil {
		raw, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("observability: marshal trace state: %w", err)
		}
		if b.recorder.redactState {
			raw, err = sanitize.SanitizeRawJSON(raw, sanitize.Options{})
			if err != nil {
				return fmt.Errorf("observability: sanitize trace state: %w", err)
			}
		}
		b.rec.State = raw
	}

	return b.recorder.sink.Persist(ctx, b.rec)
}
