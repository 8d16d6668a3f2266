package observability

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_DisabledNeverCallsSink(t *testing.T) {
	called := false
	r := NewRecorder(RecorderOptions{
		Enabled: false,
		Sink:    TraceSinkFunc(func(ctx context.Context, rec TraceRecord) error { called = true; return nil }),
	})

	b := r.Start("sess-1", 1, "", "", 0)
	b.AddNode("fs_read", time.Now(), time.Now(), true)
	require.NoError(t, b.Finish(context.Background(), map[string]any{"k": "v"}))
	assert.False(t, called)
}

func TestRecorder_EnabledPersistsRecordWithRootID(t *testing.T) {
	var captured TraceRecord
	r := NewRecorder(RecorderOptions{
		Enabled: true,
		Sink: TraceSinkFunc(func(ctx context.Context, rec TraceRecord) error {
			captured = rec
			return nil
		}),
	})

	b := r.Start("sess-1", 2, "", "", 0)
	start := time.Now()
	b.AddNode("shell", start, start.Add(50*time.Millisecond), true)
	require.NoError(t, b.Finish(context.Background(), nil))

	assert.Equal(t, "sess-1", captured.SessionID)
	assert.Equal(t, 2, captured.TurnCount)
	assert.Equal(t, captured.ExecutionID, captured.RootExecutionID)
	assert.Empty(t, captured.ParentExecutionID)
	assert.Len(t, captured.Nodes, 1)
	assert.Equal(t, 50*time.Millisecond, captured.Nodes[0].Duration())
}

func TestRecorder_NestedInvocationCarriesParentAndDepth(t *testing.T) {
	r := NewRecorder(RecorderOptions{Enabled: true, Sink: TraceSinkFunc(func(context.Context, TraceRecord) error { return nil })})

	root := r.Start("sess-1", 1, "", "", 0)
	child := r.Start("sess-1", 1, root.ExecutionID(), root.RootExecutionID(), 1)

	assert.Equal(t, root.ExecutionID(), child.rec.ParentExecutionID)
	assert.Equal(t, root.RootExecutionID(), child.RootExecutionID())
	assert.Equal(t, 1, child.rec.Depth)
}

func TestBuilder_FinishSanitizesStateByDefault(t *testing.T) {
	var captured TraceRecord
	r := NewRecorder(RecorderOptions{
		Enabled: true,
		Sink: TraceSinkFunc(func(ctx context.Context, rec TraceRecord) error {
			captured = rec
			return nil
		}),
	})

	b := r.Start("sess-1", 1, "", "", 0)
	require.NoError(t, b.Finish(context.Background(), map[string]any{
		"note": "token=sk-ant-REDACTED",
	}))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(captured.State, &decoded))
	assert.Contains(t, decoded["note"], "[REDACTED]")
	assert.NotContains(t, decoded["note"], "sk-ant-REDACTED")
}

func TestBuilder_FinishSkipsRedactionWhenDisabled(t *testing.T) {
	var captured TraceRecord
	r := NewRecorder(RecorderOptions{
		Enabled:               true,
		DisableStateRedaction: true,
		Sink: TraceSinkFunc(func(ctx context.Context, rec TraceRecord) error {
			captured = rec
			return nil
		}),
	})

	b := r.Start("sess-1", 1, "", "", 0)
	require.NoError(t, b.Finish(context.Background(), map[string]any{"note": "plain text"}))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(captured.State, &decoded))
	assert.Equal(t, "plain text", decoded["note"])
}
