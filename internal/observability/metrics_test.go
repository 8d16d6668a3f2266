package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolInvocation_CountsAndObservesDuration(t *testing.T) {
	m := NewMetrics(MetricsOptions{})

	m.RecordToolInvocation("fs_read", "success", 150*time.Millisecond)
	m.RecordToolInvocation("fs_read", "success", 200*time.Millisecond)
	m.RecordToolInvocation("shell", "error", 10*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.ToolInvocations))

	expected := `
		# HELP tool_invocations_total Total number of tool invocations by tool name and outcome
		# TYPE tool_invocations_total counter
		tool_invocations_total{status="error",tool="shell"} 1
		tool_invocations_total{status="success",tool="fs_read"} 2
	`
	require.NoError(t, testutil.CollectAndCompare(m.ToolInvocations, strings.NewReader(expected)))
}

func TestRecordLLMTokens_AccumulatesByLabelSet(t *testing.T) {
	m := NewMetrics(MetricsOptions{})

	m.RecordLLMTokens("anthropic", "claude-3-opus", "prompt", 100)
	m.RecordLLMTokens("anthropic", "claude-3-opus", "completion", 40)
	m.RecordLLMTokens("anthropic", "claude-3-opus", "completion", 25)

	expected := `
		# HELP llm_tokens_total Total number of tokens reported by remote tool/model calls
		# TYPE llm_tokens_total counter
		llm_tokens_total{model="claude-3-opus",provider="anthropic",token_type="completion"} 65
		llm_tokens_total{model="claude-3-opus",provider="anthropic",token_type="prompt"} 100
	`
	require.NoError(t, testutil.CollectAndCompare(m.LLMTokens, strings.NewReader(expected)))
}

func TestRecordLLMTokens_ZeroOrNegativeIgnored(t *testing.T) {
	m := NewMetrics(MetricsOptions{})
	m.RecordLLMTokens("anthropic", "claude-3-opus", "prompt", 0)
	m.RecordLLMTokens("anthropic", "claude-3-opus", "prompt", -5)
	assert.Equal(t, 0, testutil.CollectAndCount(m.LLMTokens))
}

func TestRecordToolInvocation_RedactsLabelByDefault(t *testing.T) {
	m := NewMetrics(MetricsOptions{})
	m.RecordToolInvocation("token=sk-ant-REDACTED", "success", time.Millisecond)

	metric := testutil.ToFloat64(m.ToolInvocations.WithLabelValues(
		"token=sk-ant-REDACTED", "success"))
	assert.Zero(t, metric, "the raw unsanitized label should never have been recorded")
}

func TestRecordToolInvocation_RedactionCanBeDisabled(t *testing.T) {
	m := NewMetrics(MetricsOptions{DisableRedaction: true})
	m.RecordToolInvocation("plain_tool", "success", time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolInvocations.WithLabelValues("plain_tool", "success")))
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	m := NewMetrics(MetricsOptions{})
	m.RecordToolInvocation("fs_read", "success", 10*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestNewMetrics_TwoInstancesDoNotCollide(t *testing.T) {
	a := NewMetrics(MetricsOptions{})
	b := NewMetrics(MetricsOptions{})
	a.RecordToolInvocation("x", "success", time.Millisecond)
	b.RecordToolInvocation("y", "success", time.Millisecond)
	assert.NotSame(t, a.Registry(), b.Registry())
}
