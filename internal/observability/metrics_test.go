package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotaguard.prom")
	m := NewRunMetrics(path)

	resetsAt := time.Unix(1_700_000_000, 0)
	m.ObserveWindow("five_hour", 92.5, &resetsAt)
	m.ObserveDecision("wait", 3*time.Minute, time.Unix(1_699_999_000, 0))

	require.NoError(t, m.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, `quotaguard_utilization_percent{window="five_hour"} 92.5`)
	require.Contains(t, text, `quotaguard_decision{kind="wait"} 1`)
	require.Contains(t, text, "quotaguard_wait_seconds 180")
	require.True(t, strings.Contains(text, "quotaguard_resets_at_timestamp_seconds"))
}

func TestRunMetricsDecisionReset(t *testing.T) {
	m := NewRunMetrics("")
	m.ObserveDecision("wait", time.Minute, time.Now())
	m.ObserveDecision("proceed", 0, time.Now())

	require.Equal(t, 1, testutil.CollectAndCount(m.decision))
	require.Equal(t, float64(1), testutil.ToFloat64(m.decision.WithLabelValues("proceed")))
	require.NoError(t, m.Flush())
}

func TestRunMetricsNil(t *testing.T) {
	var m *RunMetrics
	m.ObserveWindow("five_hour", 10, nil)
	m.ObserveDecision("proceed", 0, time.Now())
	require.NoError(t, m.Flush())
}
