package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/instance"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func escalation() *domain.ProcessDefinition {
	return &domain.ProcessDefinition{ID: "escalation", Nodes: []*domain.NodeDefinition{
		{ID: "start", Kind: domain.KindStart, Next: []string{"review"}},
		{ID: "review", Kind: domain.KindTask, Next: []string{"end"}},
		{ID: "escalate", Kind: domain.KindBoundaryEvent, AttachedTo: "review", EventType: "Escalate"},
		{ID: "end", Kind: domain.KindEnd},
	}}
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	ctx := context.Background()

	pi := instance.New(1, escalation(), instance.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, pi.Start(ctx))
	require.NoError(t, pi.SignalEvent(ctx, "Escalate", nil))
	require.NoError(t, pi.SignalEvent(ctx, "Escalate", nil))
	require.NoError(t, pi.SignalEvent(ctx, domain.TimerSignal(99), nil))

	expected := `
# HELP tendril_signals_total Total number of signals broadcast
# TYPE tendril_signals_total counter
tendril_signals_total{signal="Escalate"} 2
tendril_signals_total{signal="Timer"} 1
# HELP tendril_signals_unrouted_total Signals broadcast with no registered listener
# TYPE tendril_signals_unrouted_total counter
tendril_signals_unrouted_total{signal="Escalate"} 1
tendril_signals_unrouted_total{signal="Timer"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected),
		"tendril_signals_total", "tendril_signals_unrouted_total"))

	// start, review, escalate
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "tendril_node_triggered_total"))
	// start, escalate
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "tendril_node_completed_total"))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, slog.LevelDebug, logging.FormatText)
	ctx := context.Background()

	pi := instance.New(1, escalation(), instance.WithLifecycleHooks(observability.LoggingHooks(logger)))
	require.NoError(t, pi.Start(ctx))
	pi.Abort(ctx)

	out := buf.String()
	assert.Contains(t, out, "node_triggered")
	assert.Contains(t, out, "node_cancelled")
	assert.Contains(t, out, "node_id=review")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.Hooks().OnNodeTriggered(context.Background(), &domain.NodeEvent{NodeID: "n", NodeKind: domain.KindTask})

	rec := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tendril_node_triggered_total{kind="task",node_id="n"} 1`)
}
