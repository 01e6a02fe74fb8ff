package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	nodesTriggered *prometheus.CounterVec
	nodesCompleted *prometheus.CounterVec
	nodesCancelled *prometheus.CounterVec
	signals        *prometheus.CounterVec
	unrouted       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	nodeCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendril",
				Name:      name,
				Help:      help,
			},
			[]string{"node_id", "kind"},
		)
	}

	m := &Metrics{
		nodesTriggered: nodeCounter("node_triggered_total", "Total number of node instances triggered"),
		nodesCompleted: nodeCounter("node_completed_total", "Total number of node instances completed"),
		nodesCancelled: nodeCounter("node_cancelled_total", "Total number of node instances cancelled"),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendril",
				Name:      "signals_total",
				Help:      "Total number of signals broadcast",
			},
			[]string{"signal"},
		),
		unrouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendril",
				Name:      "signals_unrouted_total",
				Help:      "Signals broadcast with no registered listener",
			},
			[]string{"signal"},
		),
	}
	reg.MustRegister(m.nodesTriggered, m.nodesCompleted, m.nodesCancelled, m.signals, m.unrouted)
	return m
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeTriggered: func(_ context.Context, e *domain.NodeEvent) {
			m.nodesTriggered.WithLabelValues(e.NodeID, string(e.NodeKind)).Inc()
		},
		OnNodeCompleted: func(_ context.Context, e *domain.NodeEvent) {
			m.nodesCompleted.WithLabelValues(e.NodeID, string(e.NodeKind)).Inc()
		},
		OnNodeCancelled: func(_ context.Context, e *domain.NodeEvent) {
			m.nodesCancelled.WithLabelValues(e.NodeID, string(e.NodeKind)).Inc()
		},
		OnSignal: func(_ context.Context, e *domain.SignalEvent) {
			label := signalLabel(e.SignalType)
			m.signals.WithLabelValues(label).Inc()
			if e.Listeners == 0 {
				m.unrouted.WithLabelValues(label).Inc()
			}
		},
	}
}

// signalLabel folds per-instance timer signals into one label value.
func signalLabel(signalType string) string {
	if domain.IsTimerSignal(signalType) {
		return domain.SignalTimer
	}
	return signalType
}

// LoggingHooks logs every lifecycle event at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	logNode := func(ctx context.Context, e *domain.NodeEvent) {
		logger.DebugContext(ctx, string(e.Type),
			"process_instance", e.ProcessInstanceID,
			"node_instance", e.NodeInstanceID,
			"node_id", e.NodeID,
			"kind", e.NodeKind,
		)
	}
	return domain.LifecycleHooks{
		OnNodeTriggered: logNode,
		OnNodeCompleted: logNode,
		OnNodeCancelled: logNode,
		OnSignal: func(ctx context.Context, e *domain.SignalEvent) {
			logger.DebugContext(ctx, string(e.Type),
				"process_instance", e.ProcessInstanceID,
				"signal", e.SignalType,
				"listeners", e.Listeners,
			)
		},
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
