// Package metrics exposes the prometheus collectors of the summarization
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pagesum"

var (
	// SummariesStarted counts accepted summary requests.
	SummariesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summaries_started_total",
		Help:      "Summary requests accepted by the lifecycle controller.",
	})

	// SummariesCompleted counts summaries that reached the done state.
	SummariesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summaries_completed_total",
		Help:      "Summaries finished, by source (engine or cache).",
	}, []string{"source"})

	// SummariesFailed counts summaries that reached the error state.
	SummariesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summaries_failed_total",
		Help:      "Summaries that failed, by failure kind.",
	}, []string{"kind"})

	// EngineRetries counts transient engine failures that were retried.
	EngineRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_retries_total",
		Help:      "Transient engine failures retried after a reset.",
	})

	// EngineState reports the engine session state (0 absent, 1
	// initializing, 2 ready).
	EngineState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "engine_state",
		Help:      "Engine session state: 0 absent, 1 initializing, 2 ready.",
	})

	// ModelLoadProgress reports the last model-load progress in [0, 1].
	ModelLoadProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_load_progress",
		Help:      "Fraction of the model loaded during initialization.",
	})

	// HistoryItems reports the number of stored history items.
	HistoryItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_items",
		Help:      "Items currently kept in the summary history.",
	})

	// CacheEntries reports the number of cached summaries.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Entries currently kept in the summary cache.",
	})

	// CacheLookups counts cache lookups by result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Summary cache lookups, by result.",
	}, []string{"result"})

	// PersistFailures counts swallowed persistence errors.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Writes to the durable store that failed and were dropped.",
	})

	// TransportFailures counts failed coordinator requests by type.
	TransportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_failures_total",
		Help:      "Coordinator requests that failed, by request type.",
	}, []string{"type"})

	// ConnectedClients reports the number of open websocket clients.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Websocket clients attached to the gateway.",
	})
)
