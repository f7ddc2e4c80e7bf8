package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the meeting pipeline.
type Metrics struct {
	// Calendar sync
	SyncRunsTotal  *prometheus.CounterVec
	SyncUsersTotal *prometheus.CounterVec

	// Bot dispatch
	DispatchTotal *prometheus.CounterVec

	// Webhook ingestion
	WebhookEventsTotal  *prometheus.CounterVec
	PipelineStepSeconds *prometheus.HistogramVec

	// Retrieval
	IndexedChunksTotal prometheus.Counter
	RAGQueriesTotal    *prometheus.CounterVec
}

// Default registers the collectors with the default Prometheus registerer.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New registers the collectors with reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingbot_sync_runs_total",
				Help: "Scheduler ticks by result",
			},
			[]string{"result"},
		),
		SyncUsersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingbot_sync_users_total",
				Help: "Per-user calendar syncs by result",
			},
			[]string{"result"},
		),
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingbot_dispatch_total",
				Help: "Bot dispatch attempts by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingbot_webhook_events_total",
				Help: "Webhook deliveries by event type and outcome",
			},
			[]string{"event", "outcome"},
		),
		PipelineStepSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetingbot_pipeline_step_seconds",
				Help:    "Ingestion pipeline step latency",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"step"},
		),
		IndexedChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meetingbot_index_chunks_total",
				Help: "Transcript chunks written to the vector index",
			},
		),
		RAGQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingbot_rag_queries_total",
				Help: "Retrieval queries by scope and result",
			},
			[]string{"scope", "result"},
		),
	}
}

// NewNop returns collectors bound to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
