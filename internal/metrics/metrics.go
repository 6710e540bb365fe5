// Package metrics registers the Prometheus metrics for the ingestion and
// retrieval pipelines and exposes typed observation helpers to the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared across registrations.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics owned by the pipeline. A single
// instance is created at engine init and wired through; tests inject a fresh
// prometheus.Registry without polluting the default one.
type Metrics struct {
	// ingestTotal counts completed document ingestions, partitioned by
	// outcome: "ok", "partial", or "error".
	ingestTotal *prometheus.CounterVec

	// ingestDurationSeconds records the wall-clock duration of each document
	// ingestion from parse start to final status.
	ingestDurationSeconds *prometheus.HistogramVec

	// chunksIngestedTotal counts chunks committed to the vector store.
	chunksIngestedTotal prometheus.Counter

	// embeddingBatchesTotal counts embedding batches, partitioned by outcome.
	embeddingBatchesTotal *prometheus.CounterVec

	// retrievalTotal counts retrieval calls, partitioned by outcome.
	retrievalTotal *prometheus.CounterVec

	// retrievalDurationSeconds records end-to-end retrieval latency.
	retrievalDurationSeconds prometheus.Histogram

	// retrievalChunks records the number of chunks returned per retrieval.
	retrievalChunks prometheus.Histogram
}

// New registers all pipeline metrics against reg and returns the populated
// Metrics. promauto.With(reg) is used so that each call registers into the
// provided registry rather than the global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragpipe",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of document ingestions completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragpipe",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of document ingestion from parse to final status.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		chunksIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragpipe",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks committed to the vector store.",
		}),

		embeddingBatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragpipe",
			Subsystem: "embedding",
			Name:      "batches_total",
			Help:      "Total number of embedding batches sent, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragpipe",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of retrieval calls, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragpipe",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "End-to-end latency of retrieval calls.",
			Buckets:   prometheus.DefBuckets,
		}),

		retrievalChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragpipe",
			Subsystem: "retrieval",
			Name:      "chunks_returned",
			Help:      "Number of chunks returned per retrieval call.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
}

// ObserveIngest records one completed document ingestion.
func (m *Metrics) ObserveIngest(outcome string, chunks int, d time.Duration) {
	m.ingestTotal.WithLabelValues(outcome).Inc()
	m.ingestDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
	m.chunksIngestedTotal.Add(float64(chunks))
}

// ObserveEmbeddingBatch records one embedding batch send.
func (m *Metrics) ObserveEmbeddingBatch(outcome string) {
	m.embeddingBatchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetrieval records one retrieval call.
func (m *Metrics) ObserveRetrieval(outcome string, chunks int, d time.Duration) {
	m.retrievalTotal.WithLabelValues(outcome).Inc()
	m.retrievalDurationSeconds.Observe(d.Seconds())
	m.retrievalChunks.Observe(float64(chunks))
}
