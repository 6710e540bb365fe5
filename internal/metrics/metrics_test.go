package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherValue returns the value of the first metric in family name whose
// labels include outcome (empty outcome matches any), or -1 when absent.
func gatherValue(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := outcome == ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					match = true
				}
			}
			if !match {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
		}
	}
	return -1
}

func Test_Metrics_ObserveIngest(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIngest(OutcomeOK, 12, 2*time.Second)
	m.ObserveIngest(OutcomePartial, 3, time.Second)

	if v := gatherValue(t, reg, "ragpipe_ingest_documents_total", OutcomeOK); v != 1 {
		t.Errorf("ok ingest counter = %v, want 1", v)
	}
	if v := gatherValue(t, reg, "ragpipe_ingest_documents_total", OutcomePartial); v != 1 {
		t.Errorf("partial ingest counter = %v, want 1", v)
	}
	if v := gatherValue(t, reg, "ragpipe_ingest_chunks_total", ""); v != 15 {
		t.Errorf("chunk counter = %v, want 15", v)
	}
}

func Test_Metrics_ObserveRetrieval(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRetrieval(OutcomeOK, 5, 50*time.Millisecond)
	m.ObserveRetrieval(OutcomeError, 0, 10*time.Millisecond)

	if v := gatherValue(t, reg, "ragpipe_retrieval_requests_total", OutcomeOK); v != 1 {
		t.Errorf("ok retrieval counter = %v, want 1", v)
	}
	if v := gatherValue(t, reg, "ragpipe_retrieval_duration_seconds", ""); v != 2 {
		t.Errorf("duration sample count = %v, want 2", v)
	}
}

func Test_Metrics_ObserveEmbeddingBatch(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEmbeddingBatch(OutcomeOK)
	m.ObserveEmbeddingBatch(OutcomeOK)
	m.ObserveEmbeddingBatch(OutcomeError)

	if v := gatherValue(t, reg, "ragpipe_embedding_batches_total", OutcomeOK); v != 2 {
		t.Errorf("ok batch counter = %v, want 2", v)
	}
	if v := gatherValue(t, reg, "ragpipe_embedding_batches_total", OutcomeError); v != 1 {
		t.Errorf("error batch counter = %v, want 1", v)
	}
}

func Test_Metrics_FreshRegistryIsolated(t *testing.T) {
	t.Parallel()
	// Two instances against separate registries must not conflict.
	m1 := New(prometheus.NewRegistry())
	m2 := New(prometheus.NewRegistry())
	m1.ObserveIngest(OutcomeOK, 1, time.Second)
	m2.ObserveIngest(OutcomeOK, 1, time.Second)
}
