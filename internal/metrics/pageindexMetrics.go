package metrics

import (
	"context"

	"github.com/akolanti/PageIndexAPI/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pageindex_llm_call_duration_seconds",
	Help:    "LLM call latency by calling component and model.",
	Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 40, 90},
}, []string{"component", "model", "status"})

var llmErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pageindex_llm_errors_total",
	Help: "Pipeline errors reported to telemetry, by component and type.",
}, []string{"component", "error_type"})

var searchConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pageindex_search_confidence",
	Help:    "Confidence of completed tree searches.",
	Buckets: prometheus.LinearBuckets(0, 0.1, 11),
})

var treeNodes = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pageindex_tree_nodes",
	Help:    "Node count of generated trees.",
	Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
})

// Sink records telemetry events as Prometheus series.
type Sink struct{}

func NewSink() *Sink {
	return &Sink{}
}

func (Sink) LogLLMCall(_ context.Context, call telemetry.LLMCall) {
	status := "success"
	if !call.Success {
		status = "failed"
	}
	llmLatency.WithLabelValues(call.Component, call.Model, status).Observe(call.Latency.Seconds())
}

func (Sink) LogError(_ context.Context, event telemetry.ErrorEvent) {
	llmErrors.WithLabelValues(event.Component, event.ErrorType).Inc()
}

func ObserveSearchConfidence(confidence float64) {
	searchConfidence.Observe(confidence)
}

func ObserveTreeNodes(count int) {
	treeNodes.Observe(float64(count))
}
