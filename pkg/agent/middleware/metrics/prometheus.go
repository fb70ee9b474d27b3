package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics
// on its own registry, so one process can hold several independent recorders.
type PrometheusRecorder struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	tokensTotal       *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	imageEditsTotal   *prometheus.CounterVec
	imageEditDuration *prometheus.HistogramVec
	negotiationRounds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusRecorder{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, participant and status",
			},
			[]string{"model", "participant", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Estimated number of tokens used in LLM requests",
			},
			[]string{"model", "participant", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "participant"},
		),
		imageEditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_edits_total",
				Help: "Total number of image-edit steps by model and status",
			},
			[]string{"model", "status"},
		),
		imageEditDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "image_edit_duration_seconds",
				Help:    "Duration of image-edit steps in seconds",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"model"},
		),
		negotiationRounds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "negotiation_rounds",
				Help:    "Messages exchanged per layout negotiation",
				Buckets: prometheus.LinearBuckets(2, 2, 10),
			},
			[]string{"outcome"},
		),
	}
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(
	model, participant string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	p.requestsTotal.WithLabelValues(model, participant, status(success), errorType).Inc()

	if success {
		p.tokensTotal.WithLabelValues(model, participant, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, participant, "completion").Add(float64(completionTokens))
	}

	p.requestDuration.WithLabelValues(model, participant).Observe(duration.Seconds())
}

// ObserveImageEdit records one image-edit step.
func (p *PrometheusRecorder) ObserveImageEdit(model string, success bool, duration time.Duration) {
	p.imageEditsTotal.WithLabelValues(model, status(success)).Inc()
	p.imageEditDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveNegotiation records the length and outcome of one negotiation.
func (p *PrometheusRecorder) ObserveNegotiation(outcome string, messages int) {
	p.negotiationRounds.WithLabelValues(outcome).Observe(float64(messages))
}

// Gatherer exposes the recorder's registry.
func (p *PrometheusRecorder) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteTextfile writes all metrics in the text exposition format, creating the
// parent directory. The format is what node_exporter's textfile collector reads.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
