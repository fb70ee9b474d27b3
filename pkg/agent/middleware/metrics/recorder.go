// Package metrics provides metrics recording for LLM calls, image edits and negotiations.
package metrics

import "time"

// Recorder defines the interface for recording run metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed LLM request.
	ObserveRequest(
		model, participant string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// ObserveImageEdit records one image-edit call, fetch included.
	ObserveImageEdit(model string, success bool, duration time.Duration)

	// ObserveNegotiation records how many messages a negotiation took and how it ended.
	ObserveNegotiation(outcome string, messages int)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(_, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

// ObserveImageEdit does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveImageEdit(_ string, _ bool, _ time.Duration) {}

// ObserveNegotiation does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveNegotiation(_ string, _ int) {}
