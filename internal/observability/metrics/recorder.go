// Package metrics provides the Prometheus collectors used across nanolume.
package metrics

// Recorder is the minimal metrics surface components depend on, so they can
// be tested without a Prometheus registry.
type Recorder interface {
	// RecordOperation counts an operation outcome, e.g. ("simulate", "success").
	RecordOperation(operation, status string)

	// RecordDuration observes how long an operation took, in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError counts a failure by category, e.g. ("sweep", "validation").
	RecordError(operation, errorType string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}
