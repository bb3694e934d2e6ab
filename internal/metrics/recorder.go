// Package metrics defines observability hooks for build runs. The default
// NoopRecorder keeps metrics strictly optional; watch mode wires the
// Prometheus implementation when configured.
package metrics

import "time"

// ResultLabel enumerates render task result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines observability hooks for build and node metrics.
// Implementations must tolerate concurrent calls from render workers.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed|canceled
	IncNodeResult(kind string, result ResultLabel)
	SetDirtyNodes(n int)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)             {}
func (NoopRecorder) IncNodeResult(string, ResultLabel)  {}
func (NoopRecorder) SetDirtyNodes(int)                  {}
func (NoopRecorder) SetWorkers(int)                     {}
