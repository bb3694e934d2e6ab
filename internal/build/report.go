package build

import (
	"fmt"
	"io"
	"time"
)

// Outcome is the final status of one build invocation.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Failure describes one node that did not produce output.
type Failure struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Report summarizes one build invocation. Counts partition the graph: every
// node is rendered, skipped as unchanged, failed, or skipped because a
// dependency failed.
type Report struct {
	BuildID          string        `json:"build_id"`
	Outcome          Outcome       `json:"outcome"`
	Rendered         int           `json:"rendered"`
	SkippedUnchanged int           `json:"skipped_unchanged"`
	Failed           int           `json:"failed"`
	SkippedDeps      int           `json:"skipped_deps"`
	Failures         []Failure     `json:"failures,omitempty"`
	SourceCommit     string        `json:"source_commit,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// Succeeded reports whether every scheduled node rendered.
func (r *Report) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// Print writes a human-readable summary.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "build %s: %s in %s\n", r.BuildID, r.Outcome, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  rendered:          %d\n", r.Rendered)
	fmt.Fprintf(w, "  skipped unchanged: %d\n", r.SkippedUnchanged)
	if r.Failed > 0 || r.SkippedDeps > 0 {
		fmt.Fprintf(w, "  failed:            %d\n", r.Failed)
		fmt.Fprintf(w, "  skipped (deps):    %d\n", r.SkippedDeps)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  FAIL %s (%s): %s: %s\n", f.Path, f.Kind, f.Category, f.Message)
	}
}
