package engine

import (
	"time"
)

// Stage names the pipeline step an item was processed in.
type Stage string

const (
	StageLoad       Stage = "load"
	StageActivation Stage = "activation"
	StageReconcile  Stage = "reconciliation"
	StageNotify     Stage = "notification"
)

// Failure is one item that could not be processed. The run carries on.
type Failure struct {
	Stage     Stage
	Item      string // e.g. "member:ana-..." or "contributor:..."
	Reason    string
	Retryable bool
	Err       error `json:"-"`
}

func newFailure(stage Stage, item string, err error) Failure {
	return Failure{Stage: stage, Item: item, Reason: err.Error(), Retryable: IsRetryable(err), Err: err}
}

// RunReport summarises one pipeline run. It is never empty on success: the
// counts always say what happened, even when nothing needed doing.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Today      Day

	EventsCreated       int
	EventsAlreadyActive int

	ContributorsAdded   int
	ContributorsUpdated int
	ContributorsSkipped int

	EmailsSent   int
	EmailsFailed int

	Failures []Failure
}

// OK returns true if no item failed.
func (r *RunReport) OK() bool { return len(r.Failures) == 0 }

func (r *RunReport) fail(f Failure) { r.Failures = append(r.Failures, f) }
