package flow

import (
	"time"

	"gopkg.in/guregu/null.v3"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/lib"
	"go.beacon.dev/beacon/metrics"
)

// A StepResult is the immutable output of one mode invocation. The session
// only ever appends step results; none is modified after capture.
type StepResult struct {
	ID         string    `json:"id"`
	Mode       Mode      `json:"mode"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Measurements []metrics.Measurement `json:"measurements"`

	// Score is the overall weighted score. Only navigation steps carry one.
	Score null.Float `json:"score"`

	// Raw capture artifacts. Excluded from the persisted document; reports
	// carry the derived measurements instead.
	Artifacts *driver.Artifacts   `json:"-"`
	Snapshot  *driver.DOMSnapshot `json:"-"`
}

// Duration is the wall-clock span the step covered.
func (r StepResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// A FlowResult is the ordered aggregation of all step results in a flow,
// plus the session-wide configuration they were captured under. It is
// derived on demand and never mutates the session.
type FlowResult struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	Options   lib.Options  `json:"options"`
	Steps     []StepResult `json:"steps"`
}
