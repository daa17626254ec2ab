// Package recorder implements the three measurement modes. Each recorder
// drives one capture against a PageDriver and produces a Capture; it has no
// knowledge of sibling steps, sequencing is the flow session's job.
package recorder

import (
	"time"

	"gopkg.in/guregu/null.v3"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/lib"
	"go.beacon.dev/beacon/log"
	"go.beacon.dev/beacon/metrics"
)

// A Capture is the raw output of one mode invocation, before the flow
// session wraps it into an immutable step result.
type Capture struct {
	URL          string
	StartedAt    time.Time
	FinishedAt   time.Time
	Measurements []metrics.Measurement
	Score        null.Float

	Artifacts  *driver.Artifacts
	Navigation *driver.NavigationInfo
	Snapshot   *driver.DOMSnapshot
}

// Env bundles what every recorder needs.
type Env struct {
	Driver   driver.PageDriver
	Registry *metrics.Registry
	Builtin  *metrics.BuiltinMetrics
	Logger   *log.Logger
	Options  lib.Options
}
