package recorder

import (
	"context"
	"fmt"
	"time"

	"go.beacon.dev/beacon/driver"
)

// A Timespan records an arbitrary caller-bounded interval, typically
// containing interactions. It yields only range measurements: no page-load
// moments and no overall score.
type Timespan struct {
	env     Env
	started time.Time
}

// StartTimespan begins capturing immediately. The returned Timespan must be
// ended by Stop; only one may be active per driver at a time, which the flow
// session's state machine enforces.
func StartTimespan(ctx context.Context, env Env) (*Timespan, error) {
	opts := driver.InstrumentationOptions{Trace: true, Network: true}
	if err := env.Driver.StartInstrumentation(ctx, opts); err != nil {
		return nil, fmt.Errorf("starting instrumentation: %w", err)
	}
	env.Logger.Debugf("recorder:timespan", "timespan started")
	return &Timespan{env: env, started: time.Now()}, nil
}

// Stop finalizes the interval and derives its measurements.
func (t *Timespan) Stop(ctx context.Context) (*Capture, error) {
	art, err := t.env.Driver.StopInstrumentation(ctx)
	if err != nil {
		return nil, fmt.Errorf("stopping instrumentation: %w", err)
	}
	c := &Capture{
		StartedAt:  t.started,
		FinishedAt: time.Now(),
		Artifacts:  art,
	}
	if url, err := t.env.Driver.URL(ctx); err == nil {
		c.URL = url
	}

	c.Measurements = RangeMeasurements(t.env.Builtin, art)
	elapsed := float64(c.FinishedAt.Sub(c.StartedAt).Microseconds()) / microsPerMilli
	c.Measurements = append(c.Measurements, t.env.Builtin.TimespanDuration.Measure(elapsed))

	t.env.Logger.Debugf("recorder:timespan", "timespan ended after %.0f ms", elapsed)
	return c, nil
}

// Abort tears the capture down without producing a result, for when the
// session dies mid-timespan or a Stop fails with the capture still active.
func (t *Timespan) Abort(ctx context.Context) {
	abortInstrumentation(ctx, t.env)
}
