package recorder

import (
	"context"
	"fmt"
	"time"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/metrics"
)

// Navigation records one full page-load lifecycle: it instruments the page,
// triggers the navigation described by target, waits for it to settle and
// derives moment, range and overall-score measurements from the capture.
func Navigation(ctx context.Context, env Env, target driver.Target) (*Capture, error) {
	c := &Capture{StartedAt: time.Now()}

	opts := driver.InstrumentationOptions{Trace: true, Network: true}
	if err := env.Driver.StartInstrumentation(ctx, opts); err != nil {
		return nil, fmt.Errorf("starting instrumentation: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, env.Options.NavigationTimeoutOrDefault())
	defer cancel()

	if target.URL != "" {
		env.Logger.Debugf("recorder:navigation", "navigating to %q", target.URL)
		if err := env.Driver.NavigateTo(navCtx, target.URL); err != nil {
			abortInstrumentation(ctx, env)
			return nil, fmt.Errorf("navigating to %q: %w", target.URL, err)
		}
	} else {
		env.Logger.Debugf("recorder:navigation", "running navigation callback")
		if err := target.Callback(navCtx); err != nil {
			abortInstrumentation(ctx, env)
			return nil, fmt.Errorf("navigation callback: %w", err)
		}
	}

	info, err := env.Driver.WaitForNavigation(navCtx, env.Options.NetworkIdleWaitOrDefault())
	if err != nil {
		abortInstrumentation(ctx, env)
		return nil, err
	}
	c.Navigation = info
	c.URL = info.URL

	art, err := env.Driver.StopInstrumentation(ctx)
	if err != nil {
		return nil, fmt.Errorf("stopping instrumentation: %w", err)
	}
	c.Artifacts = art
	c.FinishedAt = time.Now()

	c.Measurements = append(
		NavigationMeasurements(env.Builtin, art),
		RangeMeasurements(env.Builtin, art)...,
	)
	c.Score = metrics.WeightedScore(env.Registry, c.Measurements)
	return c, nil
}

// abortInstrumentation makes a best effort to leave the page uninstrumented
// after a failed step; the artifacts are dropped.
func abortInstrumentation(ctx context.Context, env Env) {
	if _, err := env.Driver.StopInstrumentation(ctx); err != nil {
		env.Logger.Warnf("recorder", "discarding instrumentation: %v", err)
	}
}
