package recorder

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/metrics"
)

func testBuiltin(t *testing.T) *metrics.BuiltinMetrics {
	t.Helper()
	return metrics.RegisterBuiltinMetrics(metrics.NewRegistry())
}

func measurement(t *testing.T, ms []metrics.Measurement, name string) metrics.Measurement {
	t.Helper()
	for _, m := range ms {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("no measurement named %q", name)
	return metrics.Measurement{}
}

func hasMeasurement(ms []metrics.Measurement, name string) bool {
	for _, m := range ms {
		if m.Name == name {
			return true
		}
	}
	return false
}

func TestNavigationMeasurements(t *testing.T) {
	t.Parallel()
	base := int64(5_000_000)
	started := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	art := &driver.Artifacts{
		TraceEvents: []driver.TraceEvent{
			{Name: "navigationStart", Timestamp: base},
			{Name: "firstContentfulPaint", Timestamp: base + 900_000},
			{Name: "largestContentfulPaint::Candidate", Timestamp: base + 1_100_000},
			// A later candidate supersedes the first.
			{Name: "largestContentfulPaint::Candidate", Timestamp: base + 1_800_000},
			{Name: "MarkDOMContent", Timestamp: base + 700_000},
			{Name: "MarkLoad", Timestamp: base + 2_100_000},
		},
		Requests: []driver.Request{
			{RequestID: "1", MainDocument: true, StartedAt: started, ResponseAt: started.Add(230 * time.Millisecond)},
		},
	}

	ms := NavigationMeasurements(testBuiltin(t), art)
	assert.InDelta(t, 900, measurement(t, ms, metrics.FirstContentfulPaintName).Value, 0.01)
	assert.InDelta(t, 1800, measurement(t, ms, metrics.LargestContentfulPaintName).Value, 0.01)
	assert.InDelta(t, 700, measurement(t, ms, metrics.DOMContentLoadedName).Value, 0.01)
	assert.InDelta(t, 2100, measurement(t, ms, metrics.LoadName).Value, 0.01)
	assert.InDelta(t, 230, measurement(t, ms, metrics.TimeToFirstByteName).Value, 0.01)

	fcp := measurement(t, ms, metrics.FirstContentfulPaintName)
	require.True(t, fcp.Score.Valid)
	assert.Greater(t, fcp.Score.Float64, 0.9, "a 900ms FCP beats the p10 control point")
}

func TestNavigationMeasurementsWithoutNavigationStart(t *testing.T) {
	t.Parallel()
	art := &driver.Artifacts{
		TraceEvents: []driver.TraceEvent{
			{Name: "firstContentfulPaint", Timestamp: 1_000_000},
		},
	}
	assert.Empty(t, NavigationMeasurements(testBuiltin(t), art))
}

func TestRangeMeasurementsIdleCapture(t *testing.T) {
	t.Parallel()
	ms := RangeMeasurements(testBuiltin(t), &driver.Artifacts{Requests: []driver.Request{}})

	assert.Zero(t, measurement(t, ms, metrics.CumulativeLayoutShiftName).Value)
	assert.Zero(t, measurement(t, ms, metrics.TotalBlockingTimeName).Value)
	assert.Zero(t, measurement(t, ms, metrics.RequestCountName).Value)
}

func TestTotalBlockingTime(t *testing.T) {
	t.Parallel()
	art := &driver.Artifacts{
		TraceEvents: []driver.TraceEvent{
			// 120ms task blocks for 70ms, 40ms task not at all.
			{Name: "RunTask", Phase: "X", Timestamp: 1, Duration: 120_000},
			{Name: "RunTask", Phase: "X", Timestamp: 2, Duration: 40_000},
			{Name: "RunTask", Phase: "X", Timestamp: 3, Duration: 51_000},
		},
	}
	ms := RangeMeasurements(testBuiltin(t), art)
	assert.InDelta(t, 71, measurement(t, ms, metrics.TotalBlockingTimeName).Value, 0.01)
	assert.Equal(t, float64(2), measurement(t, ms, metrics.LongTaskCountName).Value)
}

func TestCumulativeLayoutShiftWindowing(t *testing.T) {
	t.Parallel()
	shift := func(ts int64, score float64, recentInput bool) driver.TraceEvent {
		args := []byte(`{"data":{"score":` + formatFloat(score) + `,"had_recent_input":false}}`)
		if recentInput {
			args = []byte(`{"data":{"score":` + formatFloat(score) + `,"had_recent_input":true}}`)
		}
		return driver.TraceEvent{Name: "LayoutShift", Timestamp: ts, Args: args}
	}

	sec := int64(1_000_000)
	art := &driver.Artifacts{
		TraceEvents: []driver.TraceEvent{
			// Window one: 0.1 + 0.2.
			shift(0*sec, 0.1, false),
			shift(0*sec+500_000, 0.2, false),
			// Gap > 1s opens window two: 0.25.
			shift(2*sec, 0.25, false),
			// Input-adjacent shifts never count.
			shift(2*sec+100_000, 5, true),
		},
	}
	ms := RangeMeasurements(testBuiltin(t), art)
	assert.InDelta(t, 0.3, measurement(t, ms, metrics.CumulativeLayoutShiftName).Value, 1e-9)
}

func TestCumulativeLayoutShiftWindowCap(t *testing.T) {
	t.Parallel()
	// Shifts every 900ms for 7s: the 5s cap forces a second window.
	var events []driver.TraceEvent
	for ts := int64(0); ts <= 7_000_000; ts += 900_000 {
		events = append(events, driver.TraceEvent{
			Name: "LayoutShift", Timestamp: ts,
			Args: []byte(`{"data":{"score":0.1,"had_recent_input":false}}`),
		})
	}
	ms := RangeMeasurements(testBuiltin(t), &driver.Artifacts{TraceEvents: events})
	cls := measurement(t, ms, metrics.CumulativeLayoutShiftName).Value
	assert.Less(t, cls, 0.75, "the 5s cap must split the run of shifts")
	assert.InDelta(t, 0.6, cls, 1e-9)
}

func TestRangeMeasurementsSkipNetworkWithoutLog(t *testing.T) {
	t.Parallel()
	ms := RangeMeasurements(testBuiltin(t), &driver.Artifacts{})
	assert.False(t, hasMeasurement(ms, metrics.RequestCountName))
	assert.True(t, hasMeasurement(ms, metrics.CumulativeLayoutShiftName))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
