package recorder

import (
	"sort"

	"github.com/tidwall/gjson"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/metrics"
)

// Trace event names emitted by the browser that the processor understands.
const (
	traceNavigationStart = "navigationStart"
	traceFCP             = "firstContentfulPaint"
	traceLCPCandidate    = "largestContentfulPaint::Candidate"
	traceMarkDOMContent  = "MarkDOMContent"
	traceMarkLoad        = "MarkLoad"
	traceLayoutShift     = "LayoutShift"
	traceRunTask         = "RunTask"
)

const (
	microsPerMilli = 1000

	// Long task threshold: main-thread tasks above it contribute their
	// excess to total blocking time.
	longTaskThresholdMicros = 50 * microsPerMilli

	// Layout shift session windows: capped at 5s, closed by a 1s gap.
	shiftWindowCapMicros = 5 * 1000 * microsPerMilli
	shiftWindowGapMicros = 1 * 1000 * microsPerMilli
)

// NavigationMeasurements derives moment measurements from a navigation trace.
// Moments are reported in milliseconds relative to the navigation start; a
// trace without a navigationStart event yields no moment measurements.
func NavigationMeasurements(builtin *metrics.BuiltinMetrics, art *driver.Artifacts) []metrics.Measurement {
	var out []metrics.Measurement

	navStart, ok := navigationStart(art.TraceEvents)
	if !ok {
		return out
	}

	moment := func(m *metrics.Metric, ts int64) {
		if ts >= navStart {
			out = append(out, m.Measure(float64(ts-navStart)/microsPerMilli))
		}
	}

	if ts, ok := firstEvent(art.TraceEvents, traceFCP, navStart); ok {
		moment(builtin.FirstContentfulPaint, ts)
	}
	if ts, ok := lastEvent(art.TraceEvents, traceLCPCandidate, navStart); ok {
		moment(builtin.LargestContentfulPaint, ts)
	}
	if ts, ok := firstEvent(art.TraceEvents, traceMarkDOMContent, navStart); ok {
		moment(builtin.DOMContentLoaded, ts)
	}
	if ts, ok := firstEvent(art.TraceEvents, traceMarkLoad, navStart); ok {
		moment(builtin.Load, ts)
	}
	if ttfb, ok := timeToFirstByte(art.Requests); ok {
		out = append(out, builtin.TimeToFirstByte.Measure(ttfb))
	}
	return out
}

// RangeMeasurements derives interval measurements (layout shift, blocking
// time, network totals) from a capture. They apply to both navigation and
// timespan steps.
func RangeMeasurements(builtin *metrics.BuiltinMetrics, art *driver.Artifacts) []metrics.Measurement {
	out := []metrics.Measurement{
		builtin.CumulativeLayoutShift.Measure(cumulativeLayoutShift(art.TraceEvents)),
	}

	blocking, longTasks := totalBlockingTime(art.TraceEvents)
	out = append(out,
		builtin.TotalBlockingTime.Measure(blocking),
		builtin.LongTaskCount.Measure(float64(longTasks)),
	)

	if art.Requests != nil {
		var size int64
		for _, req := range art.Requests {
			size += req.EncodedSize
		}
		out = append(out,
			builtin.RequestCount.Measure(float64(len(art.Requests))),
			builtin.TransferSize.Measure(float64(size)),
		)
	}
	return out
}

func navigationStart(events []driver.TraceEvent) (int64, bool) {
	return firstEvent(events, traceNavigationStart, 0)
}

func firstEvent(events []driver.TraceEvent, name string, after int64) (int64, bool) {
	var best int64
	found := false
	for _, ev := range events {
		if ev.Name != name || ev.Timestamp < after {
			continue
		}
		if !found || ev.Timestamp < best {
			best = ev.Timestamp
			found = true
		}
	}
	return best, found
}

func lastEvent(events []driver.TraceEvent, name string, after int64) (int64, bool) {
	var best int64
	found := false
	for _, ev := range events {
		if ev.Name != name || ev.Timestamp < after {
			continue
		}
		if !found || ev.Timestamp > best {
			best = ev.Timestamp
			found = true
		}
	}
	return best, found
}

// cumulativeLayoutShift computes the layout shift score of the worst session
// window: shifts group into a window until a 1s gap or the 5s cap, and the
// largest window sum wins. Shifts right after user input are excluded.
func cumulativeLayoutShift(events []driver.TraceEvent) float64 {
	type shift struct {
		ts    int64
		score float64
	}
	var shifts []shift
	for _, ev := range events {
		if ev.Name != traceLayoutShift || len(ev.Args) == 0 {
			continue
		}
		data := gjson.GetBytes(ev.Args, "data")
		if !data.Exists() || data.Get("had_recent_input").Bool() {
			continue
		}
		score := data.Get("weighted_score_delta")
		if !score.Exists() {
			score = data.Get("score")
		}
		shifts = append(shifts, shift{ts: ev.Timestamp, score: score.Float()})
	}
	if len(shifts) == 0 {
		return 0
	}
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].ts < shifts[j].ts })

	var worst, window float64
	windowStart, prev := shifts[0].ts, shifts[0].ts
	for _, s := range shifts {
		if s.ts-prev > shiftWindowGapMicros || s.ts-windowStart > shiftWindowCapMicros {
			windowStart = s.ts
			window = 0
		}
		window += s.score
		prev = s.ts
		if window > worst {
			worst = window
		}
	}
	return worst
}

// totalBlockingTime sums the excess over the long-task threshold across all
// main-thread tasks, in milliseconds, and counts the long tasks.
func totalBlockingTime(events []driver.TraceEvent) (float64, int) {
	var blocking float64
	count := 0
	for _, ev := range events {
		if ev.Name != traceRunTask || ev.Duration <= longTaskThresholdMicros {
			continue
		}
		blocking += float64(ev.Duration-longTaskThresholdMicros) / microsPerMilli
		count++
	}
	return blocking, count
}

// timeToFirstByte is derived from the network log: the time from the main
// document request leaving until its response headers arrived.
func timeToFirstByte(requests []driver.Request) (float64, bool) {
	for _, req := range requests {
		if !req.MainDocument || req.ResponseAt.IsZero() {
			continue
		}
		return float64(req.ResponseAt.Sub(req.StartedAt).Microseconds()) / microsPerMilli, true
	}
	return 0, false
}
