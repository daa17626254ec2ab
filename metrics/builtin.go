package metrics

// Builtin metric names.
const (
	TimeToFirstByteName        = "time_to_first_byte"
	FirstContentfulPaintName   = "first_contentful_paint"
	LargestContentfulPaintName = "largest_contentful_paint"
	DOMContentLoadedName       = "dom_content_loaded"
	LoadName                   = "load"
	CumulativeLayoutShiftName  = "cumulative_layout_shift"
	TotalBlockingTimeName      = "total_blocking_time"
	LongTaskCountName          = "long_task_count"
	RequestCountName           = "request_count"
	TransferSizeName           = "transfer_size"
	DOMNodeCountName           = "dom_node_count"
	DOMDepthName               = "dom_depth"
	ImagesWithoutAltName       = "images_without_alt"
	AnchorsWithoutTextName     = "anchors_without_text"
	DocumentTitlePresentName   = "document_title_present"
	TimespanDurationName       = "timespan_duration"
)

// BuiltinMetrics represent all the builtin metrics of the flow engine.
type BuiltinMetrics struct {
	TimeToFirstByte        *Metric
	FirstContentfulPaint   *Metric
	LargestContentfulPaint *Metric
	DOMContentLoaded       *Metric
	Load                   *Metric
	CumulativeLayoutShift  *Metric
	TotalBlockingTime      *Metric
	LongTaskCount          *Metric
	RequestCount           *Metric
	TransferSize           *Metric
	DOMNodeCount           *Metric
	DOMDepth               *Metric
	ImagesWithoutAlt       *Metric
	AnchorsWithoutText     *Metric
	DocumentTitlePresent   *Metric
	TimespanDuration       *Metric
}

func withCurve(m *Metric, p10, median, weight float64) *Metric {
	m.Curve = &ScoreCurve{P10: p10, Median: median}
	m.Weight = weight
	return m
}

// RegisterBuiltinMetrics register and returns the builtin metrics with the
// provided registry. Curve control points and weights follow the commonly
// published field-data thresholds for the corresponding web vitals.
func RegisterBuiltinMetrics(registry *Registry) *BuiltinMetrics {
	return &BuiltinMetrics{
		TimeToFirstByte:        withCurve(registry.MustNewMetric(TimeToFirstByteName, Moment, Time), 800, 1800, 0),
		FirstContentfulPaint:   withCurve(registry.MustNewMetric(FirstContentfulPaintName, Moment, Time), 1800, 3000, 10),
		LargestContentfulPaint: withCurve(registry.MustNewMetric(LargestContentfulPaintName, Moment, Time), 2500, 4000, 25),
		DOMContentLoaded:       registry.MustNewMetric(DOMContentLoadedName, Moment, Time),
		Load:                   registry.MustNewMetric(LoadName, Moment, Time),
		CumulativeLayoutShift:  withCurve(registry.MustNewMetric(CumulativeLayoutShiftName, Range), 0.1, 0.25, 25),
		TotalBlockingTime:      withCurve(registry.MustNewMetric(TotalBlockingTimeName, Range, Time), 200, 600, 30),
		LongTaskCount:          registry.MustNewMetric(LongTaskCountName, Range, Count),
		RequestCount:           registry.MustNewMetric(RequestCountName, Range, Count),
		TransferSize:           registry.MustNewMetric(TransferSizeName, Range, Count),
		DOMNodeCount:           withCurve(registry.MustNewMetric(DOMNodeCountName, State, Count), 818, 1400, 0),
		DOMDepth:               registry.MustNewMetric(DOMDepthName, State, Count),
		ImagesWithoutAlt:       registry.MustNewMetric(ImagesWithoutAltName, State, Count),
		AnchorsWithoutText:     registry.MustNewMetric(AnchorsWithoutTextName, State, Count),
		DocumentTitlePresent:   registry.MustNewMetric(DocumentTitlePresentName, State),
		TimespanDuration:       registry.MustNewMetric(TimespanDurationName, Range, Time),
	}
}
