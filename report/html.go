package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"go.beacon.dev/beacon/flow"
	"go.beacon.dev/beacon/metrics"
)

//go:embed report.gohtml
var templateFS embed.FS

var htmlTemplate = template.Must(
	template.New("report.gohtml").Funcs(template.FuncMap{
		"formatValue": formatValue,
		"formatScore": formatScore,
		"scoreClass":  scoreClass,
	}).ParseFS(templateFS, "report.gohtml"),
)

// RenderHTML writes a single self-contained HTML document for the flow
// result to w.
func RenderHTML(w io.Writer, result *flow.FlowResult) error {
	if err := htmlTemplate.Execute(w, result); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}
	return nil
}

func formatValue(m metrics.Measurement) string {
	switch m.Unit {
	case metrics.Time:
		return fmt.Sprintf("%.0f ms", m.Value)
	case metrics.Count:
		return fmt.Sprintf("%.0f", m.Value)
	default:
		return fmt.Sprintf("%.3g", m.Value)
	}
}

func formatScore(step flow.StepResult) string {
	if !step.Score.Valid {
		return "—"
	}
	return fmt.Sprintf("%d", int(step.Score.Float64*100+0.5))
}

// scoreClass buckets a score the way audit UIs conventionally do: pass at
// 0.9, average at 0.5, fail below.
func scoreClass(step flow.StepResult) string {
	switch {
	case !step.Score.Valid:
		return "none"
	case step.Score.Float64 >= 0.9:
		return "pass"
	case step.Score.Float64 >= 0.5:
		return "average"
	default:
		return "fail"
	}
}
