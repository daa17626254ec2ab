package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"go.beacon.dev/beacon/flow"
)

// SummaryOptions control the terminal rendering of a flow result.
type SummaryOptions struct {
	// NoColor disables ANSI colors regardless of the writer.
	NoColor bool
}

// WriteSummary writes a short, optionally colored, per-step rundown of the
// flow result to w.
func WriteSummary(w io.Writer, result *flow.FlowResult, opts SummaryOptions) error {
	noColor := opts.NoColor || !writerIsTTY(w)

	scoreColor := func(score float64) *color.Color {
		c := color.New(color.FgRed)
		switch {
		case score >= 0.9:
			c = color.New(color.FgGreen)
		case score >= 0.5:
			c = color.New(color.FgYellow)
		}
		if noColor {
			c.DisableColor()
		}
		return c
	}
	dim := color.New(color.Faint)
	if noColor {
		dim.DisableColor()
	}

	if _, err := fmt.Fprintf(w, "%s (%d steps)\n\n", result.Name, len(result.Steps)); err != nil {
		return err
	}
	for i, step := range result.Steps {
		score := dim.Sprint("   — ")
		if step.Score.Valid {
			score = scoreColor(step.Score.Float64).Sprintf("%4.0f%%", step.Score.Float64*100)
		}
		line := fmt.Sprintf("  %d. [%s] %s %s", i+1, step.Mode, step.Name, score)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, m := range step.Measurements {
			if !m.Score.Valid {
				continue
			}
			detail := dim.Sprintf("       %s: %s (%.2f)", m.Name, formatValue(m), m.Score.Float64)
			if _, err := fmt.Fprintln(w, detail); err != nil {
				return err
			}
		}
	}
	return nil
}

func writerIsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
