package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/metrics"
)

// DOM node types we care about when deriving state measurements.
const (
	nodeTypeElement = 1
	nodeTypeText    = 3
)

// Snapshot captures the page's current DOM state and derives state
// measurements from it. It observes a single instant; nothing is traced.
func Snapshot(ctx context.Context, env Env) (*Capture, error) {
	started := time.Now()

	snap, err := env.Driver.CaptureSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing snapshot: %w", err)
	}
	env.Logger.Debugf("recorder:snapshot", "captured DOM state of %q", snap.URL)

	c := &Capture{
		URL:        snap.URL,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Snapshot:   snap,
	}
	c.Measurements = stateMeasurements(env.Builtin, snap)
	return c, nil
}

func stateMeasurements(builtin *metrics.BuiltinMetrics, snap *driver.DOMSnapshot) []metrics.Measurement {
	var (
		nodeCount, maxDepth        int
		imagesNoAlt, anchorsNoText int
	)
	snap.Root.Walk(func(n *driver.DOMNode, depth int) {
		nodeCount++
		if depth > maxDepth {
			maxDepth = depth
		}
		if n.NodeType != nodeTypeElement {
			return
		}
		switch n.NodeName {
		case "IMG":
			if strings.TrimSpace(n.Attributes["alt"]) == "" {
				imagesNoAlt++
			}
		case "A":
			if !hasAccessibleText(n) {
				anchorsNoText++
			}
		}
	})

	titlePresent := 0.0
	if strings.TrimSpace(snap.Title) != "" {
		titlePresent = 1
	}

	return []metrics.Measurement{
		builtin.DOMNodeCount.Measure(float64(nodeCount)),
		builtin.DOMDepth.Measure(float64(maxDepth)),
		builtin.ImagesWithoutAlt.Measure(float64(imagesNoAlt)),
		builtin.AnchorsWithoutText.Measure(float64(anchorsNoText)),
		builtin.DocumentTitlePresent.Measure(titlePresent),
	}
}

// hasAccessibleText reports whether the element exposes any text to
// assistive technology: an aria-label, or a non-whitespace text descendant.
func hasAccessibleText(n *driver.DOMNode) bool {
	if strings.TrimSpace(n.Attributes["aria-label"]) != "" {
		return true
	}
	found := false
	n.Walk(func(c *driver.DOMNode, _ int) {
		if c.NodeType == nodeTypeText && strings.TrimSpace(c.NodeValue) != "" {
			found = true
		}
	})
	return found
}
