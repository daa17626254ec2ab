// Package metrics defines the measurements the mode recorders can produce and
// how raw values are turned into scores.
package metrics

import (
	"gopkg.in/guregu/null.v3"
)

// A Metric defines the shape of one measured quantity.
type Metric struct {
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Contains ValueType `json:"contains"`

	// Curve maps a raw value onto a 0..1 score. Metrics without a curve are
	// informative only and never scored.
	Curve *ScoreCurve `json:"curve,omitempty"`

	// Weight is the metric's share of the overall navigation score. Zero
	// excludes the metric from the overall score.
	Weight float64 `json:"weight"`
}

// Measure records a raw value for the metric, scoring it if a curve is
// attached.
func (m *Metric) Measure(value float64) Measurement {
	meas := Measurement{
		Name:  m.Name,
		Kind:  m.Kind,
		Unit:  m.Contains,
		Value: value,
	}
	if m.Curve != nil {
		meas.Score = null.FloatFrom(m.Curve.Score(value))
	}
	return meas
}

// A Measurement is one observed value of a metric within a single step.
type Measurement struct {
	Name  string     `json:"name"`
	Kind  Kind       `json:"kind"`
	Unit  ValueType  `json:"unit"`
	Value float64    `json:"value"`
	Score null.Float `json:"score"`
}

// WeightedScore computes the overall score for a set of measurements as the
// weighted mean of the scored ones, using the weights registered on reg.
// It returns an invalid null.Float when nothing contributes.
func WeightedScore(reg *Registry, measurements []Measurement) null.Float {
	var sum, weight float64
	for _, meas := range measurements {
		if !meas.Score.Valid {
			continue
		}
		m := reg.Get(meas.Name)
		if m == nil || m.Weight == 0 {
			continue
		}
		sum += meas.Score.Float64 * m.Weight
		weight += m.Weight
	}
	if weight == 0 {
		return null.Float{}
	}
	return null.FloatFrom(sum / weight)
}
