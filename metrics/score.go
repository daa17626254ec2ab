package metrics

import "math"

// erfInvFourFifths is erf⁻¹(0.8), the standardization factor that places the
// p10 control point of a log-normal curve at a score of 0.9.
var erfInvFourFifths = math.Erfinv(0.8)

// A ScoreCurve maps raw metric values onto 0..1 scores along a log-normal
// distribution fixed by two control points: the value that scores 0.5
// (Median) and the value that scores 0.9 (P10). Lower raw values are better.
type ScoreCurve struct {
	P10    float64 `json:"p10"`
	Median float64 `json:"median"`
}

// Score returns the share of the underlying distribution that the given
// value beats, clamped to [0, 1].
func (c ScoreCurve) Score(value float64) float64 {
	if value <= 0 {
		return 1
	}
	if c.Median <= 0 || c.P10 <= 0 || c.P10 >= c.Median {
		return 0
	}
	standardized := math.Log(value/c.Median) * erfInvFourFifths / -math.Log(c.P10/c.Median)
	score := math.Erfc(standardized) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
