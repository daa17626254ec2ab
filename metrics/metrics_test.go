package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func TestScoreCurveControlPoints(t *testing.T) {
	t.Parallel()
	curve := ScoreCurve{P10: 1800, Median: 3000}

	assert.InDelta(t, 0.5, curve.Score(3000), 1e-9, "the median scores 0.5")
	assert.InDelta(t, 0.9, curve.Score(1800), 1e-9, "the p10 point scores 0.9")
	assert.Equal(t, 1.0, curve.Score(0))
	assert.Equal(t, 1.0, curve.Score(-5))
}

func TestScoreCurveMonotonicity(t *testing.T) {
	t.Parallel()
	curve := ScoreCurve{P10: 200, Median: 600}
	prev := 1.1
	for v := 1.0; v < 5000; v += 50 {
		score := curve.Score(v)
		assert.LessOrEqual(t, score, prev, "score must not increase with worse values")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
}

func TestScoreCurveDegenerate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, ScoreCurve{P10: 0, Median: 100}.Score(50))
	assert.Equal(t, 0.0, ScoreCurve{P10: 300, Median: 100}.Score(50))
}

func TestMetricMeasure(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	plain := reg.MustNewMetric("dom_depth", State, Count)
	scored := reg.MustNewMetric("first_paint", Moment, Time)
	scored.Curve = &ScoreCurve{P10: 1000, Median: 2000}

	m := plain.Measure(17)
	assert.False(t, m.Score.Valid)
	assert.Equal(t, 17.0, m.Value)
	assert.Equal(t, State, m.Kind)

	s := scored.Measure(1000)
	require.True(t, s.Score.Valid)
	assert.InDelta(t, 0.9, s.Score.Float64, 1e-9)
}

func TestWeightedScore(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	builtin := RegisterBuiltinMetrics(reg)

	measurements := []Measurement{
		builtin.FirstContentfulPaint.Measure(1800),   // 0.9, weight 10
		builtin.LargestContentfulPaint.Measure(4000), // 0.5, weight 25
		builtin.DOMDepth.Measure(12),                 // unscored
		builtin.TimeToFirstByte.Measure(800),         // scored but weight 0
	}
	score := WeightedScore(reg, measurements)
	require.True(t, score.Valid)
	assert.InDelta(t, (0.9*10+0.5*25)/35, score.Float64, 1e-9)

	assert.False(t, WeightedScore(reg, nil).Valid)
	assert.False(t, WeightedScore(reg, []Measurement{{Name: "unknown", Score: null.FloatFrom(1)}}).Valid)
}

func TestRegistryRejectsConflictsAndBadNames(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	m1, err := reg.NewMetric("blocking_time", Range, Time)
	require.NoError(t, err)
	m2, err := reg.NewMetric("blocking_time", Range, Time)
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	_, err = reg.NewMetric("blocking_time", State, Time)
	assert.Error(t, err)

	_, err = reg.NewMetric("", Range)
	assert.Error(t, err)

	assert.Nil(t, reg.Get("missing"))
	assert.NotNil(t, reg.Get("blocking_time"))
}

func TestKindMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	cases := map[Kind]string{Moment: `"moment"`, Range: `"range"`, State: `"state"`}
	for kind, want := range cases {
		data, err := json.Marshal(kind)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))

		var got Kind
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, kind, got)
	}

	var k Kind
	assert.ErrorIs(t, json.Unmarshal([]byte(`"sorta"`), &k), ErrInvalidKind)
}

func TestBuiltinMetricsWiring(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	builtin := RegisterBuiltinMetrics(reg)

	assert.Same(t, builtin.TotalBlockingTime, reg.Get(TotalBlockingTimeName))
	assert.NotNil(t, builtin.LargestContentfulPaint.Curve)
	assert.Equal(t, Range, builtin.CumulativeLayoutShift.Kind)
	assert.Equal(t, State, builtin.DOMNodeCount.Kind)

	// The perf weights must sum to 90 so the overall score is dominated by
	// the four scored vitals.
	total := 0.0
	for _, m := range reg.All() {
		total += m.Weight
	}
	assert.Equal(t, 90.0, total)
}
