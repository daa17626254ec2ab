package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestModeMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	for _, mode := range []Mode{Navigation, Timespan, Snapshot} {
		data, err := json.Marshal(mode)
		require.NoError(t, err)

		var got Mode
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, mode, got)
	}

	var invalid Mode
	assert.ErrorIs(t, json.Unmarshal([]byte(`"sideways"`), &invalid), ErrInvalidMode)

	_, err := json.Marshal(Mode(42))
	assert.Error(t, err)
}

func TestFlowResultJSONKeepsStepOrder(t *testing.T) {
	t.Parallel()
	result := &FlowResult{
		ID:   "f-1",
		Name: "Checkout",
		Steps: []StepResult{
			{ID: "s-1", Mode: Navigation, Name: "Navigation (https://shop.test/)"},
			{ID: "s-2", Mode: Timespan, Name: "Timespan"},
			{ID: "s-3", Mode: Snapshot, Name: "Snapshot"},
		},
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	steps := gjson.GetBytes(data, "steps")
	require.True(t, steps.IsArray())
	modes := []string{}
	for _, s := range steps.Array() {
		modes = append(modes, s.Get("mode").String())
	}
	assert.Equal(t, []string{"navigation", "timespan", "snapshot"}, modes)
	assert.Equal(t, "s-2", steps.Array()[1].Get("id").String())
}

func TestStepResultDuration(t *testing.T) {
	t.Parallel()
	var r StepResult
	require.NoError(t, json.Unmarshal([]byte(`{
		"mode": "timespan",
		"startedAt": "2026-08-28T10:00:00Z",
		"finishedAt": "2026-08-28T10:00:02Z"
	}`), &r))
	assert.Equal(t, Timespan, r.Mode)
	assert.Equal(t, "2s", r.Duration().String())
}
