package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationJSON(t *testing.T) {
	t.Parallel()
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"1m10s"`), &d))
	assert.Equal(t, 70*time.Second, d.TimeDuration())

	// Bare numbers are milliseconds.
	require.NoError(t, json.Unmarshal([]byte(`1500`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.TimeDuration())

	assert.Error(t, json.Unmarshal([]byte(`"never"`), &d))

	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))
}

func TestNullDurationJSON(t *testing.T) {
	t.Parallel()
	var nd NullDuration

	require.NoError(t, json.Unmarshal([]byte(`null`), &nd))
	assert.False(t, nd.Valid)
	assert.Equal(t, Duration(0), nd.ValueOrZero())

	require.NoError(t, json.Unmarshal([]byte(`"30s"`), &nd))
	assert.True(t, nd.Valid)
	assert.Equal(t, 30*time.Second, nd.TimeDuration())

	data, err := json.Marshal(NullDurationFrom(time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1s"`, string(data))

	data, err = json.Marshal(NullDuration{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(data))
}

func TestNullDurationText(t *testing.T) {
	t.Parallel()
	var nd NullDuration

	require.NoError(t, nd.UnmarshalText([]byte("45s")))
	assert.True(t, nd.Valid)
	assert.Equal(t, 45*time.Second, nd.TimeDuration())

	require.NoError(t, nd.UnmarshalText(nil))
	assert.False(t, nd.Valid)

	assert.Error(t, nd.UnmarshalText([]byte("soon")))
}
