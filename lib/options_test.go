package lib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"go.beacon.dev/beacon/lib/types"
)

func TestOptionsApply(t *testing.T) {
	t.Parallel()
	base := Options{
		Name:              null.StringFrom("Checkout"),
		NavigationTimeout: types.NullDurationFrom(10 * time.Second),
		CPUThrottlingRate: null.FloatFrom(4),
	}

	merged := base.Apply(Options{
		Name:   null.StringFrom("Checkout v2"),
		Device: &DeviceMetrics{Width: 360, Height: 640, DeviceScaleFactor: 2, Mobile: true},
	})

	assert.Equal(t, "Checkout v2", merged.Name.String)
	assert.Equal(t, 10*time.Second, merged.NavigationTimeout.TimeDuration(), "unset fields keep the base value")
	assert.Equal(t, 4.0, merged.CPUThrottlingRate.Float64)
	require.NotNil(t, merged.Device)
	assert.True(t, merged.Device.Mobile)

	// An explicit zero is still a set value and must win over the base.
	zeroed := base.Apply(Options{Name: null.StringFrom("")})
	assert.True(t, zeroed.Name.Valid)
	assert.Equal(t, "", zeroed.Name.String)
}

func TestOptionsApplyEnv(t *testing.T) {
	t.Setenv("BEACON_FLOW_NAME", "From env")
	t.Setenv("BEACON_NAVIGATION_TIMEOUT", "45s")
	t.Setenv("BEACON_CPU_THROTTLING_RATE", "2")

	opts, err := Options{Name: null.StringFrom("coded")}.ApplyEnv()
	require.NoError(t, err)

	assert.Equal(t, "From env", opts.Name.String)
	assert.Equal(t, 45*time.Second, opts.NavigationTimeout.TimeDuration())
	assert.Equal(t, 2.0, opts.CPUThrottlingRate.Float64)
	assert.False(t, opts.UserAgent.Valid)
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()
	testdata := map[string]struct {
		opts Options
		ok   bool
	}{
		"empty":           {Options{}, true},
		"known profile":   {Options{ThrottlingProfile: null.StringFrom("Slow 3G")}, true},
		"unknown profile": {Options{ThrottlingProfile: null.StringFrom("2G-ish")}, false},
		"cpu rate one":    {Options{CPUThrottlingRate: null.FloatFrom(1)}, true},
		"cpu rate low":    {Options{CPUThrottlingRate: null.FloatFrom(0.5)}, false},
		"timeout zero":    {Options{NavigationTimeout: types.NullDurationFrom(0)}, false},
	}
	for name, data := range testdata {
		data := data
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := data.opts.Validate()
			if data.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()
	var opts Options
	assert.Equal(t, DefaultNavigationTimeout, opts.NavigationTimeoutOrDefault())
	assert.Equal(t, DefaultNetworkIdleWait, opts.NetworkIdleWaitOrDefault())

	opts.NetworkIdleWait = types.NullDurationFrom(2 * time.Second)
	assert.Equal(t, 2*time.Second, opts.NetworkIdleWaitOrDefault())
}

func TestNetworkProfiles(t *testing.T) {
	t.Parallel()
	profiles := GetNetworkProfiles()
	require.Contains(t, profiles, "No Throttling")
	require.Contains(t, profiles, "Slow 3G")
	require.Contains(t, profiles, "Fast 3G")

	slow := profiles["Slow 3G"]
	assert.Greater(t, slow.Latency, float64(0))
	assert.Greater(t, slow.Download, float64(0))
	assert.Less(t, slow.Download, profiles["Fast 3G"].Download)
}

func TestDevicePresets(t *testing.T) {
	t.Parallel()
	presets := GetDevicePresets()
	require.Contains(t, presets, "Desktop")
	require.Contains(t, presets, "Moto G4")

	moto := presets["Moto G4"]
	assert.True(t, moto.Mobile)
	assert.False(t, presets["Desktop"].Mobile)

	opts := Options{}.Apply(Options{Device: &moto})
	require.NotNil(t, opts.Device)
	assert.Equal(t, int64(360), opts.Device.Width)
}
