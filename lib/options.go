package lib

import (
	"fmt"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"

	"go.beacon.dev/beacon/lib/types"
)

// DefaultNavigationTimeout bounds how long a navigation step waits for the
// page to reach load plus network idle before the step is failed.
const DefaultNavigationTimeout = 30 * time.Second

// DefaultNetworkIdleWait is the quiet period on the network log after the
// load event that marks a navigation as settled.
const DefaultNetworkIdleWait = 500 * time.Millisecond

// Options configures a flow session. Fields are nullable so that unset values
// can be distinguished from explicit zero values when merging option layers.
type Options struct {
	// Name is the flow name used in reports.
	Name null.String `json:"name" envconfig:"BEACON_FLOW_NAME"`

	// NavigationTimeout bounds navigation detection and settling.
	NavigationTimeout types.NullDuration `json:"navigationTimeout" envconfig:"BEACON_NAVIGATION_TIMEOUT"`

	// NetworkIdleWait is the post-load network quiet period.
	NetworkIdleWait types.NullDuration `json:"networkIdleWait" envconfig:"BEACON_NETWORK_IDLE_WAIT"`

	// ThrottlingProfile names one of the profiles from GetNetworkProfiles.
	ThrottlingProfile null.String `json:"throttlingProfile" envconfig:"BEACON_THROTTLING_PROFILE"`

	// CPUThrottlingRate is the CPU slowdown factor (1 = no throttle).
	CPUThrottlingRate null.Float `json:"cpuThrottlingRate" envconfig:"BEACON_CPU_THROTTLING_RATE"`

	// UserAgent overrides the browser user agent for the whole session.
	UserAgent null.String `json:"userAgent" envconfig:"BEACON_USER_AGENT"`

	Device *DeviceMetrics `json:"device,omitempty" ignored:"true"`
}

// DeviceMetrics describes the emulated viewport.
type DeviceMetrics struct {
	Width             int64   `json:"width"`
	Height            int64   `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
	Mobile            bool    `json:"mobile"`
}

// Apply overlays any set fields from opts on top of o and returns the result.
func (o Options) Apply(opts Options) Options {
	if opts.Name.Valid {
		o.Name = opts.Name
	}
	if opts.NavigationTimeout.Valid {
		o.NavigationTimeout = opts.NavigationTimeout
	}
	if opts.NetworkIdleWait.Valid {
		o.NetworkIdleWait = opts.NetworkIdleWait
	}
	if opts.ThrottlingProfile.Valid {
		o.ThrottlingProfile = opts.ThrottlingProfile
	}
	if opts.CPUThrottlingRate.Valid {
		o.CPUThrottlingRate = opts.CPUThrottlingRate
	}
	if opts.UserAgent.Valid {
		o.UserAgent = opts.UserAgent
	}
	if opts.Device != nil {
		o.Device = opts.Device
	}
	return o
}

// ApplyEnv overlays BEACON_* environment variables on top of o.
func (o Options) ApplyEnv() (Options, error) {
	var env Options
	if err := envconfig.Process("", &env); err != nil {
		return o, err
	}
	return o.Apply(env), nil
}

// Validate checks cross-field consistency.
func (o Options) Validate() error {
	if o.ThrottlingProfile.Valid {
		if _, ok := GetNetworkProfiles()[o.ThrottlingProfile.String]; !ok {
			return fmt.Errorf("unknown throttling profile %q", o.ThrottlingProfile.String)
		}
	}
	if o.CPUThrottlingRate.Valid && o.CPUThrottlingRate.Float64 < 1 {
		return fmt.Errorf("cpu throttling rate must be >= 1, got %g", o.CPUThrottlingRate.Float64)
	}
	if o.NavigationTimeout.Valid && o.NavigationTimeout.TimeDuration() <= 0 {
		return fmt.Errorf("navigation timeout must be positive, got %s", o.NavigationTimeout.Duration)
	}
	return nil
}

// NavigationTimeoutOrDefault returns the configured navigation timeout,
// falling back to DefaultNavigationTimeout.
func (o Options) NavigationTimeoutOrDefault() time.Duration {
	if o.NavigationTimeout.Valid {
		return o.NavigationTimeout.TimeDuration()
	}
	return DefaultNavigationTimeout
}

// NetworkIdleWaitOrDefault returns the configured network quiet period,
// falling back to DefaultNetworkIdleWait.
func (o Options) NetworkIdleWaitOrDefault() time.Duration {
	if o.NetworkIdleWait.Valid {
		return o.NetworkIdleWait.TimeDuration()
	}
	return DefaultNetworkIdleWait
}
