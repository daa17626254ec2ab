package lib

// GetDevicePresets returns ready-made viewport emulations that can be
// assigned to Options.Device.
func GetDevicePresets() map[string]DeviceMetrics {
	return map[string]DeviceMetrics{
		"Desktop": {
			Width:             1350,
			Height:            940,
			DeviceScaleFactor: 1,
			Mobile:            false,
		},
		"Moto G4": {
			Width:             360,
			Height:            640,
			DeviceScaleFactor: 3,
			Mobile:            true,
		},
		"iPhone X": {
			Width:             375,
			Height:            812,
			DeviceScaleFactor: 3,
			Mobile:            true,
		},
	}
}
