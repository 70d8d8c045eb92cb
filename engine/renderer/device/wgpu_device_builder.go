package device

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// WGPUDeviceBuilderOption is a functional option used to configure the WebGPU device.
type WGPUDeviceBuilderOption func(*wgpuDevice)

// WithPresentMode sets the surface present mode. Defaults to PresentModeVSync.
//
// Parameters:
//   - mode: the present mode to configure the surface with
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that sets the present mode
func WithPresentMode(mode PresentMode) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.presentMode = mode
	}
}

// WithForceFallbackAdapter requests the software (fallback) adapter instead of a hardware GPU.
//
// Parameters:
//   - force: true to force the software adapter
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that sets the adapter preference
func WithForceFallbackAdapter(force bool) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithDeviceLabel sets the label of the requested GPU device.
func WithDeviceLabel(label string) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.label = label
	}
}
