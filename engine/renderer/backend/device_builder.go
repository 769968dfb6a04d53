package backend

import "github.com/cogentcore/webgpu/wgpu"

// WGPUDeviceBuilderOption is a functional option applied to a device during construction via NewWGPUDevice.
type WGPUDeviceBuilderOption func(*WGPUDevice)

// WithSurfaceDescriptor creates a presentation surface along with the device and requests an
// adapter compatible with it. See window.Window.SurfaceDescriptor.
//
// Parameters:
//   - desc: the platform surface descriptor
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the surface option to a device
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		d.surfaceDescriptor = desc
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the fallback option to a device
func WithForceFallbackAdapter(force bool) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithPowerPreference selects between low power and high performance adapters.
func WithPowerPreference(pref wgpu.PowerPreference) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		d.powerPreference = pref
	}
}

// WithMaxBindGroups raises the bind group limit requested from the adapter. When not specified, the
// WebGPU default of 4 applies.
//
// Parameters:
//   - n: the number of bind groups a pipeline layout may use
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the limit to a device
func WithMaxBindGroups(n uint32) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		if n > 0 {
			d.maxBindGroups = n
		}
	}
}

// WithPresentMode sets the swapchain present mode. When not specified, PresentModeFifo (vsync) is used.
func WithPresentMode(mode wgpu.PresentMode) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		d.presentMode = mode
	}
}

// WithDeviceLabel sets the debug label of the device.
func WithDeviceLabel(label string) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		d.label = label
	}
}

// WithDeviceLostHandler registers fn to be called when the native device is lost. Connect it to
// renderer.Context.DeviceLost so the context stops submitting to the dead device.
//
// Parameters:
//   - fn: the handler receiving the loss reason and the driver message
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the handler to a device
func WithDeviceLostHandler(fn func(reason wgpu.DeviceLostReason, message string)) WGPUDeviceBuilderOption {
	return func(d *WGPUDevice) {
		d.onLost = fn
	}
}
