package backend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gpu/internal/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderOptions(t *testing.T) {
	d := &WGPUDevice{maxBindGroups: 4}
	for _, opt := range []WGPUDeviceBuilderOption{
		WithForceFallbackAdapter(true),
		WithPowerPreference(wgpu.PowerPreferenceHighPerformance),
		WithMaxBindGroups(8),
		WithMaxBindGroups(0),
		WithPresentMode(wgpu.PresentModeImmediate),
		WithDeviceLabel("test"),
	} {
		opt(d)
	}
	assert.True(t, d.forceFallbackAdapter)
	assert.Equal(t, wgpu.PowerPreferenceHighPerformance, d.powerPreference)
	assert.Equal(t, uint32(8), d.maxBindGroups, "zero keeps the previous limit")
	assert.Equal(t, wgpu.PresentModeImmediate, d.presentMode)
	assert.Equal(t, "test", d.label)
}

func TestSurfaceRequiresDescriptor(t *testing.T) {
	d := &WGPUDevice{}
	_, err := d.Surface()
	require.ErrorIs(t, err, ErrNoSurface)
	assert.Nil(t, nativeBuffer(nil))
}

func TestPresentWithoutAcquireIsNoop(t *testing.T) {
	s := &Surface{}
	assert.NotPanics(t, s.Present)
	_, height := s.Size()
	assert.Zero(t, height)
}

func TestDeviceLossStopsContext(t *testing.T) {
	ctx, err := renderer.NewContext(gputest.NewDevice())
	require.NoError(t, err)
	t.Cleanup(ctx.Release)

	var reasons []wgpu.DeviceLostReason
	d := &WGPUDevice{label: "test"}
	WithDeviceLostHandler(func(reason wgpu.DeviceLostReason, message string) {
		reasons = append(reasons, reason)
		ctx.DeviceLost(message)
	})(d)

	d.lost(wgpu.DeviceLostReasonUnknown, "gpu hung")
	assert.Equal(t, []wgpu.DeviceLostReason{wgpu.DeviceLostReasonUnknown}, reasons)
	assert.True(t, ctx.Lost())
	assert.ErrorIs(t, ctx.Submit(renderer.NewSubmit("frame")), renderer.ErrDeviceLost)
}

func TestReleasedDeviceDoesNotReportLoss(t *testing.T) {
	called := false
	d := &WGPUDevice{onLost: func(wgpu.DeviceLostReason, string) { called = true }}
	d.released.Store(true)
	d.lost(wgpu.DeviceLostReasonDestroyed, "device released")
	assert.False(t, called)
}

func TestOcclusionQueriesAreSkipped(t *testing.T) {
	p := &renderPass{}
	assert.NotPanics(t, func() {
		p.BeginOcclusionQuery(0)
		p.EndOcclusionQuery()
	})
}
