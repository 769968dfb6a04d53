// Package backend maps the gpu interfaces onto a cogentcore/webgpu device.
package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoSurface is returned by Surface when the device was created without a surface descriptor.
var ErrNoSurface = errors.New("backend: device has no surface")

// WGPUDevice is a gpu.Device backed by a native WebGPU device. It owns the instance, adapter and
// optional presentation surface it was created with.
type WGPUDevice struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *queue
	surface  *Surface
	released atomic.Bool

	// Pre-creation config collected from builder options
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
	powerPreference      wgpu.PowerPreference
	maxBindGroups        uint32
	presentMode          wgpu.PresentMode
	label                string
	onLost               func(reason wgpu.DeviceLostReason, message string)
}

var _ gpu.Device = &WGPUDevice{}

// NewWGPUDevice requests an adapter and a device from a new WebGPU instance. The calling goroutine
// is locked to its OS thread, as the native surface requires.
//
// Parameters:
//   - options: functional options such as WithSurfaceDescriptor
//
// Returns:
//   - *WGPUDevice: the created device
//   - error: an error if no adapter or device could be obtained
func NewWGPUDevice(options ...WGPUDeviceBuilderOption) (*WGPUDevice, error) {
	runtime.LockOSThread()
	d := &WGPUDevice{
		maxBindGroups: 4,
		presentMode:   wgpu.PresentModeFifo,
		label:         "oxy-gpu device",
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	var native *wgpu.Surface
	if d.surfaceDescriptor != nil {
		native = d.instance.CreateSurface(d.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		PowerPreference:      d.powerPreference,
		CompatibleSurface:    native,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("backend: failed to request adapter: %w", err)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = d.maxBindGroups
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: d.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
		DeviceLostCallback: d.lost,
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, fmt.Errorf("backend: failed to request device: %w", err)
	}
	d.device = dev
	d.queue = &queue{q: dev.GetQueue()}
	if native != nil {
		d.surface = &Surface{surface: native, adapter: a, device: dev, presentMode: d.presentMode}
	}

	common.Logger().Info("[backend] device created", "label", d.label, "surface", native != nil,
		"maxBindGroups", d.maxBindGroups)
	return d, nil
}

// Surface returns the presentation surface of the device.
//
// Returns:
//   - *Surface: the surface
//   - error: ErrNoSurface if the device was created without a surface descriptor
func (d *WGPUDevice) Surface() (*Surface, error) {
	if d.surface == nil {
		return nil, ErrNoSurface
	}
	return d.surface, nil
}

// Native returns the underlying WebGPU device.
func (d *WGPUDevice) Native() *wgpu.Device {
	return d.device
}

// lost is the native device lost callback. Losses caused by Release are not forwarded.
func (d *WGPUDevice) lost(reason wgpu.DeviceLostReason, message string) {
	if d.released.Load() {
		return
	}
	common.Logger().Error("[backend] device lost", "label", d.label, "reason", reason, "message", message)
	if d.onLost != nil {
		d.onLost(reason, message)
	}
}

// Release releases the device, surface, adapter and instance, in that order.
func (d *WGPUDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return
	}
	d.released.Store(true)
	if d.surface != nil {
		d.surface.release()
		d.surface = nil
	}
	d.queue.q.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	d.device = nil
	common.Logger().Info("[backend] device released", "label", d.label)
}

func (d *WGPUDevice) CreateBuffer(desc *wgpu.BufferDescriptor) (gpu.Buffer, error) {
	b, err := d.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	return &buffer{buf: b, label: desc.Label, size: desc.Size}, nil
}

func (d *WGPUDevice) CreateTexture(desc *wgpu.TextureDescriptor) (gpu.Texture, error) {
	t, err := d.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	return &texture{tex: t}, nil
}

func (d *WGPUDevice) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.Sampler, error) {
	return d.device.CreateSampler(desc)
}

func (d *WGPUDevice) CreateShaderModule(label, code string) (gpu.ShaderModule, error) {
	return d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: code,
		},
	})
}

func (d *WGPUDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	return d.device.CreateBindGroupLayout(desc)
}

func (d *WGPUDevice) CreatePipelineLayout(desc *gpu.PipelineLayoutDescriptor) (gpu.PipelineLayout, error) {
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layouts[i] = l.(*wgpu.BindGroupLayout)
	}
	return d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
}

func (d *WGPUDevice) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	native := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.(*wgpu.PipelineLayout),
		Vertex: wgpu.VertexState{
			Module:     desc.Vertex.Module.(*wgpu.ShaderModule),
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.Vertex.Buffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.Multisample,
	}
	if f := desc.Fragment; f != nil {
		native.Fragment = &wgpu.FragmentState{
			Module:     f.Module.(*wgpu.ShaderModule),
			EntryPoint: f.EntryPoint,
			Targets:    f.Targets,
		}
	}
	return d.device.CreateRenderPipeline(native)
}

func (d *WGPUDevice) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	return d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.(*wgpu.PipelineLayout),
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     desc.Module.(*wgpu.ShaderModule),
			EntryPoint: desc.EntryPoint,
		},
	})
}

func (d *WGPUDevice) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = nativeBuffer(e.Buffer)
			entry.Offset = e.Offset
			entry.Size = common.Coalesce(e.Size, wgpu.WholeSize)
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*wgpu.Sampler)
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*wgpu.TextureView)
		}
		entries[i] = entry
	}
	return d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*wgpu.BindGroupLayout),
		Entries: entries,
	})
}

func (d *WGPUDevice) CreateRenderBundleEncoder(desc *gpu.RenderBundleEncoderDescriptor) (gpu.RenderBundleEncoder, error) {
	enc, err := d.device.CreateRenderBundleEncoder(&wgpu.RenderBundleEncoderDescriptor{
		Label:              desc.Label,
		ColorFormats:       desc.ColorFormats,
		DepthStencilFormat: desc.DepthStencilFormat,
		SampleCount:        desc.SampleCount,
		DepthReadOnly:      desc.DepthReadOnly,
		StencilReadOnly:    desc.StencilReadOnly,
	})
	if err != nil {
		return nil, err
	}
	return &bundleEncoder{enc: enc}, nil
}

func (d *WGPUDevice) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &commandEncoder{enc: enc}, nil
}

func (d *WGPUDevice) CreateQuerySet(desc *gpu.QuerySetDescriptor) (gpu.QuerySet, error) {
	return d.device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: desc.Label,
		Type:  wgpu.QueryTypeOcclusion,
		Count: desc.Count,
	})
}

func (d *WGPUDevice) Queue() gpu.Queue {
	return d.queue
}

func (d *WGPUDevice) Poll(wait bool) {
	d.device.Poll(wait, nil)
}

// queue adapts *wgpu.Queue.
type queue struct {
	q *wgpu.Queue
}

func (q *queue) Submit(buffers ...gpu.CommandBuffer) {
	native := make([]*wgpu.CommandBuffer, len(buffers))
	for i, b := range buffers {
		native[i] = b.(*wgpu.CommandBuffer)
	}
	q.q.Submit(native...)
}

func (q *queue) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	return q.q.WriteBuffer(nativeBuffer(b), offset, data)
}

func (q *queue) WriteTexture(dst gpu.TextureCopy, data []byte, layout wgpu.TextureDataLayout, size wgpu.Extent3D) error {
	return q.q.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  dst.Texture.(*texture).tex,
			MipLevel: dst.MipLevel,
			Origin:   dst.Origin,
			Aspect:   common.Coalesce(dst.Aspect, wgpu.TextureAspectAll),
		},
		data,
		&layout,
		&size,
	)
}
