// Package gputest provides an in-memory recording implementation of gpu.Device for tests.
// Every created handle carries a unique ID, every encoder records its commands, and the queue
// applies buffer writes and buffer-to-buffer copies to in-memory contents so readbacks can be
// asserted without a GPU.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrInjected is returned by create calls configured to fail with Device.FailOn.
var ErrInjected = errors.New("gputest: injected failure")

// Handle is the common state of every fake native object.
type Handle struct {
	Kind     string
	ID       int
	Label    string
	Desc     any
	Released bool
}

func (h *Handle) Release() { h.Released = true }

func (h *Handle) String() string {
	return fmt.Sprintf("%s#%d(%s)", h.Kind, h.ID, h.Label)
}

// Buffer is a fake native buffer backed by a byte slice.
type Buffer struct {
	Handle
	Data      []byte
	Usage     wgpu.BufferUsage
	Destroyed bool
	dev       *Device
}

func (b *Buffer) Size() uint64 { return uint64(len(b.Data)) }

func (b *Buffer) Destroy() { b.Destroyed = true }

// MapRead queues the map; the callback fires on the next Device.Poll.
func (b *Buffer) MapRead(offset, size uint64, callback func([]byte, error)) error {
	if b.Destroyed {
		return errors.New("gputest: map of destroyed buffer")
	}
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	b.dev.pendingMaps = append(b.dev.pendingMaps, func() {
		if offset+size > uint64(len(b.Data)) {
			callback(nil, errors.New("gputest: map range out of bounds"))
			return
		}
		out := make([]byte, size)
		copy(out, b.Data[offset:offset+size])
		callback(out, nil)
	})
	return nil
}

// Texture is a fake native texture.
type Texture struct {
	Handle
	Descriptor wgpu.TextureDescriptor
	Destroyed  bool
	Views      []*Handle
	dev        *Device
}

func (t *Texture) CreateView() (gpu.TextureView, error) {
	v := t.dev.newHandle("TextureView", t.Label, t)
	t.Views = append(t.Views, v)
	return v, nil
}

func (t *Texture) Destroy() { t.Destroyed = true }

// Command is one recorded encoder call.
type Command struct {
	Name string
	Args []any
}

// Write is one recorded queue upload.
type Write struct {
	Buffer *Buffer
	Offset uint64
	Data   []byte
}

// TextureWrite is one recorded texture upload.
type TextureWrite struct {
	Texture *Texture
	Data    []byte
	Size    wgpu.Extent3D
}

// Device is a recording gpu.Device.
type Device struct {
	mu          sync.Mutex
	nextID      int
	counts      map[string]int
	failOn      map[string]error
	pendingMaps []func()

	Buffers         []*Buffer
	Textures        []*Texture
	Handles         []*Handle
	Encoders        []*CommandEncoder
	BundleEncoders  []*Recorder
	RenderPipelines []*gpu.RenderPipelineDescriptor
	BindGroups      []*gpu.BindGroupDescriptor
	BindGroupLayout []*wgpu.BindGroupLayoutDescriptor
	ShaderModules   []string

	queue *Queue
}

var _ gpu.Device = &Device{}

// NewDevice creates an empty recording device.
func NewDevice() *Device {
	d := &Device{counts: map[string]int{}, failOn: map[string]error{}}
	d.queue = &Queue{dev: d}
	return d
}

// FailOn makes every subsequent create call of kind fail with err (ErrInjected when nil).
func (d *Device) FailOn(kind string, err error) {
	if err == nil {
		err = ErrInjected
	}
	d.failOn[kind] = err
}

// Count returns how many objects of kind were created.
func (d *Device) Count(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[kind]
}

func (d *Device) newHandle(kind, label string, desc any) *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.counts[kind]++
	h := &Handle{Kind: kind, ID: d.nextID, Label: label, Desc: desc}
	d.Handles = append(d.Handles, h)
	return h
}

func (d *Device) fail(kind string) error {
	if err, ok := d.failOn[kind]; ok {
		return fmt.Errorf("create %s: %w", kind, err)
	}
	return nil
}

func (d *Device) CreateBuffer(desc *wgpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.fail("Buffer"); err != nil {
		return nil, err
	}
	h := d.newHandle("Buffer", desc.Label, desc)
	b := &Buffer{Handle: *h, Data: make([]byte, desc.Size), Usage: desc.Usage, dev: d}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.fail("Texture"); err != nil {
		return nil, err
	}
	h := d.newHandle("Texture", desc.Label, desc)
	t := &Texture{Handle: *h, Descriptor: *desc, dev: d}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.fail("Sampler"); err != nil {
		return nil, err
	}
	return d.newHandle("Sampler", desc.Label, *desc), nil
}

func (d *Device) CreateShaderModule(label, code string) (gpu.ShaderModule, error) {
	if err := d.fail("ShaderModule"); err != nil {
		return nil, err
	}
	d.ShaderModules = append(d.ShaderModules, code)
	return d.newHandle("ShaderModule", label, code), nil
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	if err := d.fail("BindGroupLayout"); err != nil {
		return nil, err
	}
	d.BindGroupLayout = append(d.BindGroupLayout, desc)
	return d.newHandle("BindGroupLayout", desc.Label, desc), nil
}

func (d *Device) CreatePipelineLayout(desc *gpu.PipelineLayoutDescriptor) (gpu.PipelineLayout, error) {
	if err := d.fail("PipelineLayout"); err != nil {
		return nil, err
	}
	return d.newHandle("PipelineLayout", desc.Label, desc), nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.fail("RenderPipeline"); err != nil {
		return nil, err
	}
	d.RenderPipelines = append(d.RenderPipelines, desc)
	return d.newHandle("RenderPipeline", desc.Label, desc), nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if err := d.fail("ComputePipeline"); err != nil {
		return nil, err
	}
	return d.newHandle("ComputePipeline", desc.Label, desc), nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	if err := d.fail("BindGroup"); err != nil {
		return nil, err
	}
	d.BindGroups = append(d.BindGroups, desc)
	return d.newHandle("BindGroup", desc.Label, desc), nil
}

func (d *Device) CreateRenderBundleEncoder(desc *gpu.RenderBundleEncoderDescriptor) (gpu.RenderBundleEncoder, error) {
	if err := d.fail("RenderBundleEncoder"); err != nil {
		return nil, err
	}
	r := &Recorder{dev: d, Desc: desc}
	d.BundleEncoders = append(d.BundleEncoders, r)
	return r, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	if err := d.fail("CommandEncoder"); err != nil {
		return nil, err
	}
	h := d.newHandle("CommandEncoder", label, nil)
	e := &CommandEncoder{Handle: *h, dev: d}
	d.Encoders = append(d.Encoders, e)
	return e, nil
}

func (d *Device) CreateQuerySet(desc *gpu.QuerySetDescriptor) (gpu.QuerySet, error) {
	if err := d.fail("QuerySet"); err != nil {
		return nil, err
	}
	return d.newHandle("QuerySet", desc.Label, desc), nil
}

func (d *Device) Queue() gpu.Queue { return d.queue }

// FakeQueue returns the recording queue.
func (d *Device) FakeQueue() *Queue { return d.queue }

// Poll fires every pending map callback.
func (d *Device) Poll(wait bool) {
	d.mu.Lock()
	pending := d.pendingMaps
	d.pendingMaps = nil
	d.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
