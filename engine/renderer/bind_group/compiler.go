package bind_group

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/cache"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type resolutionKey struct {
	layout    *layout.PipelineLayout
	resources *Resources
}

// backing is a buffer allocated for a uniform binding. image mirrors the buffer contents so field
// writes narrower than the copy alignment can be uploaded as aligned ranges.
type backing struct {
	binding shader.Binding
	uniform *Uniform
	buffer  *resource.Buffer
	image   []byte
}

func (b *backing) field(name string) (shader.Field, bool) {
	if b.binding.Struct == nil {
		if name != "" {
			return shader.Field{}, false
		}
		return shader.Field{Name: name, Type: b.binding.Type, Size: b.binding.Size}, true
	}
	return b.binding.Struct.Field(name)
}

// Resolution holds the native bind groups of one pipeline layout resolved against one resource
// map, one per group index of the layout.
type Resolution struct {
	layout    *layout.PipelineLayout
	resources *Resources

	groups  []gpu.BindGroup
	backing map[string]*backing
	watched map[resource.Descriptor]bool
	flush   []resource.Descriptor

	volatile    bool
	dirty       bool
	unsubscribe []common.Unsubscribe
}

func (r *Resolution) Layout() *layout.PipelineLayout {
	return r.layout
}

func (r *Resolution) Resources() *Resources {
	return r.resources
}

// Groups returns the native bind groups ordered by group index.
func (r *Resolution) Groups() []gpu.BindGroup {
	return r.groups
}

// Volatile reports whether the resolution binds a per-frame resource and is released at frame end.
func (r *Resolution) Volatile() bool {
	return r.volatile
}

// Dirty reports whether a bound resource changed identity since the bind groups were built.
func (r *Resolution) Dirty() bool {
	return r.dirty
}

// Backing returns the buffer allocated for the uniform binding name, or nil.
func (r *Resolution) Backing(name string) *resource.Buffer {
	if b, ok := r.backing[name]; ok {
		return b.buffer
	}
	return nil
}

// Compiler resolves (pipeline layout, resource map) pairs into native bind groups and caches them.
// It is not safe for concurrent use.
type Compiler struct {
	device    gpu.Device
	resources *resource.Cache
	layouts   *layout.Deriver
	reporter  common.Reporter

	resolutions *cache.Cache[resolutionKey, *Resolution]
	frame       map[resolutionKey]*Resolution
}

// NewCompiler creates a bind group compiler with all specified options applied.
//
// Parameters:
//   - device: the device bind groups are created on
//   - resources: the cache resolving bound descriptors
//   - layouts: the deriver owning the native bind group layouts
//   - options: functional options such as WithReporter
//
// Returns:
//   - *Compiler: the created compiler
func NewCompiler(device gpu.Device, resources *resource.Cache, layouts *layout.Deriver, options ...CompilerBuilderOption) *Compiler {
	c := &Compiler{
		device:      device,
		resources:   resources,
		layouts:     layouts,
		reporter:    common.LogReporter{},
		resolutions: cache.New[resolutionKey, *Resolution](),
		frame:       make(map[resolutionKey]*Resolution),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Resolve returns the bind groups of l bound to res. Cached resolutions are reused until a bound
// resource changes identity, in which case they are rebuilt here. Resolutions binding a volatile
// texture are built once per frame and never cached.
//
// Parameters:
//   - l: the pipeline layout
//   - res: the resource map
//
// Returns:
//   - *Resolution: the resolved bind groups
//   - error: ErrMissingResource or ErrResourceKind, or an error resolving a bound descriptor
func (c *Compiler) Resolve(l *layout.PipelineLayout, res *Resources) (*Resolution, error) {
	key := resolutionKey{layout: l, resources: res}
	if r, ok := c.frame[key]; ok {
		return r, nil
	}
	if r, ok := c.resolutions.Get(key); ok {
		if !r.dirty {
			if err := c.refresh(r); err != nil {
				return nil, err
			}
			return r, nil
		}
		common.Logger().Debug("[bind_group] rebuilding dirty resolution", "resources", res.label)
		c.resolutions.Evict(key)
	}

	r, err := c.build(l, res)
	if err != nil {
		return nil, err
	}
	if r.volatile {
		c.frame[key] = r
		return r, nil
	}
	c.resolutions.Put(key, r, func() { c.release(r) })
	return r, nil
}

func (c *Compiler) build(l *layout.PipelineLayout, res *Resources) (*Resolution, error) {
	for _, g := range l.Groups() {
		for _, b := range g.Bindings {
			rs, ok := res.Get(b.Name)
			if !ok {
				return nil, c.configError(res, fmt.Errorf("%w: %q at (group %d, binding %d)", ErrMissingResource, b.Name, b.Group, b.Binding))
			}
			if err := rs.accepts(b.Kind); err != nil {
				return nil, c.configError(res, fmt.Errorf("%q: %w", b.Name, err))
			}
		}
	}

	r := &Resolution{
		layout:    l,
		resources: res,
		groups:    make([]gpu.BindGroup, l.GroupCount()),
		backing:   make(map[string]*backing),
		watched:   make(map[resource.Descriptor]bool),
	}
	built := false
	defer func() {
		if !built {
			c.release(r)
		}
	}()

	r.unsubscribe = append(r.unsubscribe, res.Subscribe(func(name string) {
		if _, ok := l.Binding(name); ok {
			r.dirty = true
		}
	}))

	for i := range r.groups {
		index := uint32(i)
		g, _ := l.Group(index)
		entries := make([]gpu.BindGroupEntry, 0, len(g.Bindings))
		for _, b := range g.Bindings {
			rs, _ := res.Get(b.Name)
			entry, err := c.entry(r, b, rs)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		bgl, err := c.layouts.BindGroupLayout(l, index)
		if err != nil {
			return nil, err
		}
		bg, err := c.device.CreateBindGroup(&gpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", res.label, index),
			Layout:  bgl,
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("bind_group: failed to create bind group %d of %q: %w", index, res.label, err)
		}
		r.groups[i] = bg
	}

	built = true
	common.Logger().Debug("[bind_group] resolved bind groups", "resources", res.label, "groups", len(r.groups), "volatile", r.volatile)
	return r, nil
}

func (c *Compiler) entry(r *Resolution, b shader.Binding, rs Resource) (gpu.BindGroupEntry, error) {
	entry := gpu.BindGroupEntry{Binding: b.Binding}
	switch rs.kind {
	case KindBuffer:
		native, err := c.resources.Buffer(rs.buffer)
		if err != nil {
			return entry, fmt.Errorf("bind_group: %q: %w", b.Name, err)
		}
		c.watch(r, rs.buffer)
		entry.Buffer, entry.Offset, entry.Size = native, rs.offset, common.Coalesce(rs.size, gpu.WholeSize)
	case KindUniform:
		bk := c.allocate(r, b, rs.uniform)
		native, err := c.resources.Buffer(bk.buffer)
		if err != nil {
			return entry, fmt.Errorf("bind_group: backing buffer of %q: %w", b.Name, err)
		}
		entry.Buffer, entry.Size = native, bk.buffer.Size()
	case KindTexture:
		view, err := c.resources.TextureView(rs.texture)
		if err != nil {
			return entry, fmt.Errorf("bind_group: %q: %w", b.Name, err)
		}
		if rs.texture.Volatile() {
			r.volatile = true
		} else {
			c.watch(r, rs.texture)
		}
		entry.TextureView = view
	case KindSampler:
		native, err := c.resources.Sampler(rs.sampler)
		if err != nil {
			return entry, fmt.Errorf("bind_group: %q: %w", b.Name, err)
		}
		c.watch(r, rs.sampler)
		entry.Sampler = native
	}
	return entry, nil
}

// watch marks r dirty on any identity event of d and flushes d's pending uploads on reuse.
func (c *Compiler) watch(r *Resolution, d resource.Descriptor) {
	if r.watched[d] {
		return
	}
	r.watched[d] = true
	r.unsubscribe = append(r.unsubscribe, d.Subscribe(func(resource.Event) {
		r.dirty = true
	}))
	switch d.(type) {
	case *resource.Buffer, *resource.Texture:
		r.flush = append(r.flush, d)
	}
}

func (c *Compiler) allocate(r *Resolution, b shader.Binding, u *Uniform) *backing {
	usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	if b.Kind != shader.ResourceUniform {
		usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	}
	label := b.Name
	if r.resources.label != "" {
		label = r.resources.label + "." + b.Name
	}
	buf := resource.NewBuffer(
		resource.WithBufferLabel(label),
		resource.WithBufferSize(b.Size),
		resource.WithBufferUsage(usage),
	)
	bk := &backing{binding: b, uniform: u, buffer: buf, image: make([]byte, buf.Size())}
	r.backing[b.Name] = bk
	r.flush = append(r.flush, buf)

	for _, name := range u.Fields() {
		c.writeField(bk, name)
	}
	r.unsubscribe = append(r.unsubscribe, u.Subscribe(func(name string) {
		c.writeField(bk, name)
	}))
	return bk
}

// writeField encodes one uniform field into the backing image and queues the aligned range
// covering it.
func (c *Compiler) writeField(bk *backing, name string) {
	f, ok := bk.field(name)
	if !ok {
		c.report(common.DiagnosticConfiguration, bk.uniform.label,
			fmt.Errorf("%w: %q in binding %q", ErrUnknownField, name, bk.binding.Name))
		return
	}
	value, _ := bk.uniform.Value(name)
	data, err := common.EncodeValue(value, isHalfType(f.Type))
	if err != nil {
		c.report(common.DiagnosticData, bk.uniform.label, fmt.Errorf("%w: %q: %w", ErrFieldValue, name, err))
		return
	}
	if f.Offset+uint64(len(data)) > uint64(len(bk.image)) || (f.Size > 0 && uint64(len(data)) > f.Size) {
		c.report(common.DiagnosticData, bk.uniform.label,
			fmt.Errorf("%w: %q encodes to %d bytes, field %s holds %d", ErrFieldValue, name, len(data), f.Type, f.Size))
		return
	}

	copy(bk.image[f.Offset:], data)
	start := f.Offset &^ (gpu.CopyAlignment - 1)
	end := min(common.AlignUp(gpu.CopyAlignment, f.Offset+uint64(len(data))), uint64(len(bk.image)))
	if err := bk.buffer.Write(start, bk.image[start:end]); err != nil {
		common.Logger().Warn("[bind_group] failed to queue uniform write", "field", name, "error", err)
	}
}

func isHalfType(t string) bool {
	if strings.Contains(t, "f16") {
		return true
	}
	return strings.HasSuffix(t, "h") && (strings.HasPrefix(t, "vec") || strings.HasPrefix(t, "mat"))
}

// refresh flushes the pending uploads of every descriptor bound by r.
func (c *Compiler) refresh(r *Resolution) error {
	for _, d := range r.flush {
		var err error
		switch v := d.(type) {
		case *resource.Buffer:
			_, err = c.resources.Buffer(v)
		case *resource.Texture:
			_, err = c.resources.Texture(v)
		}
		if err != nil {
			return fmt.Errorf("bind_group: failed to refresh %q: %w", d.Label(), err)
		}
	}
	return nil
}

func (c *Compiler) release(r *Resolution) {
	for _, unsubscribe := range r.unsubscribe {
		unsubscribe()
	}
	r.unsubscribe = nil
	for _, g := range r.groups {
		if g != nil {
			g.Release()
		}
	}
	for _, bk := range r.backing {
		c.resources.Destroy(bk.buffer)
	}
}

func (c *Compiler) configError(res *Resources, err error) error {
	c.report(common.DiagnosticConfiguration, res.label, err)
	return err
}

func (c *Compiler) report(kind common.DiagnosticKind, subject string, err error) {
	c.reporter.Report(common.Diagnostic{Kind: kind, Subject: subject, Message: err.Error(), Err: err})
}

// EndFrame releases every volatile resolution built during the frame.
func (c *Compiler) EndFrame() {
	for key, r := range c.frame {
		c.release(r)
		delete(c.frame, key)
	}
}

// Evict drops every cached resolution built from res.
//
// Parameters:
//   - res: the resource map
//
// Returns:
//   - int: the number of evicted resolutions
func (c *Compiler) Evict(res *Resources) int {
	return c.resolutions.EvictFunc(func(k resolutionKey, _ *Resolution) bool {
		return k.resources == res
	})
}

// Len returns the number of cached resolutions.
func (c *Compiler) Len() int {
	return c.resolutions.Len()
}

// Purge releases every resolution, cached or frame scoped.
func (c *Compiler) Purge() {
	c.EndFrame()
	c.resolutions.Purge()
}
