package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/cache"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type textureEntry struct {
	texture gpu.Texture
	view    gpu.TextureView
}

type samplerEntry struct {
	sampler gpu.Sampler
	version uint64
}

// frameTexture is a volatile texture acquired for the current frame.
type frameTexture struct {
	texture gpu.Texture
	view    gpu.TextureView
}

// Cache resolves descriptors to native objects of one device. It is not safe for concurrent use.
type Cache struct {
	device       gpu.Device
	reporter     common.Reporter
	defaultUsage wgpu.BufferUsage

	buffers  *cache.Cache[*Buffer, gpu.Buffer]
	textures *cache.Cache[*Texture, textureEntry]
	samplers *cache.Cache[*Sampler, samplerEntry]

	frame    map[*Texture]frameTexture
	surfaces []SurfaceSource
}

// NewCache creates a resource cache with all specified options applied.
//
// Parameters:
//   - device: the device native objects are created on
//   - options: functional options such as WithDefaultBufferUsage
//
// Returns:
//   - *Cache: the created cache
func NewCache(device gpu.Device, options ...CacheBuilderOption) *Cache {
	c := &Cache{
		device:       device,
		reporter:     common.LogReporter{},
		defaultUsage: gpu.DefaultBufferUsage,
		buffers:      cache.New[*Buffer, gpu.Buffer](),
		textures:     cache.New[*Texture, textureEntry](),
		samplers:     cache.New[*Sampler, samplerEntry](),
		frame:        make(map[*Texture]frameTexture),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Cache) destroyed(d Descriptor) error {
	err := fmt.Errorf("%w: %q", ErrDestroyed, d.Label())
	c.reporter.Report(common.Diagnostic{
		Kind:    common.DiagnosticLifetime,
		Subject: d.Label(),
		Message: err.Error(),
		Err:     err,
	})
	return err
}

// Buffer resolves b to its native buffer, creating it on first use, and flushes the pending writes
// queued on b.
//
// Parameters:
//   - b: the buffer descriptor
//
// Returns:
//   - gpu.Buffer: the native buffer
//   - error: ErrDestroyed, or an error if creation or upload failed
func (c *Cache) Buffer(b *Buffer) (gpu.Buffer, error) {
	if b.destroyed {
		return nil, c.destroyed(b)
	}
	native, err := c.buffers.GetOrCreate(b, func() (gpu.Buffer, cache.Cleanup, error) {
		return c.createBuffer(b)
	})
	if err != nil {
		return nil, err
	}
	q := c.device.Queue()
	for _, w := range b.takeWrites() {
		if err := q.WriteBuffer(native, w.offset, padded(w.data)); err != nil {
			return nil, fmt.Errorf("resource: failed to write buffer %q: %w", b.label, err)
		}
	}
	return native, nil
}

func (c *Cache) createBuffer(b *Buffer) (gpu.Buffer, cache.Cleanup, error) {
	native, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label,
		Size:  b.Size(),
		Usage: common.Coalesce(b.usage, c.defaultUsage),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("resource: failed to create buffer %q: %w", b.label, err)
	}
	if len(b.data) > 0 {
		data := b.data
		if uint64(len(data)) > b.Size() {
			err := fmt.Errorf("%w: %q holds %d bytes, %d uploaded", ErrDataOverflow, b.label, len(data), b.Size())
			c.reporter.Report(common.Diagnostic{
				Kind:    common.DiagnosticData,
				Subject: b.label,
				Message: err.Error(),
				Err:     err,
			})
			data = data[:b.Size()]
		}
		if err := c.device.Queue().WriteBuffer(native, 0, padded(data)); err != nil {
			native.Destroy()
			native.Release()
			return nil, nil, fmt.Errorf("resource: failed to upload buffer %q: %w", b.label, err)
		}
	}
	unsubscribe := b.Subscribe(func(e Event) {
		if e == EventResized {
			c.buffers.Evict(b)
		}
	})
	common.Logger().Debug("[resource] created buffer", "label", b.label, "size", b.Size())
	return native, func() {
		unsubscribe()
		native.Destroy()
		native.Release()
	}, nil
}

// Texture resolves t to its native texture. Volatile textures are acquired once per frame and
// released by EndFrame; they never enter the cache.
//
// Parameters:
//   - t: the texture descriptor
//
// Returns:
//   - gpu.Texture: the native texture, nil for external textures
//   - error: ErrDestroyed, or an error if creation, acquisition or upload failed
func (c *Cache) Texture(t *Texture) (gpu.Texture, error) {
	if t.Volatile() {
		ft, err := c.acquire(t)
		return ft.texture, err
	}
	e, err := c.staticTexture(t)
	return e.texture, err
}

// TextureView resolves t to the default view of its native texture.
//
// Parameters:
//   - t: the texture descriptor
//
// Returns:
//   - gpu.TextureView: the native view
//   - error: ErrDestroyed, or an error if creation, acquisition or upload failed
func (c *Cache) TextureView(t *Texture) (gpu.TextureView, error) {
	if t.Volatile() {
		ft, err := c.acquire(t)
		return ft.view, err
	}
	e, err := c.staticTexture(t)
	return e.view, err
}

func (c *Cache) staticTexture(t *Texture) (textureEntry, error) {
	if t.destroyed {
		return textureEntry{}, c.destroyed(t)
	}
	e, err := c.textures.GetOrCreate(t, func() (textureEntry, cache.Cleanup, error) {
		return c.createTexture(t)
	})
	if err != nil {
		return textureEntry{}, err
	}
	if err := c.flushTexture(t, e.texture); err != nil {
		return textureEntry{}, err
	}
	return e, nil
}

func (c *Cache) createTexture(t *Texture) (textureEntry, cache.Cleanup, error) {
	tex, err := c.device.CreateTexture(t.descriptor())
	if err != nil {
		return textureEntry{}, nil, fmt.Errorf("resource: failed to create texture %q: %w", t.label, err)
	}
	view, err := tex.CreateView()
	if err != nil {
		tex.Destroy()
		tex.Release()
		return textureEntry{}, nil, fmt.Errorf("resource: failed to create view of texture %q: %w", t.label, err)
	}
	unsubscribe := t.Subscribe(func(e Event) {
		if e == EventResized {
			c.textures.Evict(t)
		}
	})
	common.Logger().Debug("[resource] created texture", "label", t.label, "size", t.Size())
	return textureEntry{texture: tex, view: view}, func() {
		unsubscribe()
		view.Release()
		tex.Destroy()
		tex.Release()
	}, nil
}

func (c *Cache) flushTexture(t *Texture, native gpu.Texture) error {
	q := c.device.Queue()
	for _, w := range t.takeWrites() {
		dst := gpu.TextureCopy{Texture: native, MipLevel: w.mipLevel, Origin: w.origin, Aspect: wgpu.TextureAspectAll}
		layout := wgpu.TextureDataLayout{Offset: 0, BytesPerRow: w.bytesPerRow, RowsPerImage: w.size.Height}
		if err := q.WriteTexture(dst, w.data, layout, w.size); err != nil {
			return fmt.Errorf("resource: failed to write texture %q: %w", t.label, err)
		}
	}
	return nil
}

func (c *Cache) acquire(t *Texture) (frameTexture, error) {
	if t.destroyed {
		return frameTexture{}, c.destroyed(t)
	}
	if ft, ok := c.frame[t]; ok {
		return ft, nil
	}

	var ft frameTexture
	switch t.kind {
	case TextureSurface:
		tex, err := t.surface.AcquireTexture()
		if err != nil {
			return frameTexture{}, fmt.Errorf("resource: failed to acquire surface texture %q: %w", t.label, err)
		}
		view, err := tex.CreateView()
		if err != nil {
			tex.Release()
			return frameTexture{}, fmt.Errorf("resource: failed to create surface view %q: %w", t.label, err)
		}
		ft = frameTexture{texture: tex, view: view}
		c.surfaces = append(c.surfaces, t.surface)
	case TextureExternal:
		view, err := t.external.AcquireView()
		if err != nil {
			return frameTexture{}, fmt.Errorf("resource: failed to acquire external texture %q: %w", t.label, err)
		}
		ft = frameTexture{view: view}
	}
	c.frame[t] = ft
	return ft, nil
}

// Sampler resolves s to its native sampler. A sampler mutated since its native object was created
// is evicted and recreated.
//
// Parameters:
//   - s: the sampler descriptor
//
// Returns:
//   - gpu.Sampler: the native sampler
//   - error: ErrDestroyed, or an error if creation failed
func (c *Cache) Sampler(s *Sampler) (gpu.Sampler, error) {
	if s.destroyed {
		return nil, c.destroyed(s)
	}
	if e, ok := c.samplers.Get(s); ok {
		if e.version == s.version {
			return e.sampler, nil
		}
		c.samplers.Evict(s)
	}
	desc := s.Descriptor()
	native, err := c.device.CreateSampler(&desc)
	if err != nil {
		return nil, fmt.Errorf("resource: failed to create sampler %q: %w", s.label, err)
	}
	c.samplers.Put(s, samplerEntry{sampler: native, version: s.version}, native.Release)
	return native, nil
}

// Destroy destroys the native object of d, evicts its cache entry and publishes EventDestroyed.
// Further resolution of d fails with ErrDestroyed.
//
// Parameters:
//   - d: a *Buffer, *Texture or *Sampler
func (c *Cache) Destroy(d Descriptor) {
	switch r := d.(type) {
	case *Buffer:
		if r.destroyed {
			return
		}
		r.destroyed = true
		r.writes = nil
		c.buffers.Evict(r)
		r.events.Notify(EventDestroyed)
	case *Texture:
		if r.destroyed {
			return
		}
		r.destroyed = true
		r.writes = nil
		c.textures.Evict(r)
		r.events.Notify(EventDestroyed)
	case *Sampler:
		if r.destroyed {
			return
		}
		r.destroyed = true
		c.samplers.Evict(r)
		r.events.Notify(EventDestroyed)
	}
}

// Cached reports whether d currently has a cached native object.
func (c *Cache) Cached(d Descriptor) bool {
	switch r := d.(type) {
	case *Buffer:
		_, ok := c.buffers.Get(r)
		return ok
	case *Texture:
		_, ok := c.textures.Get(r)
		return ok
	case *Sampler:
		_, ok := c.samplers.Get(r)
		return ok
	}
	return false
}

// Present presents every surface acquired this frame.
func (c *Cache) Present() {
	for _, s := range c.surfaces {
		s.Present()
	}
	c.surfaces = c.surfaces[:0]
}

// EndFrame releases every volatile texture acquired during the frame.
func (c *Cache) EndFrame() {
	for t, ft := range c.frame {
		if ft.view != nil {
			ft.view.Release()
		}
		if ft.texture != nil {
			ft.texture.Release()
		}
		delete(c.frame, t)
	}
	c.surfaces = c.surfaces[:0]
}

// Purge releases every native object. Descriptors stay valid and are recreated on next resolution.
func (c *Cache) Purge() {
	c.EndFrame()
	c.buffers.Purge()
	c.textures.Purge()
	c.samplers.Purge()
}
