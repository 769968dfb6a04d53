package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureKind distinguishes cacheable textures from per-frame volatile ones.
type TextureKind int

const (
	// TextureStatic is an application-owned texture, cached until destroyed or resized.
	TextureStatic TextureKind = iota

	// TextureSurface is the presentation surface texture. Its memory rotates every frame, so it is
	// acquired once per frame and never cached.
	TextureSurface

	// TextureExternal is externally produced content such as a video frame, valid for one frame.
	TextureExternal
)

type textureWrite struct {
	mipLevel    uint32
	origin      wgpu.Origin3D
	size        wgpu.Extent3D
	bytesPerRow uint32
	data        []byte
}

// Texture describes a logical GPU texture, or a reference to a per-frame surface or external texture.
type Texture struct {
	label       string
	kind        TextureKind
	width       uint32
	height      uint32
	layers      uint32
	format      wgpu.TextureFormat
	usage       wgpu.TextureUsage
	dimension   wgpu.TextureDimension
	sampleCount uint32
	mipLevels   uint32
	writes      []textureWrite
	surface     SurfaceSource
	external    ExternalSource
	destroyed   bool
	events      common.Subject[Event]
}

var _ Descriptor = &Texture{}

// NewTexture creates a static Texture descriptor with all specified options applied.
//
// Parameters:
//   - options: functional options such as WithTextureSize and WithTextureFormat
//
// Returns:
//   - *Texture: the texture descriptor
func NewTexture(options ...TextureBuilderOption) *Texture {
	t := &Texture{kind: TextureStatic}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// NewSurfaceTexture creates a descriptor referencing the current texture of a presentation surface.
// Size and format should match the surface configuration so pass formats are derived correctly.
//
// Parameters:
//   - src: the surface the texture is acquired from each frame
//   - options: functional options such as WithTextureSize and WithTextureFormat
//
// Returns:
//   - *Texture: the surface texture descriptor
func NewSurfaceTexture(src SurfaceSource, options ...TextureBuilderOption) *Texture {
	t := NewTexture(options...)
	t.kind = TextureSurface
	t.surface = src
	return t
}

// NewExternalTexture creates a descriptor referencing per-frame external content.
//
// Parameters:
//   - src: the source acquired each frame
//   - options: functional options such as WithTextureSize
//
// Returns:
//   - *Texture: the external texture descriptor
func NewExternalTexture(src ExternalSource, options ...TextureBuilderOption) *Texture {
	t := NewTexture(options...)
	t.kind = TextureExternal
	t.external = src
	return t
}

func (t *Texture) Label() string {
	return t.label
}

func (t *Texture) Kind() TextureKind {
	return t.kind
}

// Volatile reports whether the texture is resolved fresh every frame.
func (t *Texture) Volatile() bool {
	return t.kind != TextureStatic
}

// Size returns the texture extent. Unset dimensions default to 1.
func (t *Texture) Size() wgpu.Extent3D {
	return wgpu.Extent3D{
		Width:              common.Coalesce(t.width, 1),
		Height:             common.Coalesce(t.height, 1),
		DepthOrArrayLayers: common.Coalesce(t.layers, 1),
	}
}

// Format returns the texel format, defaulting to RGBA8Unorm.
func (t *Texture) Format() wgpu.TextureFormat {
	return common.Coalesce(t.format, wgpu.TextureFormatRGBA8Unorm)
}

// SampleCount returns the sample count, defaulting to 1.
func (t *Texture) SampleCount() uint32 {
	return common.Coalesce(t.sampleCount, 1)
}

func (t *Texture) MipLevels() uint32 {
	return common.Coalesce(t.mipLevels, 1)
}

func (t *Texture) Destroyed() bool {
	return t.destroyed
}

func (t *Texture) Subscribe(fn func(Event)) common.Unsubscribe {
	return t.events.Subscribe(fn)
}

func (t *Texture) descriptor() *wgpu.TextureDescriptor {
	usage := t.usage
	if usage == 0 {
		usage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment
	}
	return &wgpu.TextureDescriptor{
		Label:         t.label,
		Size:          t.Size(),
		MipLevelCount: t.MipLevels(),
		SampleCount:   t.SampleCount(),
		Dimension:     common.Coalesce(t.dimension, wgpu.TextureDimension2D),
		Format:        t.Format(),
		Usage:         usage,
	}
}

// Write queues an upload of a whole mip level.
//
// Parameters:
//   - mipLevel: the destination mip level
//   - data: tightly packed texel rows
//   - bytesPerRow: the byte length of one row in data
//
// Returns:
//   - error: an error if the texture is volatile or data is too short for the level
func (t *Texture) Write(mipLevel uint32, data []byte, bytesPerRow uint32) error {
	size := t.Size()
	size.Width = max(size.Width>>mipLevel, 1)
	size.Height = max(size.Height>>mipLevel, 1)
	return t.WriteRegion(mipLevel, wgpu.Origin3D{}, size, data, bytesPerRow)
}

// WriteRegion queues an upload of a sub-region flushed the next time the texture is resolved.
//
// Parameters:
//   - mipLevel: the destination mip level
//   - origin: the texel origin of the region
//   - size: the region extent
//   - data: texel rows of bytesPerRow bytes each
//   - bytesPerRow: the byte length of one row in data
//
// Returns:
//   - error: an error if the texture is volatile or data is too short for the region
func (t *Texture) WriteRegion(mipLevel uint32, origin wgpu.Origin3D, size wgpu.Extent3D, data []byte, bytesPerRow uint32) error {
	if t.Volatile() {
		return fmt.Errorf("resource: texture %q is not writable", t.label)
	}
	need := uint64(bytesPerRow) * uint64(size.Height) * uint64(max(size.DepthOrArrayLayers, 1))
	if uint64(len(data)) < need {
		return fmt.Errorf("resource: texture %q write needs %d bytes, got %d", t.label, need, len(data))
	}
	t.writes = append(t.writes, textureWrite{
		mipLevel:    mipLevel,
		origin:      origin,
		size:        size,
		bytesPerRow: bytesPerRow,
		data:        append([]byte(nil), data...),
	})
	return nil
}

// WriteImage queues an upload of decoded RGBA pixels into mip level 0, resizing the texture
// first when the image size differs.
//
// Parameters:
//   - img: the staged image, e.g. from common.LoadImage
//
// Returns:
//   - error: an error if the texture is volatile or the pixel data is short
func (t *Texture) WriteImage(img common.TextureStagingData) error {
	if img.Width != t.Size().Width || img.Height != t.Size().Height {
		t.Resize(img.Width, img.Height)
	}
	return t.Write(0, img.Pixels, 4*img.Width)
}

// Pending returns the number of queued writes.
func (t *Texture) Pending() int {
	return len(t.writes)
}

// Resize changes the texture extent. The native texture is destroyed and recreated on next
// resolution, and every cache entry built on the old identity is invalidated through EventResized.
// Queued writes no longer fitting the new size are dropped.
//
// Parameters:
//   - width: the new width in texels
//   - height: the new height in texels
func (t *Texture) Resize(width, height uint32) {
	if width == t.width && height == t.height {
		return
	}
	t.width, t.height = width, height
	kept := t.writes[:0]
	for _, w := range t.writes {
		if w.origin.X+w.size.Width <= t.Size().Width && w.origin.Y+w.size.Height <= t.Size().Height {
			kept = append(kept, w)
		}
	}
	t.writes = kept
	t.events.Notify(EventResized)
}

func (t *Texture) takeWrites() []textureWrite {
	w := t.writes
	t.writes = nil
	return w
}
