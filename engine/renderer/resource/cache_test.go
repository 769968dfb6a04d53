package resource

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/internal/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, options ...CacheBuilderOption) (*Cache, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	return NewCache(dev, options...), dev
}

func TestBufferResolveIsIdempotent(t *testing.T) {
	c, dev := newCache(t)
	b := NewBuffer(WithBufferLabel("verts"), WithBufferData([]byte{1, 2, 3, 4, 5, 6}))

	n1, err := c.Buffer(b)
	require.NoError(t, err)
	n2, err := c.Buffer(b)
	require.NoError(t, err)

	assert.Same(t, n1, n2)
	assert.Equal(t, 1, dev.Count("Buffer"))
	assert.Equal(t, uint64(8), n1.Size(), "size follows data rounded up to 4")

	fb := n1.(*gputest.Buffer)
	assert.Equal(t, gpu.DefaultBufferUsage, fb.Usage)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 0, 0}, fb.Data)
}

func TestBufferDataBeyondExplicitSizeIsReported(t *testing.T) {
	var diags []common.Diagnostic
	c, _ := newCache(t, WithReporter(common.ReporterFunc(func(d common.Diagnostic) { diags = append(diags, d) })))
	b := NewBuffer(WithBufferLabel("params"), WithBufferSize(4), WithBufferData([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	n, err := c.Buffer(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n.Size())
	assert.Equal(t, []byte{1, 2, 3, 4}, n.(*gputest.Buffer).Data, "upload stops at the explicit size")
	require.Len(t, diags, 1)
	assert.Equal(t, common.DiagnosticData, diags[0].Kind)
	assert.ErrorIs(t, diags[0].Err, ErrDataOverflow)

	_, err = c.Buffer(b)
	require.NoError(t, err)
	assert.Len(t, diags, 1, "reported once at creation")
}

func TestBufferDistinctDescriptorsDoNotAlias(t *testing.T) {
	c, dev := newCache(t)
	a := NewBuffer(WithBufferSize(16))
	b := NewBuffer(WithBufferSize(16))

	na, err := c.Buffer(a)
	require.NoError(t, err)
	nb, err := c.Buffer(b)
	require.NoError(t, err)
	assert.NotSame(t, na, nb)
	assert.Equal(t, 2, dev.Count("Buffer"))
}

func TestBufferUsageOptions(t *testing.T) {
	c, _ := newCache(t, WithDefaultBufferUsage(wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst))

	n, err := c.Buffer(NewBuffer(WithBufferSize(4)))
	require.NoError(t, err)
	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, n.(*gputest.Buffer).Usage)

	n, err = c.Buffer(NewBuffer(WithBufferSize(4), WithBufferUsage(wgpu.BufferUsageVertex)))
	require.NoError(t, err)
	assert.Equal(t, wgpu.BufferUsageVertex, n.(*gputest.Buffer).Usage)
}

func TestBufferPendingWritesFlushAndPad(t *testing.T) {
	c, dev := newCache(t)
	b := NewBuffer(WithBufferSize(16))

	require.NoError(t, b.Write(4, []byte{9, 9, 9}))
	require.NoError(t, b.Write(8, []byte{7, 7, 7, 7}))
	assert.Equal(t, 2, b.Pending())

	n, err := c.Buffer(b)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Pending())

	writes := dev.FakeQueue().WritesTo(n)
	require.Len(t, writes, 2)
	assert.Equal(t, uint64(4), writes[0].Offset)
	assert.Len(t, writes[0].Data, 4, "unaligned write is padded")
	assert.Equal(t, []byte{9, 9, 9}, writes[0].Data[:3])

	_, err = c.Buffer(b)
	require.NoError(t, err)
	assert.Len(t, dev.FakeQueue().WritesTo(n), 2, "flushed writes are not replayed")
}

func TestBufferWriteValidation(t *testing.T) {
	b := NewBuffer(WithBufferSize(8))
	assert.Error(t, b.Write(2, []byte{1, 2}))
	assert.Error(t, b.Write(4, make([]byte, 8)))
	assert.Equal(t, 0, b.Pending())
}

func TestBufferResizeRecreatesNative(t *testing.T) {
	c, dev := newCache(t)
	b := NewBuffer(WithBufferSize(8))
	var events []Event
	b.Subscribe(func(e Event) { events = append(events, e) })

	old, err := c.Buffer(b)
	require.NoError(t, err)
	b.Resize(64)
	assert.True(t, old.(*gputest.Buffer).Destroyed)
	assert.False(t, c.Cached(b))

	n, err := c.Buffer(b)
	require.NoError(t, err)
	assert.NotSame(t, old, n)
	assert.Equal(t, uint64(64), n.Size())
	assert.Equal(t, 2, dev.Count("Buffer"))
	assert.Equal(t, []Event{EventResized}, events)
}

func TestDestroyEvictsAndUnsubscribes(t *testing.T) {
	var diags []common.Diagnostic
	c, _ := newCache(t, WithReporter(common.ReporterFunc(func(d common.Diagnostic) { diags = append(diags, d) })))
	b := NewBuffer(WithBufferSize(8), WithBufferLabel("gone"))

	n, err := c.Buffer(b)
	require.NoError(t, err)
	assert.Equal(t, 1, b.events.Len())

	c.Destroy(b)
	assert.True(t, b.Destroyed())
	assert.True(t, n.(*gputest.Buffer).Destroyed)
	assert.True(t, n.(*gputest.Buffer).Released)
	assert.Equal(t, 0, b.events.Len(), "internal listeners are removed")

	_, err = c.Buffer(b)
	assert.True(t, errors.Is(err, ErrDestroyed))
	require.Len(t, diags, 1)
	assert.Equal(t, common.DiagnosticLifetime, diags[0].Kind)

	c.Destroy(b)
}

func TestStaticTextureResolveAndUpload(t *testing.T) {
	c, dev := newCache(t)
	tex := NewTexture(WithTextureLabel("albedo"), WithTextureSize(2, 2), WithTextureFormat(wgpu.TextureFormatRGBA8Unorm))
	require.NoError(t, tex.Write(0, make([]byte, 16), 8))

	v1, err := c.TextureView(tex)
	require.NoError(t, err)
	v2, err := c.TextureView(tex)
	require.NoError(t, err)
	assert.Same(t, v1, v2)
	assert.Equal(t, 1, dev.Count("Texture"))

	q := dev.FakeQueue()
	require.Len(t, q.TextureWrites, 1)
	assert.Equal(t, uint32(2), q.TextureWrites[0].Size.Width)
	assert.Equal(t, 0, tex.Pending())
}

func TestTextureWriteImageResizes(t *testing.T) {
	c, dev := newCache(t)
	tex := NewTexture()
	_, err := c.Texture(tex)
	require.NoError(t, err)

	img := common.TextureStagingData{Pixels: make([]byte, 4*3*2), Width: 3, Height: 2}
	require.NoError(t, tex.WriteImage(img))
	assert.False(t, c.Cached(tex), "resize evicts the old native texture")

	native, err := c.Texture(tex)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), native.(*gputest.Texture).Descriptor.Size.Width)
	assert.Equal(t, 2, dev.Count("Texture"))
	assert.True(t, dev.Textures[0].Destroyed)
}

func TestTextureWriteValidation(t *testing.T) {
	tex := NewTexture(WithTextureSize(4, 4))
	assert.Error(t, tex.Write(0, make([]byte, 8), 16))
}

type fakeSurface struct {
	dev       *gputest.Device
	acquired  int
	presented int
}

func (s *fakeSurface) AcquireTexture() (gpu.Texture, error) {
	s.acquired++
	return s.dev.CreateTexture(&wgpu.TextureDescriptor{Label: "surface"})
}

func (s *fakeSurface) Present() { s.presented++ }

func TestSurfaceTextureIsFrameScoped(t *testing.T) {
	c, dev := newCache(t)
	surf := &fakeSurface{dev: dev}
	tex := NewSurfaceTexture(surf, WithTextureFormat(wgpu.TextureFormatBGRA8Unorm))
	assert.True(t, tex.Volatile())
	assert.Error(t, tex.Write(0, nil, 0))

	v1, err := c.TextureView(tex)
	require.NoError(t, err)
	v2, err := c.TextureView(tex)
	require.NoError(t, err)
	assert.Same(t, v1, v2, "acquired once per frame")
	assert.False(t, c.Cached(tex))

	c.Present()
	c.EndFrame()
	assert.Equal(t, 1, surf.presented)
	assert.True(t, v1.(*gputest.Handle).Released)

	v3, err := c.TextureView(tex)
	require.NoError(t, err)
	assert.NotSame(t, v1, v3)
	assert.Equal(t, 2, surf.acquired)
}

type fakeExternal struct {
	dev *gputest.Device
}

func (e fakeExternal) AcquireView() (gpu.TextureView, error) {
	tex, err := e.dev.CreateTexture(&wgpu.TextureDescriptor{Label: "video"})
	if err != nil {
		return nil, err
	}
	return tex.CreateView()
}

func TestExternalTexture(t *testing.T) {
	c, dev := newCache(t)
	tex := NewExternalTexture(fakeExternal{dev: dev})

	v, err := c.TextureView(tex)
	require.NoError(t, err)
	native, err := c.Texture(tex)
	require.NoError(t, err)
	assert.Nil(t, native)

	c.EndFrame()
	assert.True(t, v.(*gputest.Handle).Released)
}

func TestSamplerVersionEviction(t *testing.T) {
	c, dev := newCache(t)
	s := NewSampler(WithSamplerLabel("linear"))
	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	n1, err := c.Sampler(s)
	require.NoError(t, err)
	n2, err := c.Sampler(s)
	require.NoError(t, err)
	assert.Same(t, n1, n2)

	desc := n1.(*gputest.Handle).Desc.(wgpu.SamplerDescriptor)
	assert.Equal(t, wgpu.FilterModeLinear, desc.MagFilter)
	assert.Equal(t, wgpu.AddressModeRepeat, desc.AddressModeU)
	assert.Equal(t, float32(32), desc.LodMaxClamp)

	s.SetCompare(wgpu.CompareFunctionLess)
	n3, err := c.Sampler(s)
	require.NoError(t, err)
	assert.NotSame(t, n1, n3)
	assert.True(t, n1.(*gputest.Handle).Released)
	assert.Equal(t, 2, dev.Count("Sampler"))
	assert.Equal(t, []Event{EventChanged}, events)
}

func TestPurgeKeepsDescriptorsValid(t *testing.T) {
	c, dev := newCache(t)
	b := NewBuffer(WithBufferSize(4))
	_, err := c.Buffer(b)
	require.NoError(t, err)

	c.Purge()
	assert.False(t, b.Destroyed())
	_, err = c.Buffer(b)
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Count("Buffer"))
}
