package bind_group

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gpu/internal/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sceneShader = `
struct Scene {
    x: f32,
    tint: vec4f,
    scale: f32,
};
@group(0) @binding(0) var<uniform> scene: Scene;
@group(0) @binding(1) var samp: sampler;
@group(0) @binding(2) var tex: texture_2d<f32>;

@vertex
fn vs_main(@location(0) position: vec3f) -> @builtin(position) vec4f {
    return vec4f(position * scene.scale, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return textureSample(tex, samp, vec2f(scene.x)) * scene.tint;
}
`

const exposureShader = `
@group(1) @binding(0) var<uniform> exposure: f32;

@compute @workgroup_size(1)
fn main() {
    _ = exposure;
}
`

type harness struct {
	dev       *gputest.Device
	resources *resource.Cache
	deriver   *layout.Deriver
	compiler  *Compiler
	diags     []common.Diagnostic
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dev: gputest.NewDevice()}
	reporter := common.ReporterFunc(func(d common.Diagnostic) { h.diags = append(h.diags, d) })
	refl, err := shader.NewReflectionCache(0)
	require.NoError(t, err)
	h.resources = resource.NewCache(h.dev, resource.WithReporter(reporter))
	h.deriver = layout.NewDeriver(h.dev, refl, layout.WithReporter(reporter))
	h.compiler = NewCompiler(h.dev, h.resources, h.deriver, WithReporter(reporter))
	return h
}

func (h *harness) sceneLayout(t *testing.T) *layout.PipelineLayout {
	t.Helper()
	src := shader.NewSource(sceneShader, shader.WithLabel("scene.wgsl"))
	l, err := h.deriver.Derive(layout.Stages{Vertex: src, Fragment: src})
	require.NoError(t, err)
	return l
}

func f32(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func sceneResources(u *Uniform, tex *resource.Texture) *Resources {
	return NewResources(
		WithResourcesLabel("material"),
		WithResource("scene", UniformResource(u)),
		WithResource("samp", SamplerResource(resource.NewSampler())),
		WithResource("tex", TextureResource(tex)),
	)
}

func TestResolveAllocatesBackingBuffer(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(WithField("x", float32(1))), resource.NewTexture())

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	require.Len(t, r.Groups(), 1)
	assert.False(t, r.Volatile())

	require.Len(t, h.dev.BindGroups, 1)
	assert.Len(t, h.dev.BindGroups[0].Entries, 3)

	backing := r.Backing("scene")
	require.NotNil(t, backing)
	binding, _ := l.Binding("scene")
	assert.Equal(t, binding.Struct.Size, backing.Size())
	assert.Equal(t, uint64(48), backing.Size())
	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, backing.Usage())

	native, err := h.resources.Buffer(backing)
	require.NoError(t, err)
	writes := h.dev.FakeQueue().WritesTo(native)
	require.Len(t, writes, 1)
	x, _ := binding.Struct.Field("x")
	assert.Equal(t, x.Offset, writes[0].Offset)
	assert.Equal(t, f32(1), writes[0].Data)
	assert.Empty(t, h.diags)
}

func TestResolveIsCachedByLayoutAndResources(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(), resource.NewTexture())

	r1, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	r2, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.Same(t, r1.Groups()[0], r2.Groups()[0])
	assert.Equal(t, 1, h.dev.Count("BindGroup"))

	other := sceneResources(NewUniform(), resource.NewTexture())
	r3, err := h.compiler.Resolve(l, other)
	require.NoError(t, err)
	assert.NotSame(t, r1, r3)
	assert.Equal(t, 2, h.compiler.Len())
}

func TestUniformFieldWritesTrackReflectedOffsets(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	u := NewUniform()
	res := sceneResources(u, resource.NewTexture())

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)

	u.Set("scale", float32(2))
	u.Set("tint", [4]float32{1, 0, 0, 1})
	assert.Equal(t, 2, r.Backing("scene").Pending())
	assert.False(t, r.Dirty(), "field writes do not rebuild the bind group")

	_, err = h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Backing("scene").Pending())
	assert.Equal(t, 1, h.dev.Count("BindGroup"))

	native, err := h.resources.Buffer(r.Backing("scene"))
	require.NoError(t, err)
	writes := h.dev.FakeQueue().WritesTo(native)
	require.Len(t, writes, 2)
	assert.Equal(t, uint64(32), writes[0].Offset)
	assert.Equal(t, f32(2), writes[0].Data)
	assert.Equal(t, uint64(16), writes[1].Offset)
	assert.Len(t, writes[1].Data, 16)
	assert.Equal(t, f32(2), native.(*gputest.Buffer).Data[32:36])
}

func TestReplacingResourceRebuildsLazily(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(), resource.NewTexture())

	r1, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	oldBacking := r1.Backing("scene")

	tex, _ := res.Get("tex")
	res.Set("tex", tex)
	assert.False(t, r1.Dirty(), "setting the bound resource again is a no-op")

	res.Set("tex", TextureResource(resource.NewTexture()))
	assert.True(t, r1.Dirty())
	assert.Equal(t, 1, h.dev.Count("BindGroup"), "rebuild waits for next use")

	r2, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.NotSame(t, r1, r2)
	assert.Equal(t, 2, h.dev.Count("BindGroup"))
	assert.True(t, r1.Groups()[0].(*gputest.Handle).Released)
	assert.True(t, oldBacking.Destroyed(), "backing buffer is owned by its resolution")
	assert.NotSame(t, oldBacking, r2.Backing("scene"))
}

func TestUnrelatedResourceChangeKeepsResolution(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(), resource.NewTexture())

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	res.Set("unused", BufferResource(resource.NewBuffer(resource.WithBufferSize(4))))
	assert.False(t, r.Dirty())
}

func TestBoundDescriptorEventsMarkDirty(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	tex := resource.NewTexture(resource.WithTextureSize(4, 4))
	res := sceneResources(NewUniform(), tex)

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	tex.Resize(8, 8)
	assert.True(t, r.Dirty())

	r2, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.False(t, r2.Dirty())
	assert.Equal(t, 2, h.dev.Count("Texture"))

	samp, _ := res.Get("samp")
	samp.Sampler().SetFilter(wgpu.FilterModeNearest, wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest)
	assert.True(t, r2.Dirty())
}

func TestDestroyedResourceFailsResolution(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	tex := resource.NewTexture()
	res := sceneResources(NewUniform(), tex)

	_, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	h.resources.Destroy(tex)

	_, err = h.compiler.Resolve(l, res)
	assert.True(t, errors.Is(err, resource.ErrDestroyed))
	require.Len(t, h.diags, 1)
	assert.Equal(t, common.DiagnosticLifetime, h.diags[0].Kind)
}

func TestMissingResourceIsConfigurationError(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := NewResources(
		WithResourcesLabel("incomplete"),
		WithResource("scene", UniformResource(NewUniform())),
		WithResource("tex", TextureResource(resource.NewTexture())),
	)

	_, err := h.compiler.Resolve(l, res)
	assert.True(t, errors.Is(err, ErrMissingResource))
	require.Len(t, h.diags, 1)
	assert.Equal(t, common.DiagnosticConfiguration, h.diags[0].Kind)
	assert.Equal(t, "incomplete", h.diags[0].Subject)
	assert.Equal(t, 0, h.dev.Count("BindGroup"))
	assert.Equal(t, 0, h.compiler.Len())
}

func TestResourceKindMismatch(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(), resource.NewTexture())
	res.Set("samp", TextureResource(resource.NewTexture()))

	_, err := h.compiler.Resolve(l, res)
	assert.True(t, errors.Is(err, ErrResourceKind))
	require.Len(t, h.diags, 1)
}

type fakeSurface struct {
	dev *gputest.Device
}

func (s fakeSurface) AcquireTexture() (gpu.Texture, error) {
	return s.dev.CreateTexture(&wgpu.TextureDescriptor{Label: "surface"})
}

func (s fakeSurface) Present() {}

func TestVolatileResolutionIsFrameScoped(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(), resource.NewSurfaceTexture(fakeSurface{dev: h.dev}))

	r1, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.True(t, r1.Volatile())
	assert.Equal(t, 0, h.compiler.Len(), "volatile resolutions are never cached")

	r2, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.Same(t, r1, r2, "reused within the frame")

	h.compiler.EndFrame()
	h.resources.EndFrame()
	assert.True(t, r1.Groups()[0].(*gputest.Handle).Released)

	r3, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.NotSame(t, r1, r3)
	assert.Equal(t, 2, h.dev.Count("BindGroup"))
}

func TestUnknownFieldAndBadValueAreReported(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	u := NewUniform(WithUniformLabel("params"), WithField("missing", float32(1)))
	res := sceneResources(u, resource.NewTexture())

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err, "bad fields do not abort the resolution")
	require.Len(t, h.diags, 1)
	assert.True(t, errors.Is(h.diags[0].Err, ErrUnknownField))
	assert.Equal(t, "params", h.diags[0].Subject)

	u.Set("x", [16]float32{})
	require.Len(t, h.diags, 2)
	assert.Equal(t, common.DiagnosticData, h.diags[1].Kind)
	assert.True(t, errors.Is(h.diags[1].Err, ErrFieldValue))

	u.Set("x", "one")
	require.Len(t, h.diags, 3)
	assert.Equal(t, 0, r.Backing("scene").Pending())
}

func TestScalarUniformUsesUnnamedField(t *testing.T) {
	h := newHarness(t)
	src := shader.NewSource(exposureShader)
	l, err := h.deriver.Derive(layout.Stages{Compute: src})
	require.NoError(t, err)

	u := NewUniform(WithField("", float32(0.5)))
	res := NewResources(WithResource("exposure", UniformResource(u)))

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	require.Len(t, r.Groups(), 2, "group 0 is an empty gap group")
	assert.Equal(t, uint64(4), r.Backing("exposure").Size())
	assert.Empty(t, h.dev.BindGroups[0].Entries)
	assert.Len(t, h.dev.BindGroups[1].Entries, 1)
	assert.Empty(t, h.diags)
}

func TestEvictAndPurge(t *testing.T) {
	h := newHarness(t)
	l := h.sceneLayout(t)
	res := sceneResources(NewUniform(), resource.NewTexture())

	r, err := h.compiler.Resolve(l, res)
	require.NoError(t, err)
	assert.Equal(t, 1, h.compiler.Evict(res))
	assert.True(t, r.Backing("scene").Destroyed())

	_, err = h.compiler.Resolve(l, res)
	require.NoError(t, err)
	h.compiler.Purge()
	assert.Equal(t, 0, h.compiler.Len())
}

func TestHalfFieldsEncodeAsBinary16(t *testing.T) {
	assert.True(t, isHalfType("f16"))
	assert.True(t, isHalfType("vec4h"))
	assert.True(t, isHalfType("vec2<f16>"))
	assert.False(t, isHalfType("vec4f"))
	assert.False(t, isHalfType("mat4x4<f32>"))
}
