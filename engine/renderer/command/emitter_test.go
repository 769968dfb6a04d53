package command

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gpu/internal/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const litShader = `
struct Scene {
    x: f32,
    tint: vec4f,
};

@group(0) @binding(0) var<uniform> scene: Scene;
@group(0) @binding(1) var samp: sampler;
@group(0) @binding(2) var tex: texture_2d<f32>;

@vertex
fn vs_main(@location(0) position: vec3f) -> @builtin(position) vec4f {
    return vec4f(position * scene.x, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return textureSample(tex, samp, vec2f(0.5, 0.5)) * scene.tint;
}
`

const fullscreenShader = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4f {
    let uv = vec2f(f32((i << 1u) & 2u), f32(i & 2u));
    return vec4f(uv * 2.0 - 1.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return vec4f(1.0);
}
`

const particleShader = `
@group(0) @binding(0) var<storage, read_write> particles: array<vec4f>;

@compute @workgroup_size(64)
fn simulate(@builtin(global_invocation_id) id: vec3u) {
    particles[id.x] = particles[id.x] * 0.5;
}
`

var rgba8 = pipeline.PassFormat{ColorFormats: []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}}

type harness struct {
	dev       *gputest.Device
	resources *resource.Cache
	emitter   *Emitter
	diags     []common.Diagnostic
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dev: gputest.NewDevice()}
	reporter := common.ReporterFunc(func(d common.Diagnostic) { h.diags = append(h.diags, d) })
	refl, err := shader.NewReflectionCache(0)
	require.NoError(t, err)
	deriver := layout.NewDeriver(h.dev, refl, layout.WithReporter(reporter))
	h.resources = resource.NewCache(h.dev, resource.WithReporter(reporter))
	groups := bind_group.NewCompiler(h.dev, h.resources, deriver, bind_group.WithReporter(reporter))
	pipelines := pipeline.NewCompiler(h.dev, refl, shader.NewModuleCache(h.dev, false), deriver, pipeline.WithReporter(reporter))
	h.emitter = NewEmitter(pipelines, groups, h.resources, WithReporter(reporter))
	return h
}

func (h *harness) pass(t *testing.T) (*gputest.Recorder, *RenderState) {
	t.Helper()
	enc, err := h.dev.CreateCommandEncoder("test")
	require.NoError(t, err)
	rec := enc.BeginRenderPass(&gpu.RenderPassDescriptor{Label: "test"}).(*gputest.Recorder)
	return rec, NewPassState(rec)
}

func (h *harness) bundle(t *testing.T) (*gputest.Recorder, *RenderState) {
	t.Helper()
	enc, err := h.dev.CreateRenderBundleEncoder(&gpu.RenderBundleEncoderDescriptor{ColorFormats: rgba8.ColorFormats})
	require.NoError(t, err)
	return enc.(*gputest.Recorder), NewBundleState(enc)
}

func litPipeline(opts ...pipeline.RenderPipelineBuilderOption) *pipeline.RenderPipeline {
	src := shader.NewSource(litShader)
	opts = append([]pipeline.RenderPipelineBuilderOption{pipeline.WithVertexShader(src), pipeline.WithFragmentShader(src)}, opts...)
	return pipeline.NewRenderPipeline("lit", opts...)
}

func sceneResources(tex *resource.Texture) *bind_group.Resources {
	return bind_group.NewResources(
		bind_group.WithResourcesLabel("scene"),
		bind_group.WithResource("scene", bind_group.UniformResource(bind_group.NewUniform(bind_group.WithField("x", float32(1))))),
		bind_group.WithResource("samp", bind_group.SamplerResource(resource.NewSampler())),
		bind_group.WithResource("tex", bind_group.TextureResource(tex)),
	)
}

func triangle(p *pipeline.RenderPipeline, opts ...RenderObjectBuilderOption) *RenderObject {
	attrs := pipeline.NewVertexAttributes(pipeline.WithAttribute("position", pipeline.VertexAttribute{
		Buffer: resource.NewBufferOf(make([]float32, 9), resource.WithBufferLabel("positions")),
	}))
	tex := resource.NewTexture(resource.WithTextureSize(2, 2), resource.WithTextureFormat(wgpu.TextureFormatRGBA8Unorm))
	opts = append([]RenderObjectBuilderOption{WithAttributes(attrs), WithResources(sceneResources(tex))}, opts...)
	return NewRenderObject("triangle", p, opts...)
}

func TestSameObjectTwiceIssuesStateOnce(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	obj := triangle(litPipeline())

	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))

	assert.Equal(t, 1, rec.Count("SetPipeline"))
	assert.Equal(t, 1, rec.Count("SetBindGroup"))
	assert.Equal(t, 1, rec.Count("SetVertexBuffer"))
	assert.Equal(t, 0, rec.Count("SetIndexBuffer"))
	require.Equal(t, 2, rec.Count("Draw"))
	assert.Equal(t, []any{uint32(3), uint32(1), uint32(0), uint32(0)}, rec.Filter("Draw")[0].Args, "count derives from the position buffer")
	assert.Equal(t, 3, s.Issued())
	assert.Equal(t, 3, s.Skipped())
	assert.Empty(t, h.diags)
}

func TestStateIsPerEncoder(t *testing.T) {
	h := newHarness(t)
	obj := triangle(litPipeline())
	first, s1 := h.pass(t)
	second, s2 := h.pass(t)

	require.NoError(t, h.emitter.EmitRender(s1, obj, rgba8))
	require.NoError(t, h.emitter.EmitRender(s2, obj, rgba8))

	assert.Equal(t, 1, first.Count("SetPipeline"))
	assert.Equal(t, 1, second.Count("SetPipeline"))
	assert.Equal(t, first.Filter("SetPipeline")[0].Args, second.Filter("SetPipeline")[0].Args)
}

func TestChangingOneBindGroupReissuesOnlyThatIndex(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	p, _ := h.dev.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{Label: "p"})
	g0, _ := h.dev.CreateBindGroup(&gpu.BindGroupDescriptor{Label: "g0"})
	g1, _ := h.dev.CreateBindGroup(&gpu.BindGroupDescriptor{Label: "g1"})
	g1b, _ := h.dev.CreateBindGroup(&gpu.BindGroupDescriptor{Label: "g1b"})

	assert.True(t, s.SetPipeline(p))
	assert.True(t, s.SetBindGroup(0, g0))
	assert.True(t, s.SetBindGroup(1, g1))

	assert.False(t, s.SetPipeline(p))
	assert.False(t, s.SetBindGroup(0, g0))
	assert.True(t, s.SetBindGroup(1, g1b))

	calls := rec.Filter("SetBindGroup")
	require.Len(t, calls, 3)
	assert.Equal(t, []any{uint32(1), g1b}, calls[2].Args)
	assert.Equal(t, 1, rec.Count("SetPipeline"))
}

func TestForgetReissuesEverything(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	obj := triangle(litPipeline(), WithViewport(Viewport{Width: 800, Height: 600, MaxDepth: 1}))

	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	s.Forget()
	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))

	assert.Equal(t, 2, rec.Count("SetPipeline"))
	assert.Equal(t, 2, rec.Count("SetViewport"))
}

func TestDynamicStateIsDiffed(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	obj := triangle(litPipeline(),
		WithViewport(Viewport{Width: 800, Height: 600, MaxDepth: 1}),
		WithScissor(Scissor{Width: 400, Height: 300}),
		WithBlendConstant(wgpu.Color{R: 1, A: 1}),
	)

	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	assert.Equal(t, 1, rec.Count("SetViewport"))
	assert.Equal(t, 1, rec.Count("SetScissorRect"))
	assert.Equal(t, 1, rec.Count("SetBlendConstant"))

	obj.SetViewport(&Viewport{Width: 1024, Height: 768, MaxDepth: 1})
	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	assert.Equal(t, 2, rec.Count("SetViewport"))
	assert.Equal(t, 1, rec.Count("SetScissorRect"))
	assert.Equal(t, 0, rec.Count("SetStencilReference"), "pipeline never replaces stencil values")
}

func TestBundleStateSkipsPassState(t *testing.T) {
	h := newHarness(t)
	rec, s := h.bundle(t)
	obj := triangle(litPipeline(),
		WithViewport(Viewport{Width: 800, Height: 600, MaxDepth: 1}),
		WithOcclusionQuery(0),
	)

	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	assert.True(t, s.Bundle())
	assert.Equal(t, 0, rec.Count("SetViewport"))
	assert.Equal(t, 0, rec.Count("BeginOcclusionQuery"))
	assert.Equal(t, 1, rec.Count("Draw"))

	deps := s.Dependencies()
	require.Len(t, deps, 3, "pipeline, bind groups and one vertex buffer")
	for _, d := range deps {
		assert.False(t, d.Stale())
	}
}

func TestResizedVertexBufferMakesDependencyStale(t *testing.T) {
	h := newHarness(t)
	_, s := h.bundle(t)
	obj := triangle(litPipeline())
	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))

	a, _ := obj.Attributes().Get("position")
	a.Buffer.Resize(72)

	stale := 0
	for _, d := range s.Dependencies() {
		if d.Stale() {
			stale++
		}
	}
	assert.Equal(t, 1, stale)
}

type externalFrame struct {
	dev *gputest.Device
}

func (e externalFrame) AcquireView() (gpu.TextureView, error) {
	t, err := e.dev.CreateTexture(&wgpu.TextureDescriptor{Label: "video"})
	if err != nil {
		return nil, err
	}
	return t.CreateView()
}

func TestVolatileBindingIsRejectedInBundles(t *testing.T) {
	h := newHarness(t)
	video := resource.NewExternalTexture(externalFrame{dev: h.dev}, resource.WithTextureSize(2, 2))
	obj := triangle(litPipeline())
	obj.SetResources(sceneResources(video))

	_, bs := h.bundle(t)
	err := h.emitter.EmitRender(bs, obj, rgba8)
	assert.True(t, errors.Is(err, ErrVolatileBinding))
	require.Len(t, h.diags, 1)
	assert.Equal(t, common.DiagnosticConfiguration, h.diags[0].Kind)

	rec, ps := h.pass(t)
	require.NoError(t, h.emitter.EmitRender(ps, obj, rgba8), "per-frame resources are fine in passes")
	assert.Equal(t, 1, rec.Count("Draw"))
}

func TestIndexedDrawDerivesCountAndFormat(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	obj := triangle(litPipeline(),
		WithIndexBuffer(resource.NewBufferOf([]uint16{0, 1, 2}), wgpu.IndexFormatUndefined),
		WithInstances(4, 1),
		WithBaseVertex(2),
	)
	assert.Equal(t, wgpu.IndexFormatUint16, obj.IndexFormat())

	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	set := rec.Filter("SetIndexBuffer")
	require.Len(t, set, 1)
	assert.Equal(t, wgpu.IndexFormatUint16, set[0].Args[1])
	assert.Equal(t, []any{uint32(3), uint32(4), uint32(0), int32(2), uint32(1)}, rec.Filter("DrawIndexed")[0].Args)
	assert.Equal(t, 0, rec.Count("Draw"))
}

func TestIndirectDraws(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	args := resource.NewBufferOf([]uint32{3, 1, 0, 0, 0}, resource.WithBufferUsage(wgpu.BufferUsageIndirect|wgpu.BufferUsageCopyDst))

	require.NoError(t, h.emitter.EmitRender(s, triangle(litPipeline(), WithIndirect(args, 0)), rgba8))
	indexed := triangle(litPipeline(),
		WithIndexBuffer(resource.NewBufferOf([]uint32{0, 1, 2}), wgpu.IndexFormatUndefined),
		WithIndirect(args, 4),
	)
	require.NoError(t, h.emitter.EmitRender(s, indexed, rgba8))

	assert.Equal(t, 1, rec.Count("DrawIndirect"))
	require.Equal(t, 1, rec.Count("DrawIndexedIndirect"))
	assert.Equal(t, uint64(4), rec.Filter("DrawIndexedIndirect")[0].Args[1])
	assert.Equal(t, 0, rec.Count("Draw"))
}

func TestOcclusionQueryWrapsDraw(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	require.NoError(t, h.emitter.EmitRender(s, triangle(litPipeline(), WithOcclusionQuery(5)), rgba8))

	n := len(rec.Commands)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, []string{"BeginOcclusionQuery", "Draw", "EndOcclusionQuery"}, names(rec.Commands[n-3:]))
	assert.Equal(t, []any{uint32(5)}, rec.Commands[n-3].Args)
}

func names(cmds []gputest.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name
	}
	return out
}

func TestStencilReferenceNeedsReplaceAndDepth(t *testing.T) {
	h := newHarness(t)
	replace := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationReplace,
	}
	obj := triangle(litPipeline(pipeline.WithStencil(replace, replace, 0xFF, 0xFF)), WithStencilReference(7))

	rec, s := h.pass(t)
	require.NoError(t, h.emitter.EmitRender(s, obj, rgba8))
	assert.Equal(t, 0, rec.Count("SetStencilReference"))

	withDepth := rgba8
	withDepth.DepthStencilFormat = wgpu.TextureFormatDepth24PlusStencil8
	rec, s = h.pass(t)
	require.NoError(t, h.emitter.EmitRender(s, obj, withDepth))
	require.NoError(t, h.emitter.EmitRender(s, obj, withDepth))
	require.Equal(t, 1, rec.Count("SetStencilReference"))
	assert.Equal(t, []any{uint32(7)}, rec.Filter("SetStencilReference")[0].Args)
}

func TestFailedObjectIssuesNothing(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	broken := triangle(litPipeline())
	broken.Resources().Delete("tex")

	err := h.emitter.EmitRender(s, broken, rgba8)
	assert.True(t, errors.Is(err, bind_group.ErrMissingResource))
	assert.Empty(t, rec.Commands)
	require.Len(t, h.diags, 1)

	require.NoError(t, h.emitter.EmitRender(s, triangle(litPipeline()), rgba8), "independent objects still draw")
	assert.Equal(t, 1, rec.Count("Draw"))
}

func TestMissingResourceMap(t *testing.T) {
	h := newHarness(t)
	_, s := h.pass(t)
	obj := triangle(litPipeline())
	obj.SetResources(nil)

	err := h.emitter.EmitRender(s, obj, rgba8)
	assert.True(t, errors.Is(err, bind_group.ErrMissingResource))
	require.Len(t, h.diags, 1)
	assert.Equal(t, "triangle", h.diags[0].Subject)
}

func TestDrawCountWithoutVertexInputs(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	src := shader.NewSource(fullscreenShader)
	p := pipeline.NewRenderPipeline("fullscreen", pipeline.WithVertexShader(src), pipeline.WithFragmentShader(src))

	err := h.emitter.EmitRender(s, NewRenderObject("quad", p), rgba8)
	assert.True(t, errors.Is(err, ErrWorkSize))
	require.Len(t, h.diags, 1)

	require.NoError(t, h.emitter.EmitRender(s, NewRenderObject("quad", p, WithDrawRange(3, 0)), rgba8))
	assert.Equal(t, []any{uint32(3), uint32(1), uint32(0), uint32(0)}, rec.Filter("Draw")[0].Args)
	assert.Equal(t, 0, rec.Count("SetBindGroup"))
	assert.Equal(t, 0, rec.Count("SetVertexBuffer"))
}

func TestDestroyedVertexBufferSkipsDraw(t *testing.T) {
	h := newHarness(t)
	rec, s := h.pass(t)
	obj := triangle(litPipeline())
	a, _ := obj.Attributes().Get("position")
	h.resources.Destroy(a.Buffer)

	err := h.emitter.EmitRender(s, obj, rgba8)
	assert.True(t, errors.Is(err, resource.ErrDestroyed))
	assert.Empty(t, rec.Commands)
}

func TestComputeDispatch(t *testing.T) {
	h := newHarness(t)
	enc, err := h.dev.CreateCommandEncoder("compute")
	require.NoError(t, err)
	rec := enc.BeginComputePass("simulate").(*gputest.ComputeRecorder)
	s := NewComputeState(rec)

	p := pipeline.NewComputePipeline("particles", pipeline.WithComputeShader(shader.NewSource(particleShader)))
	res := bind_group.NewResources(bind_group.WithResource("particles", bind_group.BufferResource(resource.NewBufferOf(make([]float32, 400)))))
	obj := NewComputeObject("simulate", p, WithComputeResources(res), WithInvocations(100, 0, 0))

	require.NoError(t, h.emitter.EmitCompute(s, obj))
	require.NoError(t, h.emitter.EmitCompute(s, obj))
	assert.Equal(t, 1, rec.Count("SetPipeline"))
	assert.Equal(t, 1, rec.Count("SetBindGroup"))
	require.Equal(t, 2, rec.Count("DispatchWorkgroups"))
	assert.Equal(t, []any{uint32(2), uint32(1), uint32(1)}, rec.Filter("DispatchWorkgroups")[0].Args)

	obj.SetWorkgroups(8, 4, 0)
	require.NoError(t, h.emitter.EmitCompute(s, obj))
	assert.Equal(t, []any{uint32(8), uint32(4), uint32(1)}, rec.Filter("DispatchWorkgroups")[2].Args)
	assert.Equal(t, 2, s.Issued())
	assert.Equal(t, 4, s.Skipped(), "later dispatches reuse pipeline and group")
}

func TestComputeDispatchSizeRequired(t *testing.T) {
	h := newHarness(t)
	enc, err := h.dev.CreateCommandEncoder("compute")
	require.NoError(t, err)
	rec := enc.BeginComputePass("simulate").(*gputest.ComputeRecorder)

	p := pipeline.NewComputePipeline("particles", pipeline.WithComputeShader(shader.NewSource(particleShader)))
	res := bind_group.NewResources(bind_group.WithResource("particles", bind_group.BufferResource(resource.NewBufferOf(make([]float32, 4)))))

	err = h.emitter.EmitCompute(NewComputeState(rec), NewComputeObject("simulate", p, WithComputeResources(res)))
	assert.True(t, errors.Is(err, ErrWorkSize))
	assert.Empty(t, rec.Commands)

	args := resource.NewBufferOf([]uint32{1, 1, 1})
	require.NoError(t, h.emitter.EmitCompute(NewComputeState(rec), NewComputeObject("simulate", p, WithComputeResources(res), WithComputeIndirect(args, 0))))
	assert.Equal(t, 1, rec.Count("DispatchWorkgroupsIndirect"))
}
