package bundle

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"
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

const spriteShader = `
struct Sprite {
    offset: vec2f,
    scale: f32,
};

@group(0) @binding(0) var<uniform> sprite: Sprite;

@vertex
fn vs_main(@location(0) corner: vec2f) -> @builtin(position) vec4f {
    return vec4f(corner * sprite.scale + sprite.offset, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return vec4f(1.0, 0.5, 0.0, 1.0);
}
`

var (
	rgba8 = pipeline.PassFormat{ColorFormats: []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}}
	msaa  = pipeline.PassFormat{ColorFormats: []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}, SampleCount: 4}
)

type harness struct {
	dev      *gputest.Device
	compiler *Compiler
	diags    []common.Diagnostic
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dev: gputest.NewDevice()}
	reporter := common.ReporterFunc(func(d common.Diagnostic) { h.diags = append(h.diags, d) })
	refl, err := shader.NewReflectionCache(0)
	require.NoError(t, err)
	deriver := layout.NewDeriver(h.dev, refl, layout.WithReporter(reporter))
	resources := resource.NewCache(h.dev, resource.WithReporter(reporter))
	emitter := command.NewEmitter(
		pipeline.NewCompiler(h.dev, refl, shader.NewModuleCache(h.dev, false), deriver, pipeline.WithReporter(reporter)),
		bind_group.NewCompiler(h.dev, resources, deriver, bind_group.WithReporter(reporter)),
		resources,
		command.WithReporter(reporter),
	)
	h.compiler = NewCompiler(h.dev, emitter, WithReporter(reporter))
	return h
}

type sprite struct {
	obj     *command.RenderObject
	corners *resource.Buffer
	uniform *bind_group.Uniform
}

func newSprite(p *pipeline.RenderPipeline) sprite {
	corners := resource.NewBufferOf([]float32{0, 0, 1, 0, 0, 1, 1, 1})
	return newSpriteWith(p, corners, pipeline.NewVertexAttributes(pipeline.WithAttribute("corner", pipeline.VertexAttribute{Buffer: corners})))
}

// newSpriteWith builds a sprite drawing from an existing attribute map.
func newSpriteWith(p *pipeline.RenderPipeline, corners *resource.Buffer, attrs *pipeline.VertexAttributes) sprite {
	uniform := bind_group.NewUniform(bind_group.WithField("scale", float32(1)))
	obj := command.NewRenderObject("sprite", p,
		command.WithAttributes(attrs),
		command.WithResources(bind_group.NewResources(bind_group.WithResource("sprite", bind_group.UniformResource(uniform)))),
	)
	return sprite{obj: obj, corners: corners, uniform: uniform}
}

func spritePipeline() *pipeline.RenderPipeline {
	src := shader.NewSource(spriteShader)
	return pipeline.NewRenderPipeline("sprite",
		pipeline.WithVertexShader(src),
		pipeline.WithFragmentShader(src),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
	)
}

func recorder(t *testing.T, b gpu.RenderBundle) *gputest.Recorder {
	t.Helper()
	h, ok := b.(*gputest.Handle)
	require.True(t, ok)
	return h.Desc.(*gputest.Recorder)
}

func TestBundleIsRecordedOncePerFingerprint(t *testing.T) {
	h := newHarness(t)
	p := spritePipeline()
	corners := resource.NewBufferOf([]float32{0, 0, 1, 0, 0, 1, 1, 1})
	attrs := pipeline.NewVertexAttributes(pipeline.WithAttribute("corner", pipeline.VertexAttribute{Buffer: corners}))
	desc := NewRenderBundle("sprites", WithObjects(newSpriteWith(p, corners, attrs).obj, newSpriteWith(p, corners, attrs).obj))

	b1, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	again, err := h.compiler.Resolve(desc, pipeline.PassFormat{ColorFormats: []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}})
	require.NoError(t, err)
	assert.Same(t, b1, again)

	b4, err := h.compiler.Resolve(desc, msaa)
	require.NoError(t, err)
	assert.NotSame(t, b1, b4)
	assert.Equal(t, 2, h.dev.Count("RenderBundle"))
	assert.Equal(t, 2, h.compiler.Len())
	assert.Empty(t, h.diags)

	rec := recorder(t, b1)
	assert.Equal(t, 1, rec.Count("SetPipeline"), "objects share the pipeline inside the bundle")
	assert.Equal(t, 2, rec.Count("SetBindGroup"))
	assert.Equal(t, 2, rec.Count("Draw"))
	assert.Equal(t, []any{uint32(4), uint32(1), uint32(0), uint32(0)}, rec.Filter("Draw")[0].Args)

	enc := rec.Desc.(*gpu.RenderBundleEncoderDescriptor)
	assert.Equal(t, rgba8.ColorFormats, enc.ColorFormats)
	assert.Equal(t, uint32(1), enc.SampleCount)
	assert.Equal(t, uint32(4), recorder(t, b4).Desc.(*gpu.RenderBundleEncoderDescriptor).SampleCount)
}

func TestDistinctAttributesUseDistinctPipelines(t *testing.T) {
	h := newHarness(t)
	p := spritePipeline()
	desc := NewRenderBundle("sprites", WithObjects(newSprite(p).obj, newSprite(p).obj))

	b, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	assert.Len(t, h.dev.RenderPipelines, 2)
	assert.Equal(t, 2, recorder(t, b).Count("SetPipeline"))
	assert.Equal(t, 2, recorder(t, b).Count("Draw"))
}

func TestContentChangeDiscardsRecordings(t *testing.T) {
	h := newHarness(t)
	p := spritePipeline()
	desc := NewRenderBundle("sprites", WithObjects(newSprite(p).obj))

	b1, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	_, err = h.compiler.Resolve(desc, msaa)
	require.NoError(t, err)

	desc.Append(newSprite(p).obj)
	assert.Equal(t, 0, h.compiler.Len())
	assert.True(t, b1.(*gputest.Handle).Released)

	b2, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	assert.Equal(t, 2, recorder(t, b2).Count("Draw"))
}

func TestObjectMutationReRecords(t *testing.T) {
	h := newHarness(t)
	s := newSprite(spritePipeline())
	desc := NewRenderBundle("sprites", WithObjects(s.obj))

	b1, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	s.obj.SetInstances(16, 0)

	b2, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	assert.True(t, b1.(*gputest.Handle).Released)
	assert.Equal(t, []any{uint32(4), uint32(16), uint32(0), uint32(0)}, recorder(t, b2).Filter("Draw")[0].Args)
}

func TestRebuiltDependencyReRecords(t *testing.T) {
	h := newHarness(t)
	s := newSprite(spritePipeline())
	desc := NewRenderBundle("sprites", WithObjects(s.obj))

	b1, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	s.corners.Resize(64)

	b2, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	assert.Equal(t, 2, h.dev.Count("RenderBundle"))
}

func TestUniformWritesFlushWithoutReRecording(t *testing.T) {
	h := newHarness(t)
	s := newSprite(spritePipeline())
	desc := NewRenderBundle("sprites", WithObjects(s.obj))

	b1, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	writes := len(h.dev.FakeQueue().Writes)

	s.uniform.Set("offset", [2]float32{0.5, 0.5})
	b2, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, writes+1, len(h.dev.FakeQueue().Writes))
	assert.Equal(t, 1, h.dev.Count("RenderBundle"))
}

type videoSource struct {
	dev *gputest.Device
}

func (v videoSource) AcquireView() (gpu.TextureView, error) {
	t, err := v.dev.CreateTexture(&wgpu.TextureDescriptor{Label: "frame"})
	if err != nil {
		return nil, err
	}
	return t.CreateView()
}

const videoShader = `
@group(0) @binding(0) var frame: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4f {
    return vec4f(f32(i), 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return textureSample(frame, samp, vec2f(0.5, 0.5));
}
`

func TestVolatileObjectIsLeftOut(t *testing.T) {
	h := newHarness(t)
	src := shader.NewSource(videoShader)
	video := command.NewRenderObject("video", pipeline.NewRenderPipeline("video", pipeline.WithVertexShader(src), pipeline.WithFragmentShader(src)),
		command.WithDrawRange(3, 0),
		command.WithResources(bind_group.NewResources(
			bind_group.WithResource("frame", bind_group.TextureResource(resource.NewExternalTexture(videoSource{dev: h.dev}))),
			bind_group.WithResource("samp", bind_group.SamplerResource(resource.NewSampler())),
		)),
	)
	desc := NewRenderBundle("mixed", WithObjects(newSprite(spritePipeline()).obj, video))

	b, err := h.compiler.Resolve(desc, rgba8)
	require.NoError(t, err)
	assert.Equal(t, 1, recorder(t, b).Count("Draw"))
	assert.Equal(t, 0, h.compiler.Len(), "incomplete recordings are frame scoped")
	require.Len(t, h.diags, 1)
	assert.ErrorIs(t, h.diags[0].Err, ErrVolatileBinding)

	h.compiler.EndFrame()
	assert.True(t, b.(*gputest.Handle).Released)
}

func TestEncoderFailureIsDeviceError(t *testing.T) {
	h := newHarness(t)
	h.dev.FailOn("RenderBundleEncoder", nil)

	_, err := h.compiler.Resolve(NewRenderBundle("sprites"), rgba8)
	assert.ErrorIs(t, err, gputest.ErrInjected)
	require.Len(t, h.diags, 1)
	assert.Equal(t, common.DiagnosticDevice, h.diags[0].Kind)
}

func TestEvictAndPurge(t *testing.T) {
	h := newHarness(t)
	p := spritePipeline()
	a := NewRenderBundle("a", WithObjects(newSprite(p).obj))
	b := NewRenderBundle("b", WithObjects(newSprite(p).obj))
	for _, desc := range []*RenderBundle{a, b} {
		for _, pf := range []pipeline.PassFormat{rgba8, msaa} {
			_, err := h.compiler.Resolve(desc, pf)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 2, h.compiler.Evict(a))
	assert.Equal(t, 2, h.compiler.Len())

	h.compiler.Purge()
	assert.Equal(t, 0, h.compiler.Len())
	assert.Equal(t, 0, b.events.Len(), "purge drops content subscriptions")
}
