package layout

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gpu/internal/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexSource = `
struct Scene { mvp: mat4x4<f32>, x: f32 };
@group(0) @binding(0) var<uniform> scene: Scene;
@group(1) @binding(0) var<storage, read> instances: array<vec4f>;

@vertex
fn vs_main(@location(0) position: vec3f) -> @builtin(position) vec4f {
    return scene.mvp * vec4f(position, 1.0);
}
`

const fragmentSource = `
struct Scene { mvp: mat4x4<f32>, x: f32 };
@group(0) @binding(0) var<uniform> scene: Scene;
@group(0) @binding(2) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn fs_main() -> @location(0) vec4f {
    return textureSample(tex, samp, vec2f(scene.x));
}
`

const conflictingVertex = `
@group(0) @binding(2) var<uniform> params: vec4f;
@vertex
fn vs_main() -> @builtin(position) vec4f { return params; }
`

type recorder struct {
	diags []common.Diagnostic
}

func (r *recorder) Report(d common.Diagnostic) { r.diags = append(r.diags, d) }

func newDeriver(t *testing.T, options ...DeriverBuilderOption) (*Deriver, *gputest.Device, *recorder) {
	t.Helper()
	refl, err := shader.NewReflectionCache(0)
	require.NoError(t, err)
	dev := gputest.NewDevice()
	rec := &recorder{}
	options = append([]DeriverBuilderOption{WithReporter(rec)}, options...)
	return NewDeriver(dev, refl, options...), dev, rec
}

func TestDeriveMergesStages(t *testing.T) {
	d, _, rec := newDeriver(t)

	l, err := d.Derive(Stages{Vertex: shader.NewSource(vertexSource), Fragment: shader.NewSource(fragmentSource)})
	require.NoError(t, err)
	assert.Empty(t, rec.diags)

	require.Len(t, l.Groups(), 2)
	g0, ok := l.Group(0)
	require.True(t, ok)
	require.Len(t, g0.Bindings, 3)
	assert.Equal(t, []string{"scene", "samp", "tex"}, []string{g0.Bindings[0].Name, g0.Bindings[1].Name, g0.Bindings[2].Name})

	scene, ok := l.Binding("scene")
	require.True(t, ok)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, scene.Entry.Visibility)

	tex, _ := l.Binding("tex")
	assert.Equal(t, wgpu.ShaderStageFragment, tex.Entry.Visibility)

	instances, _ := l.Binding("instances")
	assert.Equal(t, uint32(1), instances.Group)
	assert.Equal(t, wgpu.ShaderStageVertex, instances.Entry.Visibility)
}

func TestDeriveIsCachedAndDeterministic(t *testing.T) {
	stages := Stages{Vertex: shader.NewSource(vertexSource), Fragment: shader.NewSource(fragmentSource)}

	d1, _, _ := newDeriver(t)
	a, err := d1.Derive(stages)
	require.NoError(t, err)
	b, err := d1.Derive(Stages{Vertex: shader.NewSource(vertexSource), Fragment: shader.NewSource(fragmentSource)})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, d1.Len())

	for i := 0; i < 5; i++ {
		d2, _, _ := newDeriver(t)
		c, err := d2.Derive(stages)
		require.NoError(t, err)
		assert.Equal(t, a.Descriptors(), c.Descriptors())
	}
}

func TestDeriveReportsConflictOnce(t *testing.T) {
	d, _, rec := newDeriver(t)

	l, err := d.Derive(Stages{Vertex: shader.NewSource(conflictingVertex), Fragment: shader.NewSource(fragmentSource, shader.WithLabel("frag"))})
	require.NoError(t, err)
	require.Len(t, rec.diags, 1)
	assert.Equal(t, common.DiagnosticConfiguration, rec.diags[0].Kind)
	assert.ErrorIs(t, rec.diags[0].Err, ErrBindingConflict)
	assert.Equal(t, "frag", rec.diags[0].Subject)

	_, ok := l.Binding("params")
	assert.False(t, ok, "last merged declaration wins")
	tex, ok := l.Binding("tex")
	require.True(t, ok)
	assert.Equal(t, uint32(2), tex.Binding)

	_, err = d.Derive(Stages{Vertex: shader.NewSource(conflictingVertex), Fragment: shader.NewSource(fragmentSource)})
	require.NoError(t, err)
	assert.Len(t, rec.diags, 1, "cached layouts do not re-report")
}

func TestDeriveConflictSameNameDifferentKind(t *testing.T) {
	d, _, rec := newDeriver(t)
	vs := shader.NewSource(`@group(0) @binding(0) var res: sampler;
@vertex fn vs() -> @builtin(position) vec4f { return vec4f(); }`)
	fs := shader.NewSource(`@group(0) @binding(0) var res: texture_2d<f32>;
@fragment fn fs() -> @location(0) vec4f { return vec4f(); }`)

	l, err := d.Derive(Stages{Vertex: vs, Fragment: fs})
	require.NoError(t, err)
	assert.Len(t, rec.diags, 1)
	res, _ := l.Binding("res")
	assert.Equal(t, shader.ResourceTexture, res.Kind)
}

func TestDeriveStrictConflict(t *testing.T) {
	d, _, rec := newDeriver(t, WithStrictBindings(true))

	_, err := d.Derive(Stages{Vertex: shader.NewSource(conflictingVertex), Fragment: shader.NewSource(fragmentSource)})
	assert.ErrorIs(t, err, ErrBindingConflict)
	assert.Len(t, rec.diags, 1)
	assert.Equal(t, 0, d.Len())
}

func TestNativeLayoutFillsGapsAndSharesGroupLayouts(t *testing.T) {
	d, dev, _ := newDeriver(t)
	gapped := shader.NewSource(`
@group(0) @binding(0) var<uniform> a: vec4f;
@group(2) @binding(0) var<uniform> b: f32;
@compute @workgroup_size(1) fn main() {}
`)
	l, err := d.Derive(Stages{Compute: gapped})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), l.GroupCount())
	descs := l.Descriptors()
	require.Len(t, descs, 3)
	assert.Empty(t, descs[1].Entries)

	pl1, err := d.Native(l)
	require.NoError(t, err)
	pl2, err := d.Native(l)
	require.NoError(t, err)
	assert.Same(t, pl1, pl2)
	assert.Equal(t, 1, dev.Count("PipelineLayout"))
	assert.Equal(t, 3, dev.Count("BindGroupLayout"))

	// a different source with an identical group 0 reuses its native group layout
	other := shader.NewSource(`
@group(0) @binding(0) var<uniform> a: vec4f;
@compute @workgroup_size(64) fn other() {}
`)
	l2, err := d.Derive(Stages{Compute: other})
	require.NoError(t, err)
	assert.NotSame(t, l, l2)
	_, err = d.Native(l2)
	require.NoError(t, err)
	assert.Equal(t, 3, dev.Count("BindGroupLayout"))
	assert.Equal(t, 2, dev.Count("PipelineLayout"))
}

func TestNativeFailureIsNotCached(t *testing.T) {
	d, dev, _ := newDeriver(t)
	dev.FailOn("PipelineLayout", nil)

	l, err := d.Derive(Stages{Vertex: shader.NewSource(vertexSource)})
	require.NoError(t, err)
	_, err = d.Native(l)
	assert.ErrorIs(t, err, gputest.ErrInjected)
}

func TestPurgeReleasesNativeObjects(t *testing.T) {
	d, _, _ := newDeriver(t)
	l, err := d.Derive(Stages{Vertex: shader.NewSource(vertexSource)})
	require.NoError(t, err)
	pl, err := d.Native(l)
	require.NoError(t, err)

	d.Purge()
	assert.True(t, pl.(*gputest.Handle).Released)
	assert.Equal(t, 0, d.Len())
}
