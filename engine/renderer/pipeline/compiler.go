package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/cache"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrMissingStage is returned when a render pipeline has no vertex shader, or a compute pipeline
// no compute shader.
var ErrMissingStage = errors.New("pipeline: missing shader stage")

type renderKey struct {
	desc        *RenderPipeline
	fingerprint string
	attrs       *VertexAttributes
	indexFormat wgpu.IndexFormat
}

// Render is a compiled render pipeline.
type Render struct {
	Pipeline gpu.RenderPipeline
	Layout   *layout.PipelineLayout
	Vertex   VertexLayout
	Format   PassFormat

	// StencilReference is true when draws must set a stencil reference: the pass has a
	// depth/stencil attachment and a stencil operation replaces.
	StencilReference bool
}

// Compute is a compiled compute pipeline.
type Compute struct {
	Pipeline      gpu.ComputePipeline
	Layout        *layout.PipelineLayout
	WorkgroupSize [3]uint32
}

// Compiler compiles pipeline descriptors into native pipelines and caches them. It is not safe for
// concurrent use.
type Compiler struct {
	device      gpu.Device
	reflections *shader.ReflectionCache
	modules     *shader.ModuleCache
	layouts     *layout.Deriver
	reporter    common.Reporter

	renders  *cache.Cache[renderKey, *Render]
	computes *cache.Cache[*ComputePipeline, *Compute]
	watched  map[*VertexAttributes]common.Unsubscribe
}

// NewCompiler creates a pipeline compiler with all specified options applied.
//
// Parameters:
//   - device: the device pipelines are created on
//   - reflections: the reflection cache supplying entry points and vertex inputs
//   - modules: the shader module cache
//   - layouts: the layout deriver
//   - options: functional options such as WithReporter
//
// Returns:
//   - *Compiler: the created compiler
func NewCompiler(device gpu.Device, reflections *shader.ReflectionCache, modules *shader.ModuleCache, layouts *layout.Deriver, options ...CompilerBuilderOption) *Compiler {
	c := &Compiler{
		device:      device,
		reflections: reflections,
		modules:     modules,
		layouts:     layouts,
		reporter:    common.LogReporter{},
		renders:     cache.New[renderKey, *Render](),
		computes:    cache.New[*ComputePipeline, *Compute](),
		watched:     make(map[*VertexAttributes]common.Unsubscribe),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ResolveRender returns the native render pipeline of desc compiled for a pass format, vertex
// attribute map and index format. Pass formats are compared by fingerprint.
//
// Parameters:
//   - desc: the render pipeline descriptor
//   - pf: the format of the pass the pipeline draws in
//   - attrs: the vertex attribute sources, nil when the vertex stage has no inputs
//   - indexFormat: the index format of indexed strip draws, wgpu.IndexFormatUndefined otherwise
//
// Returns:
//   - *Render: the compiled pipeline
//   - error: a configuration or data error, reported as a diagnostic, or a native creation error
func (c *Compiler) ResolveRender(desc *RenderPipeline, pf PassFormat, attrs *VertexAttributes, indexFormat wgpu.IndexFormat) (*Render, error) {
	key := renderKey{desc: desc, fingerprint: pf.Fingerprint(), attrs: attrs, indexFormat: indexFormat}
	return c.renders.GetOrCreate(key, func() (*Render, cache.Cleanup, error) {
		r, err := c.compileRender(desc, pf, attrs, indexFormat)
		if err != nil {
			return nil, nil, err
		}
		c.watch(attrs)
		common.Logger().Debug("[pipeline] compiled render pipeline", "label", desc.label, "format", key.fingerprint)
		return r, r.Pipeline.Release, nil
	})
}

func (c *Compiler) compileRender(desc *RenderPipeline, pf PassFormat, attrs *VertexAttributes, indexFormat wgpu.IndexFormat) (*Render, error) {
	if desc.vertexShader == nil {
		return nil, c.report(common.DiagnosticConfiguration, desc.label, fmt.Errorf("%w: %q has no vertex shader", ErrMissingStage, desc.label))
	}
	vs, err := c.reflections.EntryPoint(desc.vertexShader, shader.StageVertex)
	if err != nil {
		return nil, c.report(common.DiagnosticConfiguration, desc.label, err)
	}
	var fs shader.EntryPoint
	if desc.fragmentShader != nil {
		if fs, err = c.reflections.EntryPoint(desc.fragmentShader, shader.StageFragment); err != nil {
			return nil, c.report(common.DiagnosticConfiguration, desc.label, err)
		}
	}

	l, err := c.layouts.Derive(layout.Stages{Vertex: desc.vertexShader, Fragment: desc.fragmentShader})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %q: %w", desc.label, err)
	}

	vertex, err := deriveVertexLayout(vs.Inputs, attrs)
	if err != nil {
		kind := common.DiagnosticData
		if errors.Is(err, ErrMissingAttribute) {
			kind = common.DiagnosticConfiguration
		}
		return nil, c.report(kind, desc.label, err)
	}

	native, err := c.layouts.Native(l)
	if err != nil {
		return nil, err
	}
	vsModule, err := c.modules.Module(desc.vertexShader)
	if err != nil {
		return nil, err
	}

	nd := &gpu.RenderPipelineDescriptor{
		Label:  desc.label,
		Layout: native,
		Vertex: gpu.VertexState{
			Module:     vsModule,
			EntryPoint: vs.Name,
			Buffers:    vertex.Buffers(),
		},
		Primitive: desc.primitive(indexFormat),
		Multisample: wgpu.MultisampleState{
			Count:                  pf.Samples(),
			Mask:                   desc.sampleMask,
			AlphaToCoverageEnabled: desc.alphaToCoverage,
		},
	}
	if desc.fragmentShader != nil {
		fsModule, err := c.modules.Module(desc.fragmentShader)
		if err != nil {
			return nil, err
		}
		targets := make([]wgpu.ColorTargetState, len(pf.ColorFormats))
		for i, format := range pf.ColorFormats {
			if format == wgpu.TextureFormatUndefined {
				continue
			}
			targets[i] = desc.target(i, format)
		}
		nd.Fragment = &gpu.FragmentState{Module: fsModule, EntryPoint: fs.Name, Targets: targets}
	}
	if pf.HasDepthStencil() {
		nd.DepthStencil = desc.depthStencil(pf.DepthStencilFormat)
	}

	p, err := c.device.CreateRenderPipeline(nd)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create render pipeline %q: %w", desc.label, err)
	}
	return &Render{
		Pipeline:         p,
		Layout:           l,
		Vertex:           vertex,
		Format:           pf,
		StencilReference: pf.HasDepthStencil() && desc.NeedsStencilReference(),
	}, nil
}

// ResolveCompute returns the native compute pipeline of desc.
//
// Parameters:
//   - desc: the compute pipeline descriptor
//
// Returns:
//   - *Compute: the compiled pipeline
//   - error: a configuration error, reported as a diagnostic, or a native creation error
func (c *Compiler) ResolveCompute(desc *ComputePipeline) (*Compute, error) {
	return c.computes.GetOrCreate(desc, func() (*Compute, cache.Cleanup, error) {
		if desc.computeShader == nil {
			return nil, nil, c.report(common.DiagnosticConfiguration, desc.label, fmt.Errorf("%w: %q has no compute shader", ErrMissingStage, desc.label))
		}
		ep, err := c.reflections.EntryPoint(desc.computeShader, shader.StageCompute)
		if err != nil {
			return nil, nil, c.report(common.DiagnosticConfiguration, desc.label, err)
		}
		l, err := c.layouts.Derive(layout.Stages{Compute: desc.computeShader})
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: %q: %w", desc.label, err)
		}
		native, err := c.layouts.Native(l)
		if err != nil {
			return nil, nil, err
		}
		module, err := c.modules.Module(desc.computeShader)
		if err != nil {
			return nil, nil, err
		}
		p, err := c.device.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
			Label:      desc.label,
			Layout:     native,
			Module:     module,
			EntryPoint: ep.Name,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: failed to create compute pipeline %q: %w", desc.label, err)
		}
		common.Logger().Debug("[pipeline] compiled compute pipeline", "label", desc.label)
		return &Compute{Pipeline: p, Layout: l, WorkgroupSize: ep.WorkgroupSize}, p.Release, nil
	})
}

// watch evicts every pipeline compiled against attrs when one of its attributes changes.
func (c *Compiler) watch(attrs *VertexAttributes) {
	if attrs == nil {
		return
	}
	if _, ok := c.watched[attrs]; ok {
		return
	}
	c.watched[attrs] = attrs.Subscribe(func(string) {
		n := c.renders.EvictFunc(func(k renderKey, _ *Render) bool { return k.attrs == attrs })
		common.Logger().Debug("[pipeline] vertex attributes changed", "label", attrs.label, "evicted", n)
	})
}

func (c *Compiler) report(kind common.DiagnosticKind, subject string, err error) error {
	c.reporter.Report(common.Diagnostic{Kind: kind, Subject: subject, Message: err.Error(), Err: err})
	return err
}

// Evict releases every pipeline compiled from desc, a *RenderPipeline or *ComputePipeline.
//
// Parameters:
//   - desc: the pipeline descriptor
//
// Returns:
//   - int: the number of released pipelines
func (c *Compiler) Evict(desc any) int {
	switch d := desc.(type) {
	case *RenderPipeline:
		return c.renders.EvictFunc(func(k renderKey, _ *Render) bool { return k.desc == d })
	case *ComputePipeline:
		if c.computes.Evict(d) {
			return 1
		}
	}
	return 0
}

// EvictFormat releases every render pipeline compiled against the pass format with the given
// fingerprint.
//
// Parameters:
//   - fingerprint: the PassFormat fingerprint
//
// Returns:
//   - int: the number of released pipelines
func (c *Compiler) EvictFormat(fingerprint string) int {
	return c.renders.EvictFunc(func(k renderKey, _ *Render) bool { return k.fingerprint == fingerprint })
}

// Len returns the number of cached render and compute pipelines.
func (c *Compiler) Len() int {
	return c.renders.Len() + c.computes.Len()
}

// Purge releases every cached pipeline and drops the attribute subscriptions.
func (c *Compiler) Purge() {
	c.renders.Purge()
	c.computes.Purge()
	for attrs, unsubscribe := range c.watched {
		unsubscribe()
		delete(c.watched, attrs)
	}
}
