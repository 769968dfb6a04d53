// Package pipeline compiles render and compute pipeline descriptors into native pipelines. A
// render pipeline is compiled once per combination of descriptor, pass format fingerprint, vertex
// attribute map and index format, since attachment formats and vertex layouts are baked into the
// native object.
package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ColorTarget overrides the blend state and write mask of one color attachment index.
type ColorTarget struct {
	// Blend is the blend state of the target, nil disables blending.
	Blend *wgpu.BlendState
	// WriteMask is the color write mask of the target, 0 selects the pipeline's write mask.
	WriteMask wgpu.ColorWriteMask
}

// RenderPipeline describes a render pipeline: its vertex and fragment sources and fixed-function
// state. It is immutable once created and is used as a cache key by reference.
type RenderPipeline struct {
	label string

	vertexShader, fragmentShader *shader.Source

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        wgpu.CompareFunction
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
	targets             map[int]ColorTarget

	stencilFront     wgpu.StencilFaceState
	stencilBack      wgpu.StencilFaceState
	stencilReadMask  uint32
	stencilWriteMask uint32

	sampleMask      uint32
	alphaToCoverage bool
}

// NewRenderPipeline creates a RenderPipeline descriptor. Unless overridden it tests and writes
// depth with a less-than compare, culls nothing, draws counter-clockwise triangle lists and writes
// every color channel without blending.
//
// Parameters:
//   - label: the debug label of the pipeline
//   - opts: a variadic list of RenderPipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - *RenderPipeline: the pipeline descriptor
func NewRenderPipeline(label string, opts ...RenderPipelineBuilderOption) *RenderPipeline {
	p := &RenderPipeline{
		label:             label,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      wgpu.CompareFunctionLess,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
		targets:          make(map[int]ColorTarget),
		stencilFront:     defaultStencilFace(),
		stencilBack:      defaultStencilFace(),
		stencilReadMask:  0xFFFFFFFF,
		stencilWriteMask: 0xFFFFFFFF,
		sampleMask:       0xFFFFFFFF,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultStencilFace() wgpu.StencilFaceState {
	return wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
}

func (p *RenderPipeline) Label() string {
	return p.label
}

func (p *RenderPipeline) VertexShader() *shader.Source {
	return p.vertexShader
}

func (p *RenderPipeline) FragmentShader() *shader.Source {
	return p.fragmentShader
}

func (p *RenderPipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *RenderPipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *RenderPipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *RenderPipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *RenderPipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

// NeedsStencilReference reports whether any stencil operation of the pipeline replaces the
// stencil value, i.e. whether draws must set a stencil reference.
func (p *RenderPipeline) NeedsStencilReference() bool {
	for _, face := range []wgpu.StencilFaceState{p.stencilFront, p.stencilBack} {
		if face.FailOp == wgpu.StencilOperationReplace ||
			face.DepthFailOp == wgpu.StencilOperationReplace ||
			face.PassOp == wgpu.StencilOperationReplace {
			return true
		}
	}
	return false
}

// target returns the color target state of one attachment index for format.
func (p *RenderPipeline) target(index int, format wgpu.TextureFormat) wgpu.ColorTargetState {
	state := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: p.writeMask,
	}
	if p.blendEnabled {
		state.Blend = p.blendState
	}
	if t, ok := p.targets[index]; ok {
		state.Blend = t.Blend
		if t.WriteMask != 0 {
			state.WriteMask = t.WriteMask
		}
	}
	return state
}

// depthStencil returns the depth/stencil state for format.
func (p *RenderPipeline) depthStencil(format wgpu.TextureFormat) *wgpu.DepthStencilState {
	depthCompare := p.depthCompare
	if !p.depthTestEnabled {
		depthCompare = wgpu.CompareFunctionAlways
	}
	return &wgpu.DepthStencilState{
		Format:              format,
		DepthWriteEnabled:   p.depthWriteEnabled,
		DepthCompare:        depthCompare,
		DepthBias:           p.depthBias,
		DepthBiasSlopeScale: p.depthBiasSlopeScale,
		StencilFront:        p.stencilFront,
		StencilBack:         p.stencilBack,
		StencilReadMask:     p.stencilReadMask,
		StencilWriteMask:    p.stencilWriteMask,
	}
}

// primitive returns the primitive state. The strip index format is only set for strip topologies.
func (p *RenderPipeline) primitive(indexFormat wgpu.IndexFormat) wgpu.PrimitiveState {
	state := wgpu.PrimitiveState{
		Topology:  p.topology,
		FrontFace: p.frontFace,
		CullMode:  p.cullMode,
	}
	if p.topology == wgpu.PrimitiveTopologyLineStrip || p.topology == wgpu.PrimitiveTopologyTriangleStrip {
		state.StripIndexFormat = indexFormat
	}
	return state
}

// ComputePipeline describes a compute pipeline. It is immutable once created and is used as a
// cache key by reference.
type ComputePipeline struct {
	label         string
	computeShader *shader.Source
}

// NewComputePipeline creates a ComputePipeline descriptor.
//
// Parameters:
//   - label: the debug label of the pipeline
//   - opts: a variadic list of ComputePipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - *ComputePipeline: the pipeline descriptor
func NewComputePipeline(label string, opts ...ComputePipelineBuilderOption) *ComputePipeline {
	p := &ComputePipeline{label: label}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ComputePipeline) Label() string {
	return p.label
}

func (p *ComputePipeline) ComputeShader() *shader.Source {
	return p.computeShader
}
