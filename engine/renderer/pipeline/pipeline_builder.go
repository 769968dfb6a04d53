package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderPipelineBuilderOption is a functional option used to configure a RenderPipeline during construction.
type RenderPipelineBuilderOption func(*RenderPipeline)

// ComputePipelineBuilderOption is a functional option used to configure a ComputePipeline during construction.
type ComputePipelineBuilderOption func(*ComputePipeline)

// WithVertexShader sets the vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader source to use for this pipeline
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s *shader.Source) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for this pipeline. A pipeline without one writes
// depth only.
//
// Parameters:
//   - s: the fragment shader source to use for this pipeline
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s *shader.Source) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.fragmentShader = s
	}
}

// WithComputeShader sets the compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader source to use for this pipeline
//
// Returns:
//   - ComputePipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s *shader.Source) ComputePipelineBuilderOption {
	return func(p *ComputePipeline) {
		p.computeShader = s
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the depth test enabled state for this pipeline
func WithDepthTestEnabled(enabled bool) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writing should be enabled
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the depth write enabled state for this pipeline
func WithDepthWriteEnabled(enabled bool) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth comparison used while depth testing is enabled.
func WithDepthCompare(compare wgpu.CompareFunction) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.depthCompare = compare
	}
}

// WithDepthBias sets the depth bias parameters for this pipeline.
//
// Parameters:
//   - bias: the constant depth bias to apply
//   - slopeScale: the slope scale depth bias to apply
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the depth bias parameters for this pipeline
func WithDepthBias(bias int32, slopeScale float32) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.depthBias = bias
		p.depthBiasSlopeScale = slopeScale
	}
}

// WithBlendEnabled sets whether blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the blend enabled state for this pipeline
func WithBlendEnabled(enabled bool) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the cull mode for this pipeline.
//
// Parameters:
//   - mode: the cull mode to use for this pipeline (e.g., wgpu.CullModeNone, wgpu.CullModeFront, wgpu.CullModeBack)
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode wgpu.CullMode) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.cullMode = mode
	}
}

// WithTopology sets the primitive topology for this pipeline.
//
// Parameters:
//   - topology: the primitive topology to use for this pipeline (e.g., wgpu.PrimitiveTopologyPointList, wgpu.PrimitiveTopologyLineList, wgpu.PrimitiveTopologyTriangleList)
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the primitive topology for this pipeline
func WithTopology(topology wgpu.PrimitiveTopology) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.topology = topology
	}
}

// WithFrontFace sets the front face winding order for this pipeline.
//
// Parameters:
//   - frontFace: the front face to use for this pipeline (e.g., wgpu.FrontFaceCCW, wgpu.FrontFaceCW)
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the front face for this pipeline
func WithFrontFace(frontFace wgpu.FrontFace) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.frontFace = frontFace
	}
}

// WithWriteMask sets the color write mask of every target without an override.
//
// Parameters:
//   - writeMask: the color write mask to use for this pipeline (e.g., wgpu.ColorWriteMaskAll, wgpu.ColorWriteMaskRed)
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the color write mask for this pipeline
func WithWriteMask(writeMask wgpu.ColorWriteMask) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.writeMask = writeMask
	}
}

// WithBlendState sets the blend state applied to every target without an override while
// blending is enabled.
//
// Parameters:
//   - blendState: the blend state to use for this pipeline
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the blend state for this pipeline
func WithBlendState(blendState *wgpu.BlendState) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.blendState = blendState
	}
}

// WithColorTarget overrides the blend state and write mask of one color attachment index.
//
// Parameters:
//   - index: the color attachment index
//   - target: the per-target state
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the override for this pipeline
func WithColorTarget(index int, target ColorTarget) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.targets[index] = target
	}
}

// WithStencil sets the stencil state. It only takes effect in passes with a depth/stencil attachment.
//
// Parameters:
//   - front: the stencil state of front facing primitives
//   - back: the stencil state of back facing primitives
//   - readMask: the stencil read mask
//   - writeMask: the stencil write mask
//
// Returns:
//   - RenderPipelineBuilderOption: a function that sets the stencil state for this pipeline
func WithStencil(front, back wgpu.StencilFaceState, readMask, writeMask uint32) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.stencilFront = front
		p.stencilBack = back
		p.stencilReadMask = readMask
		p.stencilWriteMask = writeMask
	}
}

// WithSampleMask sets the multisample coverage mask.
func WithSampleMask(mask uint32) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.sampleMask = mask
	}
}

// WithAlphaToCoverage enables alpha to coverage in multisampled passes.
func WithAlphaToCoverage(enabled bool) RenderPipelineBuilderOption {
	return func(p *RenderPipeline) {
		p.alphaToCoverage = enabled
	}
}
