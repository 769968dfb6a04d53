package command

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderObjectBuilderOption is a functional option for configuring a RenderObject.
type RenderObjectBuilderOption func(*RenderObject)

// WithAttributes sets the vertex attribute map the pipeline's vertex inputs read.
func WithAttributes(attrs *pipeline.VertexAttributes) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.attributes = attrs
	}
}

// WithResources sets the resource map the pipeline's bindings are resolved against.
func WithResources(res *bind_group.Resources) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.resources = res
	}
}

// WithIndexBuffer makes the object an indexed draw.
//
// Parameters:
//   - b: the index buffer
//   - format: the index format, IndexFormatUndefined to derive it from the buffer's element kind
//
// Returns:
//   - RenderObjectBuilderOption: the option to apply
func WithIndexBuffer(b *resource.Buffer, format wgpu.IndexFormat) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.index = b
		o.indexFormat = format
	}
}

// WithDrawRange sets the vertex or index count and the first vertex or index.
//
// Parameters:
//   - count: the vertex or index count, 0 to derive it from the bound buffers
//   - first: the first vertex or index
//
// Returns:
//   - RenderObjectBuilderOption: the option to apply
func WithDrawRange(count, first uint32) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.count = count
		o.first = first
	}
}

// WithBaseVertex sets the value added to every index of an indexed draw.
func WithBaseVertex(base int32) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.baseVertex = base
	}
}

// WithInstances sets the instance count and first instance. The default is one instance.
func WithInstances(count, first uint32) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.instances = count
		o.firstInstance = first
	}
}

// WithIndirect draws with arguments read from b at offset. Indexed objects read DrawIndexedIndirect
// arguments (20 bytes), others DrawIndirect arguments (16 bytes).
//
// Parameters:
//   - b: the buffer holding the draw arguments
//   - offset: the byte offset of the arguments
//
// Returns:
//   - RenderObjectBuilderOption: the option to apply
func WithIndirect(b *resource.Buffer, offset uint64) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.indirect = b
		o.indirectOffset = offset
	}
}

// WithViewport sets the viewport. It is ignored inside render bundles.
func WithViewport(v Viewport) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.viewport = &v
	}
}

// WithScissor sets the scissor rectangle. It is ignored inside render bundles.
func WithScissor(s Scissor) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.scissor = &s
	}
}

// WithBlendConstant sets the blend constant. It is ignored inside render bundles.
func WithBlendConstant(c wgpu.Color) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.blendConstant = &c
	}
}

// WithStencilReference sets the stencil reference used when the pipeline replaces stencil values.
func WithStencilReference(ref uint32) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.stencilReference = ref
	}
}

// WithOcclusionQuery wraps the draw in the occlusion query at index of the pass's query set.
// It is ignored inside render bundles.
func WithOcclusionQuery(index uint32) RenderObjectBuilderOption {
	return func(o *RenderObject) {
		o.occlusionQuery = &index
	}
}
