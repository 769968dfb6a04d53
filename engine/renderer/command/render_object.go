package command

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderObject is one draw: a pipeline, the vertex attributes and resources it reads, and the
// draw parameters. The application may mutate it between frames through its setters; every
// mutation bumps Version so render bundles recorded from it are re-recorded.
type RenderObject struct {
	label      string
	pipeline   *pipeline.RenderPipeline
	attributes *pipeline.VertexAttributes
	resources  *bind_group.Resources

	index       *resource.Buffer
	indexFormat wgpu.IndexFormat

	count         uint32
	first         uint32
	baseVertex    int32
	instances     uint32
	firstInstance uint32

	indirect       *resource.Buffer
	indirectOffset uint64

	viewport         *Viewport
	scissor          *Scissor
	blendConstant    *wgpu.Color
	stencilReference uint32
	occlusionQuery   *uint32

	version uint64
}

// NewRenderObject creates a RenderObject drawing with p and all specified options applied.
//
// Parameters:
//   - label: the debug label used in diagnostics
//   - p: the render pipeline descriptor
//   - options: functional options such as WithAttributes, WithResources and WithIndexBuffer
//
// Returns:
//   - *RenderObject: the render object
func NewRenderObject(label string, p *pipeline.RenderPipeline, options ...RenderObjectBuilderOption) *RenderObject {
	o := &RenderObject{label: label, pipeline: p, instances: 1}
	for _, opt := range options {
		opt(o)
	}
	return o
}

func (o *RenderObject) Label() string {
	return o.label
}

func (o *RenderObject) Pipeline() *pipeline.RenderPipeline {
	return o.pipeline
}

func (o *RenderObject) Attributes() *pipeline.VertexAttributes {
	return o.attributes
}

func (o *RenderObject) Resources() *bind_group.Resources {
	return o.resources
}

// Version increases on every mutation.
func (o *RenderObject) Version() uint64 {
	return o.version
}

// Indexed reports whether the object draws with an index buffer.
func (o *RenderObject) Indexed() bool {
	return o.index != nil
}

// IndexFormat returns the index format: the explicit one, else uint16 for uint16 index data and
// uint32 otherwise. Non-indexed objects return IndexFormatUndefined.
func (o *RenderObject) IndexFormat() wgpu.IndexFormat {
	switch {
	case o.index == nil:
		return wgpu.IndexFormatUndefined
	case o.indexFormat != wgpu.IndexFormatUndefined:
		return o.indexFormat
	case o.index.Element() == resource.ElementUint16:
		return wgpu.IndexFormatUint16
	default:
		return wgpu.IndexFormatUint32
	}
}

// OcclusionQuery returns the occlusion query index wrapping the draw, if any.
func (o *RenderObject) OcclusionQuery() (uint32, bool) {
	if o.occlusionQuery == nil {
		return 0, false
	}
	return *o.occlusionQuery, true
}

// SetResources replaces the bind group resource map.
func (o *RenderObject) SetResources(res *bind_group.Resources) {
	o.resources = res
	o.version++
}

// SetAttributes replaces the vertex attribute map.
func (o *RenderObject) SetAttributes(attrs *pipeline.VertexAttributes) {
	o.attributes = attrs
	o.version++
}

// SetDrawRange sets the vertex or index count and the first vertex or index. A count of 0 derives
// the count from the index buffer or the first per-vertex attribute buffer.
func (o *RenderObject) SetDrawRange(count, first uint32) {
	o.count, o.first = count, first
	o.version++
}

// SetInstances sets the instance count and first instance.
func (o *RenderObject) SetInstances(count, first uint32) {
	o.instances, o.firstInstance = count, first
	o.version++
}

// SetViewport sets the viewport of the draw, nil to leave the encoder's viewport untouched.
func (o *RenderObject) SetViewport(v *Viewport) {
	o.viewport = v
	o.version++
}

// SetScissor sets the scissor rectangle of the draw, nil to leave the encoder's scissor untouched.
func (o *RenderObject) SetScissor(s *Scissor) {
	o.scissor = s
	o.version++
}

// SetStencilReference sets the reference value used by stencil replace operations.
func (o *RenderObject) SetStencilReference(ref uint32) {
	o.stencilReference = ref
	o.version++
}

// stripIndexFormat is the index format a pipeline is compiled with: only strip topologies bake it in.
func (o *RenderObject) stripIndexFormat() wgpu.IndexFormat {
	switch o.pipeline.Topology() {
	case wgpu.PrimitiveTopologyLineStrip, wgpu.PrimitiveTopologyTriangleStrip:
		return o.IndexFormat()
	}
	return wgpu.IndexFormatUndefined
}

// drawCount returns the explicit count, else the number of indices past first, else the number
// of elements in the first per-vertex slot past first.
func (o *RenderObject) drawCount(vertex pipeline.VertexLayout) (uint32, error) {
	if o.count != 0 {
		return o.count, nil
	}
	var n uint64
	switch {
	case o.index != nil:
		n = o.index.DataLen() / indexSize(o.IndexFormat())
	default:
		found := false
		for _, s := range vertex.Slots {
			if s.Layout.StepMode != wgpu.VertexStepModeInstance && s.Layout.ArrayStride > 0 {
				n, found = s.Buffer.DataLen()/s.Layout.ArrayStride, true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q has no per-vertex attribute and no explicit count", ErrWorkSize, o.label)
		}
	}
	if n <= uint64(o.first) {
		return 0, nil
	}
	return uint32(n - uint64(o.first)), nil
}
