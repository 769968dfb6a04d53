package command

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
)

// Emitter resolves render and compute objects through the pipeline, bind group and resource
// caches and issues their commands through an encoder state. An object whose resolution fails is
// skipped entirely: nothing is issued for it.
type Emitter struct {
	pipelines *pipeline.Compiler
	groups    *bind_group.Compiler
	resources *resource.Cache
	reporter  common.Reporter
}

// NewEmitter creates an Emitter with all specified options applied.
//
// Parameters:
//   - pipelines: the pipeline compiler
//   - groups: the bind group compiler
//   - resources: the resource cache resolving vertex, index and indirect buffers
//   - options: functional options such as WithReporter
//
// Returns:
//   - *Emitter: the created emitter
func NewEmitter(pipelines *pipeline.Compiler, groups *bind_group.Compiler, resources *resource.Cache, options ...EmitterBuilderOption) *Emitter {
	e := &Emitter{
		pipelines: pipelines,
		groups:    groups,
		resources: resources,
		reporter:  common.LogReporter{},
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// EmitRender records one draw of obj into s.
//
// Parameters:
//   - s: the state of the encoder to record into
//   - obj: the render object
//   - pf: the format of the pass or bundle being recorded
//
// Returns:
//   - error: the error that caused the draw to be skipped, already reported as a diagnostic
func (e *Emitter) EmitRender(s *RenderState, obj *RenderObject, pf pipeline.PassFormat) error {
	stripFormat := obj.stripIndexFormat()
	resolvePipeline := func() (any, error) {
		return e.pipelines.ResolveRender(obj.pipeline, pf, obj.attributes, stripFormat)
	}
	r, err := e.pipelines.ResolveRender(obj.pipeline, pf, obj.attributes, stripFormat)
	if err != nil {
		return fmt.Errorf("command: %q: %w", obj.label, err)
	}
	s.track(r, resolvePipeline)

	groups, err := e.bindGroups(obj.label, r.Layout, obj.resources, s)
	if err != nil {
		return err
	}

	vertex := make([]gpu.Buffer, len(r.Vertex.Slots))
	for i, slot := range r.Vertex.Slots {
		if vertex[i], err = e.buffer(slot.Buffer, s); err != nil {
			return fmt.Errorf("command: %q vertex slot %d: %w", obj.label, i, err)
		}
	}
	var index gpu.Buffer
	if obj.index != nil {
		if index, err = e.buffer(obj.index, s); err != nil {
			return fmt.Errorf("command: %q index buffer: %w", obj.label, err)
		}
	}
	var indirect gpu.Buffer
	var count uint32
	if obj.indirect != nil {
		if indirect, err = e.buffer(obj.indirect, s); err != nil {
			return fmt.Errorf("command: %q indirect buffer: %w", obj.label, err)
		}
	} else if count, err = obj.drawCount(r.Vertex); err != nil {
		return e.report(common.DiagnosticConfiguration, obj.label, err)
	}

	s.SetPipeline(r.Pipeline)
	for i, g := range groups {
		s.SetBindGroup(uint32(i), g)
	}
	for i, b := range vertex {
		s.SetVertexBuffer(uint32(i), b, 0, gpu.WholeSize)
	}
	if index != nil {
		s.SetIndexBuffer(index, obj.IndexFormat(), 0, gpu.WholeSize)
	}
	if obj.viewport != nil {
		s.SetViewport(*obj.viewport)
	}
	if obj.scissor != nil {
		s.SetScissor(*obj.scissor)
	}
	if obj.blendConstant != nil {
		s.SetBlendConstant(*obj.blendConstant)
	}
	if r.StencilReference {
		s.SetStencilReference(obj.stencilReference)
	}

	query, hasQuery := obj.OcclusionQuery()
	hasQuery = hasQuery && !s.Bundle()
	if hasQuery {
		s.pass.BeginOcclusionQuery(query)
	}
	switch {
	case indirect != nil && index != nil:
		s.cmds.DrawIndexedIndirect(indirect, obj.indirectOffset)
	case indirect != nil:
		s.cmds.DrawIndirect(indirect, obj.indirectOffset)
	case index != nil:
		s.cmds.DrawIndexed(count, obj.instances, obj.first, obj.baseVertex, obj.firstInstance)
	default:
		s.cmds.Draw(count, obj.instances, obj.first, obj.firstInstance)
	}
	if hasQuery {
		s.pass.EndOcclusionQuery()
	}
	return nil
}

// EmitCompute records one dispatch of obj into s.
//
// Parameters:
//   - s: the state of the compute pass to record into
//   - obj: the compute object
//
// Returns:
//   - error: the error that caused the dispatch to be skipped, already reported as a diagnostic
func (e *Emitter) EmitCompute(s *ComputeState, obj *ComputeObject) error {
	c, err := e.pipelines.ResolveCompute(obj.pipeline)
	if err != nil {
		return fmt.Errorf("command: %q: %w", obj.label, err)
	}
	groups, err := e.bindGroups(obj.label, c.Layout, obj.resources, nil)
	if err != nil {
		return err
	}

	var indirect gpu.Buffer
	var size [3]uint32
	if obj.indirect != nil {
		if indirect, err = e.buffer(obj.indirect, nil); err != nil {
			return fmt.Errorf("command: %q indirect buffer: %w", obj.label, err)
		}
	} else if size, err = obj.dispatchSize(c.WorkgroupSize); err != nil {
		return e.report(common.DiagnosticConfiguration, obj.label, err)
	}

	s.SetPipeline(c.Pipeline)
	for i, g := range groups {
		s.SetBindGroup(uint32(i), g)
	}
	if indirect != nil {
		s.pass.DispatchWorkgroupsIndirect(indirect, obj.indirectOffset)
	} else {
		s.pass.DispatchWorkgroups(size[0], size[1], size[2])
	}
	return nil
}

// bindGroups resolves the bind groups of l against res. A bundle state rejects per-frame
// resolutions and records the resolution as a dependency.
func (e *Emitter) bindGroups(label string, l *layout.PipelineLayout, res *bind_group.Resources, s *RenderState) ([]gpu.BindGroup, error) {
	if l.GroupCount() == 0 {
		return nil, nil
	}
	if res == nil {
		return nil, e.report(common.DiagnosticConfiguration, label, fmt.Errorf("%w: %q has bindings but no resource map", bind_group.ErrMissingResource, label))
	}
	r, err := e.groups.Resolve(l, res)
	if err != nil {
		return nil, fmt.Errorf("command: %q: %w", label, err)
	}
	if s != nil && s.Bundle() {
		if r.Volatile() {
			return nil, e.report(common.DiagnosticConfiguration, label, fmt.Errorf("%w: %q", ErrVolatileBinding, res.Label()))
		}
		s.track(r, func() (any, error) { return e.groups.Resolve(l, res) })
	}
	return r.Groups(), nil
}

func (e *Emitter) buffer(b *resource.Buffer, s *RenderState) (gpu.Buffer, error) {
	native, err := e.resources.Buffer(b)
	if err != nil {
		return nil, err
	}
	if s != nil {
		s.track(native, func() (any, error) { return e.resources.Buffer(b) })
	}
	return native, nil
}

func (e *Emitter) report(kind common.DiagnosticKind, subject string, err error) error {
	e.reporter.Report(common.Diagnostic{Kind: kind, Subject: subject, Message: err.Error(), Err: err})
	return err
}
