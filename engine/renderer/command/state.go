package command

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type vertexBinding struct {
	buffer       gpu.Buffer
	offset, size uint64
}

type indexBinding struct {
	buffer       gpu.Buffer
	format       wgpu.IndexFormat
	offset, size uint64
}

// Dependency is a cached object captured while recording a render bundle, together with the call
// that resolves it again.
type Dependency struct {
	resolve func() (any, error)
	native  any
}

// Stale resolves the dependency again and reports whether it failed or yields a different object
// than the one recorded. Resolving flushes pending uploads of the dependency.
func (d Dependency) Stale() bool {
	n, err := d.resolve()
	return err != nil || n != d.native
}

// RenderState is the command-diff memory of one render pass or render bundle encoder. A call
// setting the value an encoder slot already holds is skipped. A state must never be shared
// between encoders.
type RenderState struct {
	cmds gpu.RenderCommands
	pass gpu.RenderPassEncoder

	pipeline gpu.RenderPipeline
	groups   map[uint32]gpu.BindGroup
	vertex   map[uint32]vertexBinding
	index    indexBinding

	viewport    Viewport
	hasViewport bool
	scissor     Scissor
	hasScissor  bool
	blend       wgpu.Color
	hasBlend    bool
	stencil     uint32
	hasStencil  bool

	issued  int
	skipped int
	deps    []Dependency
}

// NewPassState creates the state of a render pass encoder.
func NewPassState(pass gpu.RenderPassEncoder) *RenderState {
	return &RenderState{
		cmds:   pass,
		pass:   pass,
		groups: make(map[uint32]gpu.BindGroup),
		vertex: make(map[uint32]vertexBinding),
	}
}

// NewBundleState creates the state of a render bundle encoder. Bundle states skip dynamic pass
// state and record the dependencies of everything they emit.
func NewBundleState(enc gpu.RenderBundleEncoder) *RenderState {
	return &RenderState{
		cmds:   enc,
		groups: make(map[uint32]gpu.BindGroup),
		vertex: make(map[uint32]vertexBinding),
	}
}

// Bundle reports whether the state records into a render bundle encoder.
func (s *RenderState) Bundle() bool {
	return s.pass == nil
}

// Issued returns the number of native state calls issued, excluding draws.
func (s *RenderState) Issued() int {
	return s.issued
}

// Skipped returns the number of redundant state calls skipped.
func (s *RenderState) Skipped() int {
	return s.skipped
}

// Dependencies returns what a bundle state captured while recording.
func (s *RenderState) Dependencies() []Dependency {
	return s.deps
}

func (s *RenderState) track(native any, resolve func() (any, error)) {
	if s.Bundle() {
		s.deps = append(s.deps, Dependency{resolve: resolve, native: native})
	}
}

func (s *RenderState) count(issue bool) bool {
	if issue {
		s.issued++
	} else {
		s.skipped++
	}
	return issue
}

// SetPipeline sets p unless it is already set.
//
// Parameters:
//   - p: the native render pipeline
//
// Returns:
//   - bool: true if the call was issued
func (s *RenderState) SetPipeline(p gpu.RenderPipeline) bool {
	if !s.count(s.pipeline != p) {
		return false
	}
	s.pipeline = p
	s.cmds.SetPipeline(p)
	return true
}

// SetBindGroup sets group at index unless it is already set there.
func (s *RenderState) SetBindGroup(index uint32, group gpu.BindGroup) bool {
	if prev, ok := s.groups[index]; !s.count(!ok || prev != group) {
		return false
	}
	s.groups[index] = group
	s.cmds.SetBindGroup(index, group, nil)
	return true
}

// SetVertexBuffer binds buffer to slot unless the same range is already bound there.
func (s *RenderState) SetVertexBuffer(slot uint32, buffer gpu.Buffer, offset, size uint64) bool {
	next := vertexBinding{buffer: buffer, offset: offset, size: size}
	if prev, ok := s.vertex[slot]; !s.count(!ok || prev != next) {
		return false
	}
	s.vertex[slot] = next
	s.cmds.SetVertexBuffer(slot, buffer, offset, size)
	return true
}

// SetIndexBuffer binds buffer as index buffer unless the same range and format are already bound.
func (s *RenderState) SetIndexBuffer(buffer gpu.Buffer, format wgpu.IndexFormat, offset, size uint64) bool {
	next := indexBinding{buffer: buffer, format: format, offset: offset, size: size}
	if !s.count(s.index != next) {
		return false
	}
	s.index = next
	s.cmds.SetIndexBuffer(buffer, format, offset, size)
	return true
}

// SetViewport sets the viewport unless it is unchanged. Bundle states never issue it.
func (s *RenderState) SetViewport(v Viewport) bool {
	if s.Bundle() || !s.count(!s.hasViewport || s.viewport != v) {
		return false
	}
	s.viewport, s.hasViewport = v, true
	s.pass.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	return true
}

// SetScissor sets the scissor rectangle unless it is unchanged. Bundle states never issue it.
func (s *RenderState) SetScissor(r Scissor) bool {
	if s.Bundle() || !s.count(!s.hasScissor || s.scissor != r) {
		return false
	}
	s.scissor, s.hasScissor = r, true
	s.pass.SetScissorRect(r.X, r.Y, r.Width, r.Height)
	return true
}

// SetBlendConstant sets the blend constant unless it is unchanged. Bundle states never issue it.
func (s *RenderState) SetBlendConstant(c wgpu.Color) bool {
	if s.Bundle() || !s.count(!s.hasBlend || s.blend != c) {
		return false
	}
	s.blend, s.hasBlend = c, true
	s.pass.SetBlendConstant(c)
	return true
}

// SetStencilReference sets the stencil reference unless it is unchanged. Bundle states never issue it.
func (s *RenderState) SetStencilReference(ref uint32) bool {
	if s.Bundle() || !s.count(!s.hasStencil || s.stencil != ref) {
		return false
	}
	s.stencil, s.hasStencil = ref, true
	s.pass.SetStencilReference(ref)
	return true
}

// Forget clears the remembered state so the next call of every kind is issued. Executing render
// bundles inside a pass resets the pass state this way.
func (s *RenderState) Forget() {
	s.pipeline = nil
	s.groups = make(map[uint32]gpu.BindGroup)
	s.vertex = make(map[uint32]vertexBinding)
	s.index = indexBinding{}
	s.hasViewport, s.hasScissor, s.hasBlend, s.hasStencil = false, false, false, false
}

// ComputeState is the command-diff memory of one compute pass encoder.
type ComputeState struct {
	pass     gpu.ComputePassEncoder
	pipeline gpu.ComputePipeline
	groups   map[uint32]gpu.BindGroup

	issued  int
	skipped int
}

// NewComputeState creates the state of a compute pass encoder.
func NewComputeState(pass gpu.ComputePassEncoder) *ComputeState {
	return &ComputeState{pass: pass, groups: make(map[uint32]gpu.BindGroup)}
}

func (s *ComputeState) Issued() int {
	return s.issued
}

func (s *ComputeState) Skipped() int {
	return s.skipped
}

func (s *ComputeState) count(issue bool) bool {
	if issue {
		s.issued++
	} else {
		s.skipped++
	}
	return issue
}

// SetPipeline sets p unless it is already set.
func (s *ComputeState) SetPipeline(p gpu.ComputePipeline) bool {
	if !s.count(s.pipeline != p) {
		return false
	}
	s.pipeline = p
	s.pass.SetPipeline(p)
	return true
}

// SetBindGroup sets group at index unless it is already set there.
func (s *ComputeState) SetBindGroup(index uint32, group gpu.BindGroup) bool {
	if prev, ok := s.groups[index]; !s.count(!ok || prev != group) {
		return false
	}
	s.groups[index] = group
	s.pass.SetBindGroup(index, group, nil)
	return true
}
