package gputest

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Recorder records render commands. It serves as render pass, compute pass and bundle encoder.
type Recorder struct {
	dev      *Device
	Desc     any
	Commands []Command
	Ended    bool
	Bundle   *Handle
}

var (
	_ gpu.RenderPassEncoder   = &Recorder{}
	_ gpu.RenderBundleEncoder = &Recorder{}
)

func (r *Recorder) record(name string, args ...any) {
	r.Commands = append(r.Commands, Command{Name: name, Args: args})
}

// Count returns how many recorded commands are named name.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.Commands {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Filter returns the recorded commands named name in order.
func (r *Recorder) Filter(name string) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) SetPipeline(p gpu.RenderPipeline) { r.record("SetPipeline", p) }

func (r *Recorder) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	r.record("SetBindGroup", index, group)
}

func (r *Recorder) SetVertexBuffer(slot uint32, buffer gpu.Buffer, offset, size uint64) {
	r.record("SetVertexBuffer", slot, buffer, offset, size)
}

func (r *Recorder) SetIndexBuffer(buffer gpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	r.record("SetIndexBuffer", buffer, format, offset, size)
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.record("Draw", vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.record("DrawIndexed", indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (r *Recorder) DrawIndirect(indirect gpu.Buffer, offset uint64) {
	r.record("DrawIndirect", indirect, offset)
}

func (r *Recorder) DrawIndexedIndirect(indirect gpu.Buffer, offset uint64) {
	r.record("DrawIndexedIndirect", indirect, offset)
}

func (r *Recorder) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	r.record("SetViewport", x, y, width, height, minDepth, maxDepth)
}

func (r *Recorder) SetScissorRect(x, y, width, height uint32) {
	r.record("SetScissorRect", x, y, width, height)
}

func (r *Recorder) SetBlendConstant(color wgpu.Color) { r.record("SetBlendConstant", color) }

func (r *Recorder) SetStencilReference(reference uint32) { r.record("SetStencilReference", reference) }

func (r *Recorder) ExecuteBundles(bundles ...gpu.RenderBundle) {
	args := make([]any, len(bundles))
	for i, b := range bundles {
		args[i] = b
	}
	r.record("ExecuteBundles", args...)
}

func (r *Recorder) BeginOcclusionQuery(queryIndex uint32) {
	r.record("BeginOcclusionQuery", queryIndex)
}

func (r *Recorder) EndOcclusionQuery() { r.record("EndOcclusionQuery") }

func (r *Recorder) End() {
	r.record("End")
	r.Ended = true
}

func (r *Recorder) Finish(label string) (gpu.RenderBundle, error) {
	if err := r.dev.fail("RenderBundle"); err != nil {
		return nil, err
	}
	r.Bundle = r.dev.newHandle("RenderBundle", label, r)
	return r.Bundle, nil
}

// ComputeRecorder records compute pass commands.
type ComputeRecorder struct {
	Recorder
}

var _ gpu.ComputePassEncoder = &ComputeRecorder{}

func (r *ComputeRecorder) SetPipeline(p gpu.ComputePipeline) { r.record("SetPipeline", p) }

func (r *ComputeRecorder) DispatchWorkgroups(x, y, z uint32) {
	r.record("DispatchWorkgroups", x, y, z)
}

func (r *ComputeRecorder) DispatchWorkgroupsIndirect(indirect gpu.Buffer, offset uint64) {
	r.record("DispatchWorkgroupsIndirect", indirect, offset)
}

type bufferCopy struct {
	src, dst             *Buffer
	srcOffset, dstOffset uint64
	size                 uint64
}

// CommandEncoder is a recording gpu.CommandEncoder.
type CommandEncoder struct {
	Handle
	dev          *Device
	RenderPasses []*Recorder
	Passes       []*ComputeRecorder
	Commands     []Command
	copies       []bufferCopy
	Finished     bool
}

var _ gpu.CommandEncoder = &CommandEncoder{}

func (e *CommandEncoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPassEncoder {
	r := &Recorder{dev: e.dev, Desc: desc}
	e.RenderPasses = append(e.RenderPasses, r)
	e.Commands = append(e.Commands, Command{Name: "BeginRenderPass", Args: []any{desc}})
	return r
}

func (e *CommandEncoder) BeginComputePass(label string) gpu.ComputePassEncoder {
	r := &ComputeRecorder{Recorder: Recorder{dev: e.dev, Desc: label}}
	e.Passes = append(e.Passes, r)
	e.Commands = append(e.Commands, Command{Name: "BeginComputePass", Args: []any{label}})
	return r
}

func (e *CommandEncoder) CopyBufferToBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) {
	e.Commands = append(e.Commands, Command{Name: "CopyBufferToBuffer", Args: []any{src, srcOffset, dst, dstOffset, size}})
	s, _ := src.(*Buffer)
	d, _ := dst.(*Buffer)
	if s != nil && d != nil {
		e.copies = append(e.copies, bufferCopy{src: s, dst: d, srcOffset: srcOffset, dstOffset: dstOffset, size: size})
	}
}

// ResolveQuerySet writes one little-endian uint64 per query; the value is the query index plus one.
func (e *CommandEncoder) ResolveQuerySet(set gpu.QuerySet, firstQuery, queryCount uint32, dst gpu.Buffer, dstOffset uint64) {
	e.Commands = append(e.Commands, Command{Name: "ResolveQuerySet", Args: []any{set, firstQuery, queryCount, dst, dstOffset}})
	if d, ok := dst.(*Buffer); ok {
		for i := uint32(0); i < queryCount; i++ {
			off := dstOffset + uint64(i)*8
			if off+8 <= uint64(len(d.Data)) {
				binary.LittleEndian.PutUint64(d.Data[off:], uint64(firstQuery+i+1))
			}
		}
	}
}

func (e *CommandEncoder) Finish() (gpu.CommandBuffer, error) {
	if err := e.dev.fail("CommandBuffer"); err != nil {
		return nil, err
	}
	e.Finished = true
	h := e.dev.newHandle("CommandBuffer", e.Label, e)
	return h, nil
}

// Queue is a recording gpu.Queue that applies writes and copies to buffer contents.
type Queue struct {
	dev           *Device
	Writes        []Write
	TextureWrites []TextureWrite
	Submitted     []gpu.CommandBuffer
}

var _ gpu.Queue = &Queue{}

// Submit applies the recorded buffer copies of every submitted encoder.
func (q *Queue) Submit(buffers ...gpu.CommandBuffer) {
	for _, cb := range buffers {
		q.Submitted = append(q.Submitted, cb)
		h, ok := cb.(*Handle)
		if !ok {
			continue
		}
		if enc, ok := h.Desc.(*CommandEncoder); ok {
			for _, c := range enc.copies {
				copy(c.dst.Data[c.dstOffset:c.dstOffset+c.size], c.src.Data[c.srcOffset:c.srcOffset+c.size])
			}
		}
	}
}

func (q *Queue) WriteBuffer(buffer gpu.Buffer, offset uint64, data []byte) error {
	b, _ := buffer.(*Buffer)
	cp := append([]byte(nil), data...)
	q.Writes = append(q.Writes, Write{Buffer: b, Offset: offset, Data: cp})
	if b != nil && offset+uint64(len(cp)) <= uint64(len(b.Data)) {
		copy(b.Data[offset:], cp)
	}
	return nil
}

func (q *Queue) WriteTexture(dst gpu.TextureCopy, data []byte, layout wgpu.TextureDataLayout, size wgpu.Extent3D) error {
	t, _ := dst.Texture.(*Texture)
	q.TextureWrites = append(q.TextureWrites, TextureWrite{Texture: t, Data: append([]byte(nil), data...), Size: size})
	return nil
}

// WritesTo returns the recorded writes targeting buffer.
func (q *Queue) WritesTo(buffer gpu.Buffer) []Write {
	var out []Write
	for _, w := range q.Writes {
		if gpu.Buffer(w.Buffer) == buffer {
			out = append(out, w)
		}
	}
	return out
}
