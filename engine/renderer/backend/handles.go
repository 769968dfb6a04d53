package backend

import (
	"bytes"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// buffer adapts *wgpu.Buffer. The size is kept from the descriptor.
type buffer struct {
	buf   *wgpu.Buffer
	label string
	size  uint64
}

var _ gpu.Buffer = &buffer{}

func nativeBuffer(b gpu.Buffer) *wgpu.Buffer {
	if b == nil {
		return nil
	}
	return b.(*buffer).buf
}

func (b *buffer) Release() { b.buf.Release() }

func (b *buffer) Destroy() { b.buf.Destroy() }

func (b *buffer) Size() uint64 { return b.size }

func (b *buffer) MapRead(offset, size uint64, callback func([]byte, error)) error {
	return b.buf.MapAsync(wgpu.MapModeRead, offset, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			callback(nil, fmt.Errorf("backend: map of %q failed with status %v", b.label, status))
			return
		}
		data := bytes.Clone(b.buf.GetMappedRange(uint(offset), uint(size)))
		b.buf.Unmap()
		callback(data, nil)
	})
}

// texture adapts *wgpu.Texture.
type texture struct {
	tex *wgpu.Texture
}

var _ gpu.Texture = &texture{}

func (t *texture) Release() { t.tex.Release() }

func (t *texture) Destroy() { t.tex.Destroy() }

func (t *texture) CreateView() (gpu.TextureView, error) {
	return t.tex.CreateView(nil)
}

// renderPass adapts *wgpu.RenderPassEncoder.
type renderPass struct {
	pass *wgpu.RenderPassEncoder
}

var _ gpu.RenderPassEncoder = &renderPass{}

func (p *renderPass) SetPipeline(pipeline gpu.RenderPipeline) {
	p.pass.SetPipeline(pipeline.(*wgpu.RenderPipeline))
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	p.pass.SetBindGroup(index, group.(*wgpu.BindGroup), offsets)
}

func (p *renderPass) SetVertexBuffer(slot uint32, b gpu.Buffer, offset, size uint64) {
	p.pass.SetVertexBuffer(slot, nativeBuffer(b), offset, size)
}

func (p *renderPass) SetIndexBuffer(b gpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	p.pass.SetIndexBuffer(nativeBuffer(b), format, offset, size)
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *renderPass) DrawIndirect(indirect gpu.Buffer, offset uint64) {
	p.pass.DrawIndirect(nativeBuffer(indirect), offset)
}

func (p *renderPass) DrawIndexedIndirect(indirect gpu.Buffer, offset uint64) {
	p.pass.DrawIndexedIndirect(nativeBuffer(indirect), offset)
}

func (p *renderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
}

func (p *renderPass) SetScissorRect(x, y, width, height uint32) {
	p.pass.SetScissorRect(x, y, width, height)
}

func (p *renderPass) SetBlendConstant(color wgpu.Color) {
	p.pass.SetBlendConstant(&color)
}

func (p *renderPass) SetStencilReference(reference uint32) {
	p.pass.SetStencilReference(reference)
}

func (p *renderPass) ExecuteBundles(bundles ...gpu.RenderBundle) {
	native := make([]*wgpu.RenderBundle, len(bundles))
	for i, b := range bundles {
		native[i] = b.(*wgpu.RenderBundle)
	}
	p.pass.ExecuteBundles(native...)
}

// BeginOcclusionQuery is a no-op. The native binding has no way to attach an occlusion query set to
// a render pass, so queries are never begun and resolve to zero.
func (p *renderPass) BeginOcclusionQuery(queryIndex uint32) {}

func (p *renderPass) EndOcclusionQuery() {}

func (p *renderPass) End() {
	if err := p.pass.End(); err != nil {
		common.Logger().Error("[backend] failed to end render pass", "error", err)
	}
	p.pass.Release()
}

// bundleEncoder adapts *wgpu.RenderBundleEncoder.
type bundleEncoder struct {
	enc *wgpu.RenderBundleEncoder
}

var _ gpu.RenderBundleEncoder = &bundleEncoder{}

func (e *bundleEncoder) SetPipeline(pipeline gpu.RenderPipeline) {
	e.enc.SetPipeline(pipeline.(*wgpu.RenderPipeline))
}

func (e *bundleEncoder) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	e.enc.SetBindGroup(index, group.(*wgpu.BindGroup), offsets)
}

func (e *bundleEncoder) SetVertexBuffer(slot uint32, b gpu.Buffer, offset, size uint64) {
	e.enc.SetVertexBuffer(slot, nativeBuffer(b), offset, size)
}

func (e *bundleEncoder) SetIndexBuffer(b gpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	e.enc.SetIndexBuffer(nativeBuffer(b), format, offset, size)
}

func (e *bundleEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.enc.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (e *bundleEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	e.enc.DrawIndexed(indexCount, instanceCount, firstIndex, uint32(baseVertex), firstInstance)
}

func (e *bundleEncoder) DrawIndirect(indirect gpu.Buffer, offset uint64) {
	e.enc.DrawIndirect(nativeBuffer(indirect), offset)
}

func (e *bundleEncoder) DrawIndexedIndirect(indirect gpu.Buffer, offset uint64) {
	e.enc.DrawIndexedIndirect(nativeBuffer(indirect), offset)
}

func (e *bundleEncoder) Finish(label string) (gpu.RenderBundle, error) {
	b := e.enc.Finish(&wgpu.RenderBundleDescriptor{Label: label})
	e.enc.Release()
	if b == nil {
		return nil, fmt.Errorf("backend: failed to finish render bundle %q", label)
	}
	return b, nil
}

// computePass adapts *wgpu.ComputePassEncoder.
type computePass struct {
	pass *wgpu.ComputePassEncoder
}

var _ gpu.ComputePassEncoder = &computePass{}

func (p *computePass) SetPipeline(pipeline gpu.ComputePipeline) {
	p.pass.SetPipeline(pipeline.(*wgpu.ComputePipeline))
}

func (p *computePass) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	p.pass.SetBindGroup(index, group.(*wgpu.BindGroup), offsets)
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *computePass) DispatchWorkgroupsIndirect(indirect gpu.Buffer, offset uint64) {
	p.pass.DispatchWorkgroupsIndirect(nativeBuffer(indirect), offset)
}

func (p *computePass) End() {
	if err := p.pass.End(); err != nil {
		common.Logger().Error("[backend] failed to end compute pass", "error", err)
	}
	p.pass.Release()
}

// commandEncoder adapts *wgpu.CommandEncoder.
type commandEncoder struct {
	enc *wgpu.CommandEncoder
}

var _ gpu.CommandEncoder = &commandEncoder{}

func (e *commandEncoder) Release() { e.enc.Release() }

func (e *commandEncoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPassEncoder {
	native := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, a := range desc.ColorAttachments {
		if a == nil {
			native.ColorAttachments = append(native.ColorAttachments, wgpu.RenderPassColorAttachment{})
			continue
		}
		ca := wgpu.RenderPassColorAttachment{
			View:       a.View.(*wgpu.TextureView),
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if a.ResolveTarget != nil {
			ca.ResolveTarget = a.ResolveTarget.(*wgpu.TextureView)
		}
		native.ColorAttachments = append(native.ColorAttachments, ca)
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		native.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:              ds.View.(*wgpu.TextureView),
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      ds.DepthStoreOp,
			DepthClearValue:   ds.DepthClearValue,
			DepthReadOnly:     ds.DepthReadOnly,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: ds.StencilClearValue,
			StencilReadOnly:   ds.StencilReadOnly,
		}
	}
	if desc.OcclusionQuerySet != nil {
		common.Logger().Warn("[backend] occlusion queries are not supported by the native binding, results will be zero",
			"pass", desc.Label)
	}
	pass := e.enc.BeginRenderPass(native)
	return &renderPass{pass: pass}
}

func (e *commandEncoder) BeginComputePass(label string) gpu.ComputePassEncoder {
	return &computePass{pass: e.enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}
}

func (e *commandEncoder) CopyBufferToBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) {
	if err := e.enc.CopyBufferToBuffer(nativeBuffer(src), srcOffset, nativeBuffer(dst), dstOffset, size); err != nil {
		common.Logger().Error("[backend] buffer copy failed", "size", size, "error", err)
	}
}

func (e *commandEncoder) ResolveQuerySet(set gpu.QuerySet, firstQuery, queryCount uint32, dst gpu.Buffer, dstOffset uint64) {
	if err := e.enc.ResolveQuerySet(set.(*wgpu.QuerySet), firstQuery, queryCount, nativeBuffer(dst), dstOffset); err != nil {
		common.Logger().Error("[backend] query resolve failed", "count", queryCount, "error", err)
	}
}

func (e *commandEncoder) Finish() (gpu.CommandBuffer, error) {
	return e.enc.Finish(nil)
}
