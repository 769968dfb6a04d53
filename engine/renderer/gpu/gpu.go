// Package gpu declares the native graphics device the compiler drives. The interfaces mirror the
// WebGPU primitives the compiler consumes and use the cogentcore wgpu enum and value types, so a
// thin adapter (see package backend) maps them one-to-one onto a real *wgpu.Device while tests
// substitute a recording fake.
package gpu

import "github.com/cogentcore/webgpu/wgpu"

// Releaser is implemented by every native handle.
type Releaser interface {
	// Release drops the native reference held by this handle.
	Release()
}

// Buffer is a native GPU buffer.
type Buffer interface {
	Releaser

	// Size returns the byte size the buffer was created with.
	//
	// Returns:
	//   - uint64: the buffer size in bytes
	Size() uint64

	// Destroy frees the buffer memory immediately. The handle must not be used afterwards.
	Destroy()

	// MapRead maps [offset, offset+size) for reading once all submitted work touching the buffer
	// completes. The callback receives a copy of the mapped range; the buffer is unmapped before
	// the callback runs.
	//
	// Parameters:
	//   - offset: the byte offset of the range to map
	//   - size: the byte size of the range to map
	//   - callback: invoked with the copied bytes, or with an error if mapping failed
	//
	// Returns:
	//   - error: an error if the map request could not be issued
	MapRead(offset, size uint64, callback func(data []byte, err error)) error
}

// Texture is a native GPU texture.
type Texture interface {
	Releaser

	// CreateView creates the default view of the texture.
	//
	// Returns:
	//   - TextureView: the created view
	//   - error: an error if view creation fails
	CreateView() (TextureView, error)

	// Destroy frees the texture memory immediately.
	Destroy()
}

// TextureView is a native texture view.
type TextureView interface{ Releaser }

// Sampler is a native sampler.
type Sampler interface{ Releaser }

// ShaderModule is a compiled native shader module.
type ShaderModule interface{ Releaser }

// BindGroupLayout is a native bind group layout.
type BindGroupLayout interface{ Releaser }

// PipelineLayout is a native pipeline layout.
type PipelineLayout interface{ Releaser }

// RenderPipeline is a native render pipeline.
type RenderPipeline interface{ Releaser }

// ComputePipeline is a native compute pipeline.
type ComputePipeline interface{ Releaser }

// BindGroup is a native bind group.
type BindGroup interface{ Releaser }

// RenderBundle is a sealed native render bundle.
type RenderBundle interface{ Releaser }

// QuerySet is a native occlusion query set.
type QuerySet interface{ Releaser }

// CommandBuffer is a finished command buffer ready for submission.
type CommandBuffer interface{ Releaser }

// RenderCommands is the command subset shared by render pass encoders and render bundle encoders.
type RenderCommands interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer Buffer, offset, size uint64)
	SetIndexBuffer(buffer Buffer, format wgpu.IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndirect(indirect Buffer, offset uint64)
	DrawIndexedIndirect(indirect Buffer, offset uint64)
}

// RenderPassEncoder records commands for one render pass.
type RenderPassEncoder interface {
	RenderCommands

	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	SetBlendConstant(color wgpu.Color)
	SetStencilReference(reference uint32)
	ExecuteBundles(bundles ...RenderBundle)
	BeginOcclusionQuery(queryIndex uint32)
	EndOcclusionQuery()
	End()
}

// RenderBundleEncoder records a reusable render bundle.
type RenderBundleEncoder interface {
	RenderCommands

	// Finish seals the recorded commands into an immutable bundle.
	//
	// Parameters:
	//   - label: the debug label of the bundle
	//
	// Returns:
	//   - RenderBundle: the sealed bundle
	//   - error: an error if the bundle could not be sealed
	Finish(label string) (RenderBundle, error)
}

// ComputePassEncoder records commands for one compute pass.
type ComputePassEncoder interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(x, y, z uint32)
	DispatchWorkgroupsIndirect(indirect Buffer, offset uint64)
	End()
}

// CommandEncoder records passes and copies into a command buffer.
type CommandEncoder interface {
	Releaser

	BeginRenderPass(desc *RenderPassDescriptor) RenderPassEncoder
	BeginComputePass(label string) ComputePassEncoder
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)
	ResolveQuerySet(set QuerySet, firstQuery, queryCount uint32, dst Buffer, dstOffset uint64)

	// Finish ends recording.
	//
	// Returns:
	//   - CommandBuffer: the finished command buffer
	//   - error: an error if the encoder was invalid
	Finish() (CommandBuffer, error)
}

// Queue is the device submission queue.
type Queue interface {
	Submit(buffers ...CommandBuffer)

	// WriteBuffer schedules an upload of data into buffer at offset. len(data) must be a multiple of 4.
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error

	// WriteTexture schedules an upload of data into a texture region.
	WriteTexture(dst TextureCopy, data []byte, layout wgpu.TextureDataLayout, size wgpu.Extent3D) error
}

// Device creates native objects. Every create call is synchronous.
type Device interface {
	CreateBuffer(desc *wgpu.BufferDescriptor) (Buffer, error)
	CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error)
	CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error)
	CreateShaderModule(label, code string) (ShaderModule, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateRenderBundleEncoder(desc *RenderBundleEncoderDescriptor) (RenderBundleEncoder, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	CreateQuerySet(desc *QuerySetDescriptor) (QuerySet, error)

	// Queue returns the device's submission queue.
	Queue() Queue

	// Poll drives pending asynchronous callbacks such as buffer mapping.
	//
	// Parameters:
	//   - wait: true to block until all submitted work has completed
	Poll(wait bool)
}
