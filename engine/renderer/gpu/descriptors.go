package gpu

import "github.com/cogentcore/webgpu/wgpu"

// DefaultBufferUsage is used when a buffer descriptor does not specify usage flags.
const DefaultBufferUsage = wgpu.BufferUsageVertex | wgpu.BufferUsageIndex | wgpu.BufferUsageUniform |
	wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// CopyAlignment is the byte alignment the queue requires for buffer sizes and writes.
const CopyAlignment = 4

// WholeSize binds a buffer from its offset to its end.
const WholeSize = wgpu.WholeSize

// TextureCopy addresses a region of a texture for uploads.
type TextureCopy struct {
	Texture  Texture
	MipLevel uint32
	Origin   wgpu.Origin3D
	Aspect   wgpu.TextureAspect
}

// PipelineLayoutDescriptor describes a native pipeline layout.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// BindGroupEntry binds one resource at a binding index. Exactly one of Buffer, Sampler or TextureView is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	Sampler     Sampler
	TextureView TextureView
}

// BindGroupDescriptor describes a native bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// VertexState is the vertex stage of a render pipeline.
type VertexState struct {
	Module     ShaderModule
	EntryPoint string
	Buffers    []wgpu.VertexBufferLayout
}

// FragmentState is the fragment stage of a render pipeline. A target with
// wgpu.TextureFormatUndefined marks an unused attachment slot.
type FragmentState struct {
	Module     ShaderModule
	EntryPoint string
	Targets    []wgpu.ColorTargetState
}

// RenderPipelineDescriptor describes a native render pipeline.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       PipelineLayout
	Vertex       VertexState
	Fragment     *FragmentState
	Primitive    wgpu.PrimitiveState
	DepthStencil *wgpu.DepthStencilState
	Multisample  wgpu.MultisampleState
}

// ComputePipelineDescriptor describes a native compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     PipelineLayout
	Module     ShaderModule
	EntryPoint string
}

// RenderBundleEncoderDescriptor describes the target formats a bundle is recorded against.
type RenderBundleEncoderDescriptor struct {
	Label              string
	ColorFormats       []wgpu.TextureFormat
	DepthStencilFormat wgpu.TextureFormat
	SampleCount        uint32
	DepthReadOnly      bool
	StencilReadOnly    bool
}

// QuerySetDescriptor describes an occlusion query set.
type QuerySetDescriptor struct {
	Label string
	Count uint32
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View          TextureView
	ResolveTarget TextureView
	LoadOp        wgpu.LoadOp
	StoreOp       wgpu.StoreOp
	ClearValue    wgpu.Color
}

// DepthStencilAttachment is the depth/stencil target of a render pass.
type DepthStencilAttachment struct {
	View              TextureView
	DepthLoadOp       wgpu.LoadOp
	DepthStoreOp      wgpu.StoreOp
	DepthClearValue   float32
	DepthReadOnly     bool
	StencilLoadOp     wgpu.LoadOp
	StencilStoreOp    wgpu.StoreOp
	StencilClearValue uint32
	StencilReadOnly   bool
}

// RenderPassDescriptor describes a native render pass. A nil entry in ColorAttachments is an unused slot.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []*ColorAttachment
	DepthStencilAttachment *DepthStencilAttachment
	OcclusionQuerySet      QuerySet
}
