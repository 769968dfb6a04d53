package renderer

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bundle"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// Submit is one frame of work: command encoders finished and submitted to the queue together, in
// list order.
type Submit struct {
	label    string
	encoders []*CommandEncoder
}

// NewSubmit creates a Submit with all specified options applied.
//
// Parameters:
//   - label: the debug label of the submit
//   - options: functional options such as WithEncoders
//
// Returns:
//   - *Submit: the submit graph
func NewSubmit(label string, options ...SubmitBuilderOption) *Submit {
	s := &Submit{label: label}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Submit) Label() string {
	return s.label
}

func (s *Submit) Encoders() []*CommandEncoder {
	return s.encoders
}

// Pass is a render or compute pass recorded into a CommandEncoder. It is implemented by
// *RenderPass and *ComputePass only.
type Pass interface {
	// Label returns the debug label of the pass.
	Label() string

	isPass()
}

// CommandEncoder records passes in list order, followed by its readbacks.
type CommandEncoder struct {
	label     string
	passes    []Pass
	readbacks []*Readback
}

// NewCommandEncoder creates a CommandEncoder with all specified options applied.
//
// Parameters:
//   - label: the debug label of the encoder
//   - options: functional options such as WithPasses and WithReadbacks
//
// Returns:
//   - *CommandEncoder: the encoder descriptor
func NewCommandEncoder(label string, options ...CommandEncoderBuilderOption) *CommandEncoder {
	e := &CommandEncoder{label: label}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *CommandEncoder) Label() string {
	return e.label
}

func (e *CommandEncoder) Passes() []Pass {
	return e.passes
}

func (e *CommandEncoder) Readbacks() []*Readback {
	return e.readbacks
}

// ColorAttachment is one color target of a RenderPass. A nil Texture marks an unused slot.
type ColorAttachment struct {
	Texture       *resource.Texture
	ResolveTarget *resource.Texture
	// LoadOp defaults to wgpu.LoadOpClear.
	LoadOp wgpu.LoadOp
	// StoreOp defaults to wgpu.StoreOpStore.
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// DepthStencilAttachment is the depth/stencil target of a RenderPass. Stencil operations are
// ignored for formats without a stencil aspect.
type DepthStencilAttachment struct {
	Texture         *resource.Texture
	DepthLoadOp     wgpu.LoadOp
	DepthStoreOp    wgpu.StoreOp
	DepthClearValue float32
	DepthReadOnly   bool

	StencilLoadOp     wgpu.LoadOp
	StencilStoreOp    wgpu.StoreOp
	StencilClearValue uint32
	StencilReadOnly   bool
}

// passItem is either a render object drawn directly or a bundle executed in the pass.
type passItem struct {
	object *command.RenderObject
	bundle *bundle.RenderBundle
}

// RenderPass draws render objects and executes render bundles in list order.
type RenderPass struct {
	label          string
	colors         []ColorAttachment
	depthStencil   *DepthStencilAttachment
	items          []passItem
	occlusionQuery *OcclusionQuery
}

var _ Pass = &RenderPass{}

// NewRenderPass creates a RenderPass with all specified options applied.
//
// Parameters:
//   - label: the debug label of the pass
//   - options: functional options such as WithColorAttachments, WithObjects and WithBundles
//
// Returns:
//   - *RenderPass: the pass descriptor
func NewRenderPass(label string, options ...RenderPassBuilderOption) *RenderPass {
	p := &RenderPass{label: label}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *RenderPass) isPass() {}

func (p *RenderPass) Label() string {
	return p.label
}

func (p *RenderPass) ColorAttachments() []ColorAttachment {
	return p.colors
}

func (p *RenderPass) DepthStencilAttachment() *DepthStencilAttachment {
	return p.depthStencil
}

func (p *RenderPass) OcclusionQuery() *OcclusionQuery {
	return p.occlusionQuery
}

// Format derives the pass format from the attachment textures. The sample count and size come
// from the first color attachment, or from the depth/stencil attachment when no color target is
// bound.
//
// Returns:
//   - pipeline.PassFormat: the format pipelines and bundles of this pass are compiled against
func (p *RenderPass) Format() pipeline.PassFormat {
	var pf pipeline.PassFormat
	var sized *resource.Texture
	if len(p.colors) > 0 {
		pf.ColorFormats = make([]wgpu.TextureFormat, len(p.colors))
	}
	for i, c := range p.colors {
		if c.Texture == nil {
			pf.ColorFormats[i] = wgpu.TextureFormatUndefined
			continue
		}
		pf.ColorFormats[i] = c.Texture.Format()
		if sized == nil {
			sized = c.Texture
		}
	}
	if p.depthStencil != nil && p.depthStencil.Texture != nil {
		pf.DepthStencilFormat = p.depthStencil.Texture.Format()
		if sized == nil {
			sized = p.depthStencil.Texture
		}
	}
	if sized != nil {
		size := sized.Size()
		pf.SampleCount = sized.SampleCount()
		pf.Width, pf.Height = size.Width, size.Height
	}
	return pf
}

// ComputePass dispatches compute objects in list order.
type ComputePass struct {
	label   string
	objects []*command.ComputeObject
}

var _ Pass = &ComputePass{}

// NewComputePass creates a ComputePass with all specified options applied.
//
// Parameters:
//   - label: the debug label of the pass
//   - options: functional options such as WithComputeObjects
//
// Returns:
//   - *ComputePass: the pass descriptor
func NewComputePass(label string, options ...ComputePassBuilderOption) *ComputePass {
	p := &ComputePass{label: label}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *ComputePass) isPass() {}

func (p *ComputePass) Label() string {
	return p.label
}

func (p *ComputePass) Objects() []*command.ComputeObject {
	return p.objects
}

func hasStencil(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatStencil8, wgpu.TextureFormatDepth24PlusStencil8, wgpu.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}
