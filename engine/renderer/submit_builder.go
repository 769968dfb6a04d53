package renderer

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bundle"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"
)

// SubmitBuilderOption is a functional option for configuring a Submit.
type SubmitBuilderOption func(*Submit)

// WithEncoders appends command encoders to the submit, in order.
func WithEncoders(encoders ...*CommandEncoder) SubmitBuilderOption {
	return func(s *Submit) {
		s.encoders = append(s.encoders, encoders...)
	}
}

// CommandEncoderBuilderOption is a functional option for configuring a CommandEncoder.
type CommandEncoderBuilderOption func(*CommandEncoder)

// WithPasses appends render or compute passes to the encoder, in order.
func WithPasses(passes ...Pass) CommandEncoderBuilderOption {
	return func(e *CommandEncoder) {
		e.passes = append(e.passes, passes...)
	}
}

// WithReadbacks appends buffer readbacks recorded after every pass of the encoder.
func WithReadbacks(readbacks ...*Readback) CommandEncoderBuilderOption {
	return func(e *CommandEncoder) {
		e.readbacks = append(e.readbacks, readbacks...)
	}
}

// RenderPassBuilderOption is a functional option for configuring a RenderPass.
type RenderPassBuilderOption func(*RenderPass)

// WithColorAttachments sets the color targets of the pass. A zero ColorAttachment marks an unused
// slot.
//
// Parameters:
//   - attachments: the color attachments in slot order
//
// Returns:
//   - RenderPassBuilderOption: a function that applies the attachments to a RenderPass
func WithColorAttachments(attachments ...ColorAttachment) RenderPassBuilderOption {
	return func(p *RenderPass) {
		p.colors = attachments
	}
}

// WithDepthStencilAttachment sets the depth/stencil target of the pass.
func WithDepthStencilAttachment(attachment DepthStencilAttachment) RenderPassBuilderOption {
	return func(p *RenderPass) {
		p.depthStencil = &attachment
	}
}

// WithObjects appends render objects drawn directly in the pass.
func WithObjects(objects ...*command.RenderObject) RenderPassBuilderOption {
	return func(p *RenderPass) {
		for _, o := range objects {
			p.items = append(p.items, passItem{object: o})
		}
	}
}

// WithBundles appends render bundles executed in the pass. Consecutive bundles are executed with
// one native call.
func WithBundles(bundles ...*bundle.RenderBundle) RenderPassBuilderOption {
	return func(p *RenderPass) {
		for _, b := range bundles {
			p.items = append(p.items, passItem{bundle: b})
		}
	}
}

// WithOcclusionQuery attaches an occlusion query set to the pass. Render objects select their
// query slot with command.WithOcclusionQuery.
func WithOcclusionQuery(q *OcclusionQuery) RenderPassBuilderOption {
	return func(p *RenderPass) {
		p.occlusionQuery = q
	}
}

// ComputePassBuilderOption is a functional option for configuring a ComputePass.
type ComputePassBuilderOption func(*ComputePass)

// WithComputeObjects appends compute objects dispatched in the pass.
func WithComputeObjects(objects ...*command.ComputeObject) ComputePassBuilderOption {
	return func(p *ComputePass) {
		p.objects = append(p.objects, objects...)
	}
}
