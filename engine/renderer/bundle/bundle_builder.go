package bundle

import "github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"

// RenderBundleBuilderOption is a functional option for configuring a RenderBundle.
type RenderBundleBuilderOption func(*RenderBundle)

// WithObjects sets the render objects recorded into the bundle, in order.
func WithObjects(objects ...*command.RenderObject) RenderBundleBuilderOption {
	return func(b *RenderBundle) {
		b.objects = append(b.objects, objects...)
	}
}

// WithReadOnlyDepthStencil declares that the bundle never writes depth or stencil, so it can be
// executed in passes with read-only depth/stencil attachments.
func WithReadOnlyDepthStencil(depth, stencil bool) RenderBundleBuilderOption {
	return func(b *RenderBundle) {
		b.depthReadOnly = depth
		b.stencilReadOnly = stencil
	}
}
