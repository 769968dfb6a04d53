// Package bundle records render objects into reusable render bundles. A bundle is recorded once
// per pass format fingerprint and replayed until its content list, one of its objects or one of
// the cached objects it captured changes.
package bundle

import (
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"
)

// ErrVolatileBinding is returned when a bundled object binds a per-frame resource.
var ErrVolatileBinding = command.ErrVolatileBinding

// RenderBundle describes a prerecorded list of render objects. It is a cache key by reference.
type RenderBundle struct {
	label           string
	objects         []*command.RenderObject
	depthReadOnly   bool
	stencilReadOnly bool
	events          common.Subject[*RenderBundle]
}

// NewRenderBundle creates a RenderBundle with all specified options applied.
//
// Parameters:
//   - label: the debug label of the bundle
//   - options: functional options such as WithObjects
//
// Returns:
//   - *RenderBundle: the bundle descriptor
func NewRenderBundle(label string, options ...RenderBundleBuilderOption) *RenderBundle {
	b := &RenderBundle{label: label}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *RenderBundle) Label() string {
	return b.label
}

// Objects returns the render objects in recording order.
func (b *RenderBundle) Objects() []*command.RenderObject {
	return b.objects
}

// SetObjects replaces the content list. Every recording of the bundle is discarded.
func (b *RenderBundle) SetObjects(objects ...*command.RenderObject) {
	b.objects = append([]*command.RenderObject(nil), objects...)
	b.events.Notify(b)
}

// Append adds objects to the end of the content list. Every recording of the bundle is discarded.
func (b *RenderBundle) Append(objects ...*command.RenderObject) {
	b.objects = append(b.objects, objects...)
	b.events.Notify(b)
}

// Subscribe registers fn to be called whenever the content list changes.
func (b *RenderBundle) Subscribe(fn func(*RenderBundle)) common.Unsubscribe {
	return b.events.Subscribe(fn)
}
