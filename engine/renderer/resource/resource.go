// Package resource holds the application-facing buffer, texture and sampler descriptors and the
// per-device cache resolving them to native objects. Descriptors are keys by reference: two
// descriptors with identical fields are distinct resources.
package resource

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
)

var (
	// ErrDestroyed is returned when resolving a descriptor that was destroyed.
	ErrDestroyed = errors.New("resource: descriptor destroyed")
	// ErrDataOverflow is reported when a buffer's initial data is longer than its explicit size.
	ErrDataOverflow = errors.New("resource: initial data exceeds buffer size")
)

// Event is published by a descriptor when its native identity changes.
type Event int

const (
	// EventResized means the native object was recreated with a new size.
	EventResized Event = iota

	// EventChanged means a field baked into the native object was mutated.
	EventChanged

	// EventDestroyed means the descriptor was destroyed and can no longer be resolved.
	EventDestroyed
)

func (e Event) String() string {
	switch e {
	case EventResized:
		return "resized"
	case EventChanged:
		return "changed"
	case EventDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Descriptor is implemented by *Buffer, *Texture and *Sampler.
type Descriptor interface {
	// Label returns the debug label of the descriptor.
	Label() string

	// Subscribe registers fn for identity change events.
	//
	// Parameters:
	//   - fn: the observer
	//
	// Returns:
	//   - common.Unsubscribe: the handle removing fn
	Subscribe(fn func(Event)) common.Unsubscribe

	// Destroyed reports whether the descriptor was destroyed.
	Destroyed() bool
}

// SurfaceSource supplies the presentation texture of the current frame.
type SurfaceSource interface {
	// AcquireTexture returns the texture to draw into this frame.
	//
	// Returns:
	//   - gpu.Texture: the current surface texture
	//   - error: an error if the surface is lost or outdated
	AcquireTexture() (gpu.Texture, error)

	// Present displays the acquired texture.
	Present()
}

// ExternalSource supplies a per-frame view of externally produced content such as a video frame.
type ExternalSource interface {
	// AcquireView returns a view valid for the current frame only.
	//
	// Returns:
	//   - gpu.TextureView: the frame's view
	//   - error: an error if no frame is available
	AcquireView() (gpu.TextureView, error)
}

// padded returns data padded with zeros to the queue copy alignment.
func padded(data []byte) []byte {
	n := common.AlignUp(gpu.CopyAlignment, uint64(len(data)))
	if n == uint64(len(data)) {
		return data
	}
	scratch := make([]byte, n)
	copy(scratch, data)
	return scratch
}
