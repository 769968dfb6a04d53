// Package command turns render and compute objects into encoder calls. Every encoder gets its own
// state tracker remembering the last pipeline, bind groups, buffers and dynamic state it was given,
// so a call repeating the current value is never issued twice.
package command

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrVolatileBinding is returned when an object recorded into a render bundle binds a
	// per-frame resource such as a surface texture.
	ErrVolatileBinding = errors.New("command: per-frame resource bound inside a render bundle")

	// ErrWorkSize is returned when neither an explicit nor a derivable draw or dispatch size exists.
	ErrWorkSize = errors.New("command: draw or dispatch size unknown")
)

// Viewport is the rasterization viewport of a draw.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Scissor is the scissor rectangle of a draw.
type Scissor struct {
	X, Y, Width, Height uint32
}

func indexSize(format wgpu.IndexFormat) uint64 {
	if format == wgpu.IndexFormatUint16 {
		return 2
	}
	return 4
}
