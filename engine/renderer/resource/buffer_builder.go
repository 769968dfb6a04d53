package resource

import "github.com/cogentcore/webgpu/wgpu"

// BufferBuilderOption is a functional option for configuring a Buffer.
type BufferBuilderOption func(*Buffer)

// WithBufferLabel sets the debug label of the buffer.
func WithBufferLabel(label string) BufferBuilderOption {
	return func(b *Buffer) {
		b.label = label
	}
}

// WithBufferSize sets an explicit byte size. Without it the size follows the initial data.
//
// Parameters:
//   - size: the byte size, rounded up to a multiple of 4
//
// Returns:
//   - BufferBuilderOption: the option to apply
func WithBufferSize(size uint64) BufferBuilderOption {
	return func(b *Buffer) {
		b.size = size
	}
}

// WithBufferUsage sets explicit usage flags. Without it the cache's default usage mask applies.
//
// Parameters:
//   - usage: the buffer usage flags
//
// Returns:
//   - BufferBuilderOption: the option to apply
func WithBufferUsage(usage wgpu.BufferUsage) BufferBuilderOption {
	return func(b *Buffer) {
		b.usage = usage
	}
}

// WithBufferData sets the initial contents uploaded when the native buffer is created. The data is copied.
//
// Parameters:
//   - data: the initial bytes
//
// Returns:
//   - BufferBuilderOption: the option to apply
func WithBufferData(data []byte) BufferBuilderOption {
	return func(b *Buffer) {
		b.data = append([]byte(nil), data...)
		b.element = ElementUntyped
	}
}
