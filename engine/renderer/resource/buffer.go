package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type bufferWrite struct {
	offset uint64
	data   []byte
}

// Buffer describes a logical GPU buffer. The native buffer is created on first resolution.
type Buffer struct {
	label     string
	size      uint64
	usage     wgpu.BufferUsage
	data      []byte
	element   ElementKind
	writes    []bufferWrite
	destroyed bool
	events    common.Subject[Event]
}

var _ Descriptor = &Buffer{}

// NewBuffer creates a Buffer descriptor with all specified options applied.
//
// Parameters:
//   - options: functional options such as WithBufferSize, WithBufferData and WithBufferUsage
//
// Returns:
//   - *Buffer: the buffer descriptor
func NewBuffer(options ...BufferBuilderOption) *Buffer {
	b := &Buffer{}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *Buffer) Label() string {
	return b.label
}

// Size returns the byte size of the native buffer: the explicit size, or the initial data length,
// rounded up to the copy alignment.
func (b *Buffer) Size() uint64 {
	size := b.size
	if size == 0 {
		size = uint64(len(b.data))
	}
	return common.AlignUp(gpu.CopyAlignment, size)
}

// Usage returns the explicit usage flags, or 0 when the cache default applies.
func (b *Buffer) Usage() wgpu.BufferUsage {
	return b.usage
}

func (b *Buffer) Destroyed() bool {
	return b.destroyed
}

func (b *Buffer) Subscribe(fn func(Event)) common.Unsubscribe {
	return b.events.Subscribe(fn)
}

// Write queues a partial upload flushed the next time the buffer is resolved. The data is copied.
// A length that is not a multiple of 4 is zero padded on upload; bytes past len(data) in the
// padded tail are undefined.
//
// Parameters:
//   - offset: the destination byte offset, a multiple of 4
//   - data: the bytes to upload
//
// Returns:
//   - error: an error if the offset is unaligned or the write overflows the buffer
func (b *Buffer) Write(offset uint64, data []byte) error {
	if offset%gpu.CopyAlignment != 0 {
		return fmt.Errorf("resource: buffer %q write offset %d is not %d-byte aligned", b.label, offset, gpu.CopyAlignment)
	}
	if offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("resource: buffer %q write of %d bytes at %d overflows size %d", b.label, len(data), offset, b.Size())
	}
	b.writes = append(b.writes, bufferWrite{offset: offset, data: append([]byte(nil), data...)})
	return nil
}

// Pending returns the number of queued writes.
func (b *Buffer) Pending() int {
	return len(b.writes)
}

// Resize changes the buffer size. The native buffer is recreated on next resolution with the
// initial data, and pending writes beyond the new size are dropped.
//
// Parameters:
//   - size: the new byte size
func (b *Buffer) Resize(size uint64) {
	if size == b.size {
		return
	}
	b.size = size
	kept := b.writes[:0]
	for _, w := range b.writes {
		if w.offset+uint64(len(w.data)) <= b.Size() {
			kept = append(kept, w)
		}
	}
	b.writes = kept
	b.events.Notify(EventResized)
}

func (b *Buffer) takeWrites() []bufferWrite {
	w := b.writes
	b.writes = nil
	return w
}
