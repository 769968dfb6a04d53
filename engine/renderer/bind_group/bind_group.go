// Package bind_group resolves a pipeline layout against an application-supplied map of named
// resources into native bind groups. Uniform bindings without a caller-supplied buffer get a
// backing buffer sized to the reflected struct, addressable by field name.
package bind_group

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
)

var (
	// ErrMissingResource is returned when a layout binding has no entry in the resource map.
	ErrMissingResource = errors.New("bind_group: missing resource")

	// ErrResourceKind is returned when a resource cannot be bound to the reflected binding kind.
	ErrResourceKind = errors.New("bind_group: resource kind does not match binding")

	// ErrUnknownField is reported when a uniform value names a field the struct does not declare.
	ErrUnknownField = errors.New("bind_group: unknown uniform field")

	// ErrFieldValue is reported when a uniform value does not encode into its field.
	ErrFieldValue = errors.New("bind_group: invalid uniform field value")
)

// Kind is the discriminant of a Resource.
type Kind int

const (
	KindNone Kind = iota
	KindBuffer
	KindTexture
	KindSampler

	// KindUniform is a structured value uploaded into a backing buffer the compiler allocates.
	KindUniform
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindSampler:
		return "sampler"
	case KindUniform:
		return "uniform"
	default:
		return "none"
	}
}

// Resource is one entry of a resource map. It is a tagged variant: exactly one of the payload
// fields matching Kind is set. Resources compare equal when they bind the same descriptors with
// the same ranges.
type Resource struct {
	kind    Kind
	buffer  *resource.Buffer
	offset  uint64
	size    uint64
	texture *resource.Texture
	sampler *resource.Sampler
	uniform *Uniform
}

// BufferResource binds the whole of b.
func BufferResource(b *resource.Buffer) Resource {
	return Resource{kind: KindBuffer, buffer: b}
}

// BufferRange binds size bytes of b starting at offset. A size of 0 binds to the end of the buffer.
//
// Parameters:
//   - b: the buffer descriptor
//   - offset: the byte offset of the bound range
//   - size: the byte size of the bound range
//
// Returns:
//   - Resource: the buffer resource
func BufferRange(b *resource.Buffer, offset, size uint64) Resource {
	return Resource{kind: KindBuffer, buffer: b, offset: offset, size: size}
}

// TextureResource binds the default view of t. Surface and external textures make the resolution
// volatile.
func TextureResource(t *resource.Texture) Resource {
	return Resource{kind: KindTexture, texture: t}
}

// SamplerResource binds s.
func SamplerResource(s *resource.Sampler) Resource {
	return Resource{kind: KindSampler, sampler: s}
}

// UniformResource binds a structured value. The compiler allocates the backing buffer.
func UniformResource(u *Uniform) Resource {
	return Resource{kind: KindUniform, uniform: u}
}

func (r Resource) Kind() Kind {
	return r.kind
}

func (r Resource) Buffer() *resource.Buffer {
	return r.buffer
}

func (r Resource) Texture() *resource.Texture {
	return r.texture
}

func (r Resource) Sampler() *resource.Sampler {
	return r.sampler
}

func (r Resource) Uniform() *Uniform {
	return r.uniform
}

// Volatile reports whether the bound resource is only valid for the current frame.
func (r Resource) Volatile() bool {
	return r.kind == KindTexture && r.texture != nil && r.texture.Volatile()
}

// accepts reports whether r can be bound to a binding of the reflected kind.
func (r Resource) accepts(kind shader.ResourceKind) error {
	ok := false
	switch {
	case kind.IsBuffer():
		ok = r.kind == KindBuffer || r.kind == KindUniform
	case kind.IsSampler():
		ok = r.kind == KindSampler
	case kind.IsTexture():
		ok = r.kind == KindTexture
	}
	if !ok {
		return fmt.Errorf("%w: %s bound to %s binding", ErrResourceKind, r.kind, kind)
	}
	return nil
}
