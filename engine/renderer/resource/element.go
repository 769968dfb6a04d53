package resource

import (
	"encoding/binary"
	"math"
)

// ElementKind is the component type of typed buffer contents. Vertex layouts use it to reject
// attribute data whose components do not match the declared vertex format.
type ElementKind int

const (
	// ElementUntyped marks raw byte contents that are never checked.
	ElementUntyped ElementKind = iota
	ElementFloat32
	ElementUint32
	ElementInt32
	ElementUint16
	ElementInt16
	ElementUint8
	ElementInt8
)

var elementKindNames = [...]string{"untyped", "float32", "uint32", "int32", "uint16", "int16", "uint8", "int8"}

func (k ElementKind) String() string {
	if k >= 0 && int(k) < len(elementKindNames) {
		return elementKindNames[k]
	}
	return "unknown"
}

var elementSizes = [...]uint64{1, 4, 4, 4, 2, 2, 1, 1}

// Size returns the byte size of one element, 1 for untyped contents.
func (k ElementKind) Size() uint64 {
	if k >= 0 && int(k) < len(elementSizes) {
		return elementSizes[k]
	}
	return 1
}

// Element is the set of component types a typed buffer can hold.
type Element interface {
	float32 | uint32 | int32 | uint16 | int16 | uint8 | int8
}

// NewBufferOf creates a Buffer descriptor whose initial contents are data encoded little-endian.
// The buffer remembers the element kind of data.
//
// Parameters:
//   - data: the typed initial contents
//   - options: further options; WithBufferData would replace the encoded contents
//
// Returns:
//   - *Buffer: the buffer descriptor
func NewBufferOf[T Element](data []T, options ...BufferBuilderOption) *Buffer {
	b := NewBuffer(options...)
	b.data, b.element = encodeElements(data)
	return b
}

// Element returns the component kind of the buffer contents, ElementUntyped for raw bytes.
func (b *Buffer) Element() ElementKind {
	return b.element
}

// DataLen returns the byte length of the initial contents before alignment padding, or the
// explicit size when one was set.
func (b *Buffer) DataLen() uint64 {
	if b.size != 0 {
		return b.size
	}
	return uint64(len(b.data))
}

func encodeElements[T Element](data []T) ([]byte, ElementKind) {
	var kind ElementKind
	var size int
	var zero T
	switch any(zero).(type) {
	case float32:
		kind, size = ElementFloat32, 4
	case uint32:
		kind, size = ElementUint32, 4
	case int32:
		kind, size = ElementInt32, 4
	case uint16:
		kind, size = ElementUint16, 2
	case int16:
		kind, size = ElementInt16, 2
	case uint8:
		kind, size = ElementUint8, 1
	case int8:
		kind, size = ElementInt8, 1
	}

	buf := make([]byte, 0, size*len(data))
	for _, v := range data {
		switch x := any(v).(type) {
		case float32:
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		case uint32:
			buf = binary.LittleEndian.AppendUint32(buf, x)
		case int32:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(x))
		case uint16:
			buf = binary.LittleEndian.AppendUint16(buf, x)
		case int16:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(x))
		case uint8:
			buf = append(buf, x)
		case int8:
			buf = append(buf, byte(x))
		}
	}
	return buf, kind
}
