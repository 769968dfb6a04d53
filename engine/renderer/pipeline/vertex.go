package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrMissingAttribute is returned when a reflected vertex input has no attribute.
	ErrMissingAttribute = errors.New("pipeline: missing vertex attribute")

	// ErrVertexFormat is returned when attribute data does not match its vertex format.
	ErrVertexFormat = errors.New("pipeline: vertex data does not match format")

	// ErrVertexLayout is returned when an attribute does not fit inside its stride.
	ErrVertexLayout = errors.New("pipeline: vertex attribute overflows stride")
)

// VertexAttribute is the data source of one vertex shader input.
type VertexAttribute struct {
	// Buffer holds the attribute data. Attributes sharing a buffer, stride and step mode share
	// one vertex buffer slot.
	Buffer *resource.Buffer
	// Format is the element format, VertexFormatUndefined to use the reflected input format.
	Format wgpu.VertexFormat
	// Offset is the byte offset of the attribute inside each element.
	Offset uint64
	// Stride is the byte distance between elements, 0 for tightly packed data.
	Stride uint64
	// StepMode advances the attribute per vertex or per instance.
	StepMode wgpu.VertexStepMode
}

// VertexAttributes maps vertex input names to attribute sources. It is a cache key by reference;
// changing an entry evicts the pipelines compiled against it.
type VertexAttributes struct {
	label  string
	attrs  map[string]VertexAttribute
	events common.Subject[string]
}

// NewVertexAttributes creates an attribute map with all specified options applied.
//
// Parameters:
//   - options: functional options such as WithAttribute
//
// Returns:
//   - *VertexAttributes: the attribute map
func NewVertexAttributes(options ...VertexAttributesBuilderOption) *VertexAttributes {
	v := &VertexAttributes{attrs: make(map[string]VertexAttribute)}
	for _, opt := range options {
		opt(v)
	}
	return v
}

func (v *VertexAttributes) Label() string {
	return v.label
}

// Get looks up the attribute of a vertex input.
func (v *VertexAttributes) Get(name string) (VertexAttribute, bool) {
	if v == nil {
		return VertexAttribute{}, false
	}
	a, ok := v.attrs[name]
	return a, ok
}

// Set replaces the attribute of a vertex input and notifies subscribers.
//
// Parameters:
//   - name: the vertex input name as declared in the shader
//   - attr: the attribute source
func (v *VertexAttributes) Set(name string, attr VertexAttribute) {
	if prev, ok := v.attrs[name]; ok && prev == attr {
		return
	}
	v.attrs[name] = attr
	v.events.Notify(name)
}

// Subscribe registers fn to receive the name of every changed attribute.
func (v *VertexAttributes) Subscribe(fn func(name string)) common.Unsubscribe {
	return v.events.Subscribe(fn)
}

// VertexSlot is one vertex buffer binding of a compiled pipeline.
type VertexSlot struct {
	Buffer *resource.Buffer
	Layout wgpu.VertexBufferLayout
}

// VertexLayout is the vertex buffer layout of a compiled pipeline, slots ordered by first use.
type VertexLayout struct {
	Slots []VertexSlot
}

// Buffers returns the native vertex buffer layouts ordered by slot.
func (l VertexLayout) Buffers() []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(l.Slots))
	for i, s := range l.Slots {
		out[i] = s.Layout
	}
	return out
}

// deriveVertexLayout walks the reflected inputs in location order and groups their attributes
// into vertex buffer slots. Attributes sharing a buffer but differing in stride or step mode get
// separate slots bound to the same buffer.
func deriveVertexLayout(inputs []shader.VertexInput, attrs *VertexAttributes) (VertexLayout, error) {
	var l VertexLayout
	for _, in := range inputs {
		if in.Builtin {
			continue
		}
		a, ok := attrs.Get(in.Name)
		if !ok || a.Buffer == nil {
			return VertexLayout{}, fmt.Errorf("%w: %q at location %d", ErrMissingAttribute, in.Name, in.Location)
		}

		format := common.Coalesce(a.Format, in.Format)
		info, ok := vertexFormats[format]
		if !ok {
			return VertexLayout{}, fmt.Errorf("%w: %q has unsupported format %d", ErrVertexFormat, in.Name, uint32(format))
		}
		if kind := a.Buffer.Element(); kind != resource.ElementUntyped && !info.accepts(kind) {
			return VertexLayout{}, fmt.Errorf("%w: %q is %s data for format %d", ErrVertexFormat, in.Name, kind, uint32(format))
		}

		stride := a.Stride
		if stride == 0 {
			stride = common.AlignUp(gpu.CopyAlignment, info.size)
		}
		if stride%gpu.CopyAlignment != 0 {
			return VertexLayout{}, fmt.Errorf("%w: %q stride %d is not a multiple of %d", ErrVertexLayout, in.Name, stride, gpu.CopyAlignment)
		}
		if a.Offset+info.size > stride {
			return VertexLayout{}, fmt.Errorf("%w: %q needs %d bytes at offset %d, stride is %d", ErrVertexLayout, in.Name, info.size, a.Offset, stride)
		}

		attr := wgpu.VertexAttribute{Format: format, Offset: a.Offset, ShaderLocation: in.Location}
		slot := -1
		for i, s := range l.Slots {
			if s.Buffer == a.Buffer && s.Layout.ArrayStride == stride && s.Layout.StepMode == a.StepMode {
				slot = i
				break
			}
		}
		if slot < 0 {
			l.Slots = append(l.Slots, VertexSlot{
				Buffer: a.Buffer,
				Layout: wgpu.VertexBufferLayout{ArrayStride: stride, StepMode: a.StepMode},
			})
			slot = len(l.Slots) - 1
		}
		l.Slots[slot].Layout.Attributes = append(l.Slots[slot].Layout.Attributes, attr)
	}
	return l, nil
}
