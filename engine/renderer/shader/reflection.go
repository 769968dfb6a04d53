package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrEntryPointNotFound is returned when a requested entry point is not declared for a stage.
var ErrEntryPointNotFound = errors.New("shader: entry point not found")

// ResourceKind is the discriminant of a reflected resource binding.
type ResourceKind int

const (
	ResourceUnknown ResourceKind = iota
	ResourceUniform
	ResourceStorage
	ResourceReadOnlyStorage
	ResourceSampler
	ResourceComparisonSampler
	ResourceTexture
	ResourceStorageTexture

	// ResourceExternalTexture is a texture_external binding. It is bound as a 2D float
	// texture view supplied fresh every frame.
	ResourceExternalTexture
)

var resourceKindNames = map[ResourceKind]string{
	ResourceUnknown:           "unknown",
	ResourceUniform:           "uniform",
	ResourceStorage:           "storage",
	ResourceReadOnlyStorage:   "read-only-storage",
	ResourceSampler:           "sampler",
	ResourceComparisonSampler: "comparison-sampler",
	ResourceTexture:           "texture",
	ResourceStorageTexture:    "storage-texture",
	ResourceExternalTexture:   "external-texture",
}

func (k ResourceKind) String() string {
	if n, ok := resourceKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// IsBuffer reports whether the kind binds a buffer.
func (k ResourceKind) IsBuffer() bool {
	return k == ResourceUniform || k == ResourceStorage || k == ResourceReadOnlyStorage
}

// IsSampler reports whether the kind binds a sampler.
func (k ResourceKind) IsSampler() bool {
	return k == ResourceSampler || k == ResourceComparisonSampler
}

// IsTexture reports whether the kind binds a texture view.
func (k ResourceKind) IsTexture() bool {
	return k == ResourceTexture || k == ResourceStorageTexture || k == ResourceExternalTexture
}

// Field is one member of a host-shareable struct with its WGSL layout.
type Field struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
	Align  uint64
}

// StructLayout is the memory layout of a WGSL struct.
type StructLayout struct {
	Name   string
	Size   uint64
	Align  uint64
	Fields []Field
}

// Field looks up a member by name.
//
// Parameters:
//   - name: the member name
//
// Returns:
//   - Field: the member layout
//   - bool: true if the struct declares the member
func (s *StructLayout) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Binding is one reflected @group/@binding resource declaration.
type Binding struct {
	Name    string
	Group   uint32
	Binding uint32
	Kind    ResourceKind
	Type    string

	// Size is the reflected byte size of a buffer binding, or 0 when unknown.
	Size uint64

	// Struct is the layout of the bound struct type, nil for non-struct bindings.
	Struct *StructLayout

	// Entry is the layout entry the declaration maps to. Visibility is the declaring stage.
	Entry wgpu.BindGroupLayoutEntry
}

// VertexInput is one reflected vertex stage input.
type VertexInput struct {
	Name     string
	Location uint32
	Type     string
	Format   wgpu.VertexFormat
	Size     uint64
	Builtin  bool
}

// EntryPoint is one reflected shader entry point.
type EntryPoint struct {
	Name  string
	Stage Stage

	// Inputs are the vertex inputs of a vertex entry point, ordered by location with builtins last.
	Inputs []VertexInput

	// WorkgroupSize is the @workgroup_size of a compute entry point; omitted dimensions are 1.
	WorkgroupSize [3]uint32
}

// Reflection is the parsed metadata of one shader source.
type Reflection struct {
	EntryPoints []EntryPoint

	// Bindings are ordered by (group, binding).
	Bindings []Binding

	Structs map[string]*StructLayout
}

// EntryPoint selects an entry point for stage. An empty name selects the first declared
// entry point of the stage.
//
// Parameters:
//   - stage: the required pipeline stage
//   - name: the explicitly requested entry point, or ""
//
// Returns:
//   - EntryPoint: the selected entry point
//   - error: ErrEntryPointNotFound if no matching entry point exists
func (r *Reflection) EntryPoint(stage Stage, name string) (EntryPoint, error) {
	for _, ep := range r.EntryPoints {
		if ep.Stage != stage {
			continue
		}
		if name == "" || ep.Name == name {
			return ep, nil
		}
	}
	if name == "" {
		return EntryPoint{}, fmt.Errorf("%w: no %s entry point declared", ErrEntryPointNotFound, stage)
	}
	return EntryPoint{}, fmt.Errorf("%w: %s entry point %q", ErrEntryPointNotFound, stage, name)
}

// Binding looks up a binding by its variable name.
func (r *Reflection) Binding(name string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}
