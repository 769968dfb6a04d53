package pipeline

// VertexAttributesBuilderOption is a functional option for configuring a VertexAttributes map.
type VertexAttributesBuilderOption func(*VertexAttributes)

// WithAttributesLabel sets the debug label of the attribute map.
func WithAttributesLabel(label string) VertexAttributesBuilderOption {
	return func(v *VertexAttributes) {
		v.label = label
	}
}

// WithAttribute sets the attribute source of a vertex input.
//
// Parameters:
//   - name: the vertex input name as declared in the shader
//   - attr: the attribute source
//
// Returns:
//   - VertexAttributesBuilderOption: the option to apply
func WithAttribute(name string, attr VertexAttribute) VertexAttributesBuilderOption {
	return func(v *VertexAttributes) {
		v.attrs[name] = attr
	}
}
