package bind_group

// ResourcesBuilderOption is a functional option for configuring a Resources map.
type ResourcesBuilderOption func(*Resources)

// WithResourcesLabel sets the debug label used for backing buffers and bind groups.
func WithResourcesLabel(label string) ResourcesBuilderOption {
	return func(r *Resources) {
		r.label = label
	}
}

// WithResource binds res to name.
//
// Parameters:
//   - name: the binding variable name as declared in the shader
//   - res: the resource to bind
//
// Returns:
//   - ResourcesBuilderOption: the option to apply
func WithResource(name string, res Resource) ResourcesBuilderOption {
	return func(r *Resources) {
		r.entries[name] = res
	}
}
