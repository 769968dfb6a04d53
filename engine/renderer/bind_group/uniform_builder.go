package bind_group

// UniformBuilderOption is a functional option for configuring a Uniform.
type UniformBuilderOption func(*Uniform)

// WithUniformLabel sets the debug label of the uniform.
func WithUniformLabel(label string) UniformBuilderOption {
	return func(u *Uniform) {
		u.label = label
	}
}

// WithField sets the initial value of a field.
func WithField(field string, value any) UniformBuilderOption {
	return func(u *Uniform) {
		u.values[field] = value
	}
}
