package shader

// SourceBuilderOption is a functional option for configuring a Source.
type SourceBuilderOption func(*Source)

// WithEntryPoint requests a specific entry point function. Resolution fails with
// ErrEntryPointNotFound if the source does not declare it for the required stage.
//
// Parameters:
//   - name: the entry point function name
//
// Returns:
//   - SourceBuilderOption: the option to apply
func WithEntryPoint(name string) SourceBuilderOption {
	return func(s *Source) {
		s.entryPoint = name
	}
}

// WithLabel sets the debug label used for native shader modules and diagnostics.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - SourceBuilderOption: the option to apply
func WithLabel(label string) SourceBuilderOption {
	return func(s *Source) {
		s.label = label
	}
}
