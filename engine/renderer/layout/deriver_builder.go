package layout

import "github.com/Carmen-Shannon/oxy-gpu/common"

// DeriverBuilderOption is a functional option for configuring a Deriver.
type DeriverBuilderOption func(*Deriver)

// WithReporter sets the diagnostic sink binding conflicts are reported to.
//
// Parameters:
//   - r: the reporter
//
// Returns:
//   - DeriverBuilderOption: the option to apply
func WithReporter(r common.Reporter) DeriverBuilderOption {
	return func(d *Deriver) {
		if r != nil {
			d.reporter = r
		}
	}
}

// WithStrictBindings turns binding conflicts into hard errors. By default a conflict is reported
// and the last merged declaration wins.
//
// Parameters:
//   - strict: true to fail derivation on conflicts
//
// Returns:
//   - DeriverBuilderOption: the option to apply
func WithStrictBindings(strict bool) DeriverBuilderOption {
	return func(d *Deriver) {
		d.strict = strict
	}
}
