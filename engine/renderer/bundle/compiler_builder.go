package bundle

import "github.com/Carmen-Shannon/oxy-gpu/common"

// CompilerBuilderOption is a functional option for configuring a Compiler.
type CompilerBuilderOption func(*Compiler)

// WithReporter sets the diagnostic sink.
func WithReporter(r common.Reporter) CompilerBuilderOption {
	return func(c *Compiler) {
		if r != nil {
			c.reporter = r
		}
	}
}
