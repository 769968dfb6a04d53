package command

import "github.com/Carmen-Shannon/oxy-gpu/common"

// EmitterBuilderOption is a functional option for configuring an Emitter.
type EmitterBuilderOption func(*Emitter)

// WithReporter sets the diagnostic sink for objects the emitter skips.
func WithReporter(r common.Reporter) EmitterBuilderOption {
	return func(e *Emitter) {
		if r != nil {
			e.reporter = r
		}
	}
}
