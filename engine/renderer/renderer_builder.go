package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// ContextBuilderOption is a functional option applied to a context during construction via NewContext.
type ContextBuilderOption func(*renderContext)

// WithLogger sets the logger shared by every package of this module. See common.SetLogger.
//
// Parameters:
//   - l: the logger to use, or nil to disable logging
//
// Returns:
//   - ContextBuilderOption: a function that applies the logger option to a context
func WithLogger(l *slog.Logger) ContextBuilderOption {
	return func(c *renderContext) {
		common.SetLogger(l)
	}
}

// WithReporter sets the diagnostic sink of every compiler owned by the context. When not
// specified, diagnostics are written to the shared logger.
//
// Parameters:
//   - r: the diagnostic sink
//
// Returns:
//   - ContextBuilderOption: a function that applies the reporter option to a context
func WithReporter(r common.Reporter) ContextBuilderOption {
	return func(c *renderContext) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithStrictBindings makes conflicting (group, binding) declarations across merged shader stages a
// hard configuration error instead of a reported diagnostic where the later stage wins.
//
// Parameters:
//   - strict: true to reject conflicting layouts
//
// Returns:
//   - ContextBuilderOption: a function that applies the strict bindings option to a context
func WithStrictBindings(strict bool) ContextBuilderOption {
	return func(c *renderContext) {
		c.strictBindings = strict
	}
}

// WithShaderValidation runs every shader source through the naga WGSL front end before a native
// module is created.
//
// Parameters:
//   - validate: true to validate shader sources
//
// Returns:
//   - ContextBuilderOption: a function that applies the validation option to a context
func WithShaderValidation(validate bool) ContextBuilderOption {
	return func(c *renderContext) {
		c.validateShaders = validate
	}
}

// WithReflectionCacheSize bounds the number of reflected shader sources kept in memory. When not
// specified, the reflection cache default applies.
//
// Parameters:
//   - size: the maximum number of cached reflections
//
// Returns:
//   - ContextBuilderOption: a function that applies the size option to a context
func WithReflectionCacheSize(size int) ContextBuilderOption {
	return func(c *renderContext) {
		c.reflectionSize = size
	}
}

// WithReadbackWorkers sets the number of workers that copy out readback and query results.
// When not specified, the default is 2.
//
// Parameters:
//   - n: the maximum number of workers
//
// Returns:
//   - ContextBuilderOption: a function that applies the workers option to a context
func WithReadbackWorkers(n int) ContextBuilderOption {
	return func(c *renderContext) {
		if n > 0 {
			c.readbackWorkers = n
		}
	}
}

// WithDefaultBufferUsage sets the usage flags of buffers created without explicit usage.
//
// Parameters:
//   - usage: the default buffer usage
//
// Returns:
//   - ContextBuilderOption: a function that applies the usage option to a context
func WithDefaultBufferUsage(usage wgpu.BufferUsage) ContextBuilderOption {
	return func(c *renderContext) {
		if usage != 0 {
			c.defaultUsage = usage
		}
	}
}

// WithFormatRetention sets how many frames the pipelines and bundles of a pass format are kept after
// the last pass using it, such as the old size after a resize. When not specified, the default is 60.
//
// Parameters:
//   - frames: the number of frames without use before eviction
//
// Returns:
//   - ContextBuilderOption: a function that applies the retention option to a context
func WithFormatRetention(frames int) ContextBuilderOption {
	return func(c *renderContext) {
		if frames > 0 {
			c.formatRetention = uint64(frames)
		}
	}
}

// WithDeviceLostCallback registers fn to be called once when the device is lost, after every
// cache was released.
//
// Parameters:
//   - fn: the callback receiving the loss reason
//
// Returns:
//   - ContextBuilderOption: a function that applies the callback option to a context
func WithDeviceLostCallback(fn func(reason string)) ContextBuilderOption {
	return func(c *renderContext) {
		c.onDeviceLost = fn
	}
}
