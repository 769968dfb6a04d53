package resource

import (
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// CacheBuilderOption is a functional option for configuring a Cache.
type CacheBuilderOption func(*Cache)

// WithDefaultBufferUsage sets the usage mask of buffers created without explicit usage.
//
// Parameters:
//   - usage: the default usage flags
//
// Returns:
//   - CacheBuilderOption: the option to apply
func WithDefaultBufferUsage(usage wgpu.BufferUsage) CacheBuilderOption {
	return func(c *Cache) {
		if usage != 0 {
			c.defaultUsage = usage
		}
	}
}

// WithReporter sets the diagnostic sink lifetime errors are reported to.
func WithReporter(r common.Reporter) CacheBuilderOption {
	return func(c *Cache) {
		if r != nil {
			c.reporter = r
		}
	}
}
