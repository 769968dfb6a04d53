package command

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
)

// ComputeObjectBuilderOption is a functional option for configuring a ComputeObject.
type ComputeObjectBuilderOption func(*ComputeObject)

// WithComputeResources sets the resource map the pipeline's bindings are resolved against.
func WithComputeResources(res *bind_group.Resources) ComputeObjectBuilderOption {
	return func(o *ComputeObject) {
		o.resources = res
	}
}

// WithWorkgroups sets the dispatch size in workgroups.
func WithWorkgroups(x, y, z uint32) ComputeObjectBuilderOption {
	return func(o *ComputeObject) {
		o.workgroups = [3]uint32{x, y, z}
	}
}

// WithInvocations sets the dispatch size in invocations. The workgroup counts are derived from the
// shader's @workgroup_size.
func WithInvocations(x, y, z uint32) ComputeObjectBuilderOption {
	return func(o *ComputeObject) {
		o.invocations = [3]uint32{x, y, z}
	}
}

// WithComputeIndirect dispatches with workgroup counts read from b at offset.
//
// Parameters:
//   - b: the buffer holding three uint32 workgroup counts
//   - offset: the byte offset of the arguments
//
// Returns:
//   - ComputeObjectBuilderOption: the option to apply
func WithComputeIndirect(b *resource.Buffer, offset uint64) ComputeObjectBuilderOption {
	return func(o *ComputeObject) {
		o.indirect = b
		o.indirectOffset = offset
	}
}
