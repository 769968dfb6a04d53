package command

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
)

// ComputeObject is one dispatch: a compute pipeline, its resources and the dispatch size.
type ComputeObject struct {
	label     string
	pipeline  *pipeline.ComputePipeline
	resources *bind_group.Resources

	workgroups  [3]uint32
	invocations [3]uint32

	indirect       *resource.Buffer
	indirectOffset uint64
}

// NewComputeObject creates a ComputeObject dispatching p with all specified options applied.
//
// Parameters:
//   - label: the debug label used in diagnostics
//   - p: the compute pipeline descriptor
//   - options: functional options such as WithComputeResources and WithWorkgroups
//
// Returns:
//   - *ComputeObject: the compute object
func NewComputeObject(label string, p *pipeline.ComputePipeline, options ...ComputeObjectBuilderOption) *ComputeObject {
	o := &ComputeObject{label: label, pipeline: p}
	for _, opt := range options {
		opt(o)
	}
	return o
}

func (o *ComputeObject) Label() string {
	return o.label
}

func (o *ComputeObject) Pipeline() *pipeline.ComputePipeline {
	return o.pipeline
}

func (o *ComputeObject) Resources() *bind_group.Resources {
	return o.resources
}

// SetResources replaces the bind group resource map.
func (o *ComputeObject) SetResources(res *bind_group.Resources) {
	o.resources = res
}

// SetWorkgroups replaces the dispatch size in workgroups.
func (o *ComputeObject) SetWorkgroups(x, y, z uint32) {
	o.workgroups = [3]uint32{x, y, z}
	o.invocations = [3]uint32{}
}

// SetInvocations replaces the dispatch size in invocations.
func (o *ComputeObject) SetInvocations(x, y, z uint32) {
	o.invocations = [3]uint32{x, y, z}
	o.workgroups = [3]uint32{}
}

// dispatchSize returns the workgroup counts. Invocation counts are divided by the reflected
// workgroup size, rounding up. Zero dimensions other than x count as 1.
func (o *ComputeObject) dispatchSize(workgroupSize [3]uint32) ([3]uint32, error) {
	if o.workgroups[0] != 0 {
		return [3]uint32{o.workgroups[0], common.Coalesce(o.workgroups[1], 1), common.Coalesce(o.workgroups[2], 1)}, nil
	}
	if o.invocations[0] != 0 {
		var out [3]uint32
		for i, n := range o.invocations {
			n = common.Coalesce(n, 1)
			size := common.Coalesce(workgroupSize[i], 1)
			out[i] = (n + size - 1) / size
		}
		return out, nil
	}
	return [3]uint32{}, fmt.Errorf("%w: %q has no workgroup or invocation count", ErrWorkSize, o.label)
}
