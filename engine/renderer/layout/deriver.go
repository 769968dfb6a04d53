package layout

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/cache"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
)

// ErrBindingConflict is returned in strict mode when two declarations claim one (group, binding) slot.
var ErrBindingConflict = errors.New("layout: conflicting binding declarations")

type slot struct {
	group, binding uint32
}

// Deriver derives and caches pipeline layouts and their native objects for one device.
type Deriver struct {
	device      gpu.Device
	reflections *shader.ReflectionCache
	reporter    common.Reporter
	strict      bool

	layouts     *cache.Cache[string, *PipelineLayout]
	groupLayout *cache.Cache[string, gpu.BindGroupLayout]
	natives     *cache.Cache[*PipelineLayout, gpu.PipelineLayout]
}

// NewDeriver creates a Deriver with all specified options applied.
//
// Parameters:
//   - device: the device native layouts are created on
//   - reflections: the reflection cache used to parse stage sources
//   - options: functional options such as WithReporter and WithStrictBindings
//
// Returns:
//   - *Deriver: the created deriver
func NewDeriver(device gpu.Device, reflections *shader.ReflectionCache, options ...DeriverBuilderOption) *Deriver {
	d := &Deriver{
		device:      device,
		reflections: reflections,
		reporter:    common.LogReporter{},
		layouts:     cache.New[string, *PipelineLayout](),
		groupLayout: cache.New[string, gpu.BindGroupLayout](),
		natives:     cache.New[*PipelineLayout, gpu.PipelineLayout](),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Derive merges the reflected bindings of every present stage into one PipelineLayout. Bindings
// merge by variable name in vertex, fragment, compute order: a later stage overrides the declaration
// and ORs in its visibility. A declaration claiming a slot already held by a different name, or
// redeclaring a name with a different kind or slot, is a conflict. Conflicts are reported and the
// last declaration wins, unless the deriver is strict.
//
// The result is cached by the concatenated stage sources, so identical shader combinations
// always share one layout.
//
// Parameters:
//   - stages: the stage sources of the pipeline
//
// Returns:
//   - *PipelineLayout: the shared merged layout
//   - error: ErrBindingConflict in strict mode
func (d *Deriver) Derive(stages Stages) (*PipelineLayout, error) {
	return d.layouts.GetOrCreate(stages.Key(), func() (*PipelineLayout, cache.Cleanup, error) {
		merged, conflicts := d.merge(stages)
		if len(conflicts) > 0 && d.strict {
			return nil, nil, errors.Join(conflicts...)
		}
		l := newPipelineLayout(stages.Key(), merged)
		common.Logger().Debug("[layout] derived pipeline layout", "groups", len(l.groups), "bindings", len(merged))
		return l, func() { d.natives.Evict(l) }, nil
	})
}

func (d *Deriver) merge(stages Stages) (map[string]shader.Binding, []error) {
	merged := make(map[string]shader.Binding)
	owners := make(map[slot]string)
	var conflicts []error

	for _, st := range stages.present() {
		refl := d.reflections.Reflect(st.source)
		for _, b := range refl.Bindings {
			b.Entry.Visibility = st.stage.Visibility()
			s := slot{b.Group, b.Binding}

			if prev, ok := merged[b.Name]; ok {
				if prev.Kind == b.Kind && prev.Group == b.Group && prev.Binding == b.Binding {
					b.Entry.Visibility |= prev.Entry.Visibility
				} else {
					conflicts = append(conflicts, d.conflict(st, prev, b))
				}
				delete(owners, slot{prev.Group, prev.Binding})
			}
			if owner, ok := owners[s]; ok && owner != b.Name {
				conflicts = append(conflicts, d.conflict(st, merged[owner], b))
				delete(merged, owner)
			}
			merged[b.Name] = b
			owners[s] = b.Name
		}
	}
	return merged, conflicts
}

func (d *Deriver) conflict(st stageSource, prev, next shader.Binding) error {
	err := fmt.Errorf("%w: %s %q at (group %d, binding %d) and %s %q at (group %d, binding %d) in %s stage",
		ErrBindingConflict,
		prev.Kind, prev.Name, prev.Group, prev.Binding,
		next.Kind, next.Name, next.Group, next.Binding,
		st.stage)
	d.reporter.Report(common.Diagnostic{
		Kind:    common.DiagnosticConfiguration,
		Subject: st.source.Label(),
		Message: err.Error(),
		Err:     err,
	})
	return err
}

// BindGroupLayout returns the native bind group layout of one group index. Native group layouts
// are shared across pipeline layouts by content, so unrelated pipelines declaring the same
// bindings use one native object.
//
// Parameters:
//   - l: the pipeline layout
//   - index: the group index, below l.GroupCount()
//
// Returns:
//   - gpu.BindGroupLayout: the native bind group layout
//   - error: an error if native creation failed
func (d *Deriver) BindGroupLayout(l *PipelineLayout, index uint32) (gpu.BindGroupLayout, error) {
	g, _ := l.Group(index)
	desc := g.Descriptor()
	key := fmt.Sprintf("%+v", desc.Entries)
	return d.groupLayout.GetOrCreate(key, func() (gpu.BindGroupLayout, cache.Cleanup, error) {
		desc.Label = fmt.Sprintf("group %d", index)
		bgl, err := d.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, nil, fmt.Errorf("layout: failed to create bind group layout %d: %w", index, err)
		}
		return bgl, bgl.Release, nil
	})
}

// Native returns the native pipeline layout of l, creating it and its bind group layouts on first use.
//
// Parameters:
//   - l: the pipeline layout
//
// Returns:
//   - gpu.PipelineLayout: the native pipeline layout
//   - error: an error if native creation failed
func (d *Deriver) Native(l *PipelineLayout) (gpu.PipelineLayout, error) {
	return d.natives.GetOrCreate(l, func() (gpu.PipelineLayout, cache.Cleanup, error) {
		bgls := make([]gpu.BindGroupLayout, l.GroupCount())
		for i := range bgls {
			bgl, err := d.BindGroupLayout(l, uint32(i))
			if err != nil {
				return nil, nil, err
			}
			bgls[i] = bgl
		}
		pl, err := d.device.CreatePipelineLayout(&gpu.PipelineLayoutDescriptor{BindGroupLayouts: bgls})
		if err != nil {
			return nil, nil, fmt.Errorf("layout: failed to create pipeline layout: %w", err)
		}
		return pl, pl.Release, nil
	})
}

// Len returns the number of cached pipeline layouts.
func (d *Deriver) Len() int {
	return d.layouts.Len()
}

// Purge drops every cached layout and releases every native object.
func (d *Deriver) Purge() {
	d.layouts.Purge()
	d.natives.Purge()
	d.groupLayout.Purge()
}
