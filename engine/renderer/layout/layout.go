// Package layout merges the reflected bindings of every stage composing a pipeline into one
// pipeline layout, one bind group layout per used group index, and creates the matching native
// objects on demand.
package layout

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Stages names the shader sources composing one pipeline. A render pipeline sets Vertex and
// optionally Fragment; a compute pipeline sets Compute.
type Stages struct {
	Vertex   *shader.Source
	Fragment *shader.Source
	Compute  *shader.Source
}

// Key is the concatenation of the stage sources, absent stages contributing "".
func (s Stages) Key() string {
	return s.Vertex.Key() + "\x00" + s.Fragment.Key() + "\x00" + s.Compute.Key()
}

type stageSource struct {
	stage  shader.Stage
	source *shader.Source
}

func (s Stages) present() []stageSource {
	var out []stageSource
	if s.Vertex != nil {
		out = append(out, stageSource{shader.StageVertex, s.Vertex})
	}
	if s.Fragment != nil {
		out = append(out, stageSource{shader.StageFragment, s.Fragment})
	}
	if s.Compute != nil {
		out = append(out, stageSource{shader.StageCompute, s.Compute})
	}
	return out
}

// Group is the merged set of bindings sharing one group index, ordered by binding.
type Group struct {
	Index    uint32
	Bindings []shader.Binding
}

// Descriptor returns the bind group layout descriptor of the group.
func (g Group) Descriptor() wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, len(g.Bindings))
	for i, b := range g.Bindings {
		entries[i] = b.Entry
	}
	return wgpu.BindGroupLayoutDescriptor{Entries: entries}
}

// PipelineLayout is the merged binding layout of one stage combination. It is shared by every
// pipeline built from the same sources and used as a cache key by reference.
type PipelineLayout struct {
	key    string
	groups []Group
	byName map[string]shader.Binding
}

func newPipelineLayout(key string, merged map[string]shader.Binding) *PipelineLayout {
	byGroup := make(map[uint32][]shader.Binding)
	for _, b := range merged {
		byGroup[b.Group] = append(byGroup[b.Group], b)
	}
	l := &PipelineLayout{key: key, byName: merged}
	for idx, bindings := range byGroup {
		sort.Slice(bindings, func(i, j int) bool { return bindings[i].Binding < bindings[j].Binding })
		l.groups = append(l.groups, Group{Index: idx, Bindings: bindings})
	}
	sort.Slice(l.groups, func(i, j int) bool { return l.groups[i].Index < l.groups[j].Index })
	return l
}

func (l *PipelineLayout) Key() string {
	return l.key
}

// Groups returns the used groups ordered by index.
func (l *PipelineLayout) Groups() []Group {
	return l.groups
}

// Group returns the group at index.
//
// Parameters:
//   - index: the group index
//
// Returns:
//   - Group: the merged group
//   - bool: false if no binding uses the index
func (l *PipelineLayout) Group(index uint32) (Group, bool) {
	for _, g := range l.groups {
		if g.Index == index {
			return g, true
		}
	}
	return Group{}, false
}

// GroupCount is one past the highest used group index, i.e. the number of bind group layouts the
// native pipeline layout needs.
func (l *PipelineLayout) GroupCount() uint32 {
	if len(l.groups) == 0 {
		return 0
	}
	return l.groups[len(l.groups)-1].Index + 1
}

// Binding looks up a merged binding by its variable name.
func (l *PipelineLayout) Binding(name string) (shader.Binding, bool) {
	b, ok := l.byName[name]
	return b, ok
}

// Descriptors returns one bind group layout descriptor per index below GroupCount. Unused indexes
// between used ones get empty descriptors.
//
// Returns:
//   - []wgpu.BindGroupLayoutDescriptor: descriptors ordered by group index
func (l *PipelineLayout) Descriptors() []wgpu.BindGroupLayoutDescriptor {
	out := make([]wgpu.BindGroupLayoutDescriptor, l.GroupCount())
	for _, g := range l.groups {
		out[g.Index] = g.Descriptor()
	}
	return out
}
