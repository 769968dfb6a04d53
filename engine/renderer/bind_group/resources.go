package bind_group

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-gpu/common"
)

// Resources maps binding variable names to resources. It is a cache key by reference: every
// resolution built from it subscribes to Set and Delete so replacing a bound resource rebuilds the
// affected bind groups on next use.
type Resources struct {
	label   string
	entries map[string]Resource
	events  common.Subject[string]
}

// NewResources creates a resource map with all specified options applied.
//
// Parameters:
//   - options: functional options such as WithResource
//
// Returns:
//   - *Resources: the resource map
func NewResources(options ...ResourcesBuilderOption) *Resources {
	r := &Resources{entries: make(map[string]Resource)}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Resources) Label() string {
	return r.label
}

// Get looks up the resource bound to name.
func (r *Resources) Get(name string) (Resource, bool) {
	res, ok := r.entries[name]
	return res, ok
}

// Set binds res to name. Setting the resource already bound is a no-op; any other change
// notifies subscribers with the name.
//
// Parameters:
//   - name: the binding variable name
//   - res: the resource to bind
func (r *Resources) Set(name string, res Resource) {
	if prev, ok := r.entries[name]; ok && prev == res {
		return
	}
	r.entries[name] = res
	r.events.Notify(name)
}

// Delete removes the resource bound to name.
func (r *Resources) Delete(name string) {
	if _, ok := r.entries[name]; !ok {
		return
	}
	delete(r.entries, name)
	r.events.Notify(name)
}

// Names returns the bound names in sorted order.
func (r *Resources) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers fn to receive the name of every changed entry.
func (r *Resources) Subscribe(fn func(name string)) common.Unsubscribe {
	return r.events.Subscribe(fn)
}
