package bind_group

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-gpu/common"
)

// Uniform is a structured value addressed by field name. Bound through UniformResource, every Set
// schedules a partial upload at the field's reflected offset in the backing buffer of each
// resolution using it.
//
// A struct binding addresses its members by name. A binding of a non-struct type has a single
// field named "".
type Uniform struct {
	label  string
	values map[string]any
	events common.Subject[string]
}

// NewUniform creates a Uniform with all specified options applied.
//
// Parameters:
//   - options: functional options such as WithField
//
// Returns:
//   - *Uniform: the structured value
func NewUniform(options ...UniformBuilderOption) *Uniform {
	u := &Uniform{values: make(map[string]any)}
	for _, opt := range options {
		opt(u)
	}
	return u
}

func (u *Uniform) Label() string {
	return u.label
}

// Set stores the value of a field and notifies subscribed resolutions.
//
// Parameters:
//   - field: the struct member name
//   - value: a value accepted by common.EncodeValue
func (u *Uniform) Set(field string, value any) {
	u.values[field] = value
	u.events.Notify(field)
}

// Value returns the stored value of a field.
func (u *Uniform) Value(field string) (any, bool) {
	v, ok := u.values[field]
	return v, ok
}

// Fields returns the names of every set field in sorted order.
func (u *Uniform) Fields() []string {
	names := make([]string, 0, len(u.values))
	for name := range u.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers fn to receive the name of every field set.
func (u *Uniform) Subscribe(fn func(field string)) common.Unsubscribe {
	return u.events.Subscribe(fn)
}
