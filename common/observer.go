package common

// Unsubscribe removes a previously registered observer. Calling it more than once is a no-op.
type Unsubscribe func()

type subscription[E any] struct {
	id int
	fn func(E)
}

// Subject is an explicit observer registry. Observers are invoked synchronously in
// registration order. The zero value is ready to use.
type Subject[E any] struct {
	nextID int
	subs   []subscription[E]
}

// Subscribe registers fn and returns the handle that removes it.
//
// Parameters:
//   - fn: the observer to call on every Notify
//
// Returns:
//   - Unsubscribe: a function removing fn from the subject
func (s *Subject[E]) Subscribe(fn func(E)) Unsubscribe {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[E]{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers e to every observer registered at the time of the call.
// Observers may unsubscribe themselves while being notified.
//
// Parameters:
//   - e: the event to deliver
func (s *Subject[E]) Notify(e E) {
	if len(s.subs) == 0 {
		return
	}
	snapshot := make([]subscription[E], len(s.subs))
	copy(snapshot, s.subs)
	for _, sub := range snapshot {
		sub.fn(e)
	}
}

// Len returns the number of registered observers.
func (s *Subject[E]) Len() int {
	return len(s.subs)
}
