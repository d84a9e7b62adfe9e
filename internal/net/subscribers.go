package net

import "sync"

// slot is an ordered, de-registerable subscriber list for one event type.
// Multiple components (the live view, a test harness) can listen to the
// same slot without clobbering each other.
type slot[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []slotEntry[T]
}

type slotEntry[T any] struct {
	id int
	fn func(T)
}

// add registers a subscriber and returns its deregistration func.
func (s *slot[T]) add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, slotEntry[T]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.subs {
			if e.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// emit calls every subscriber in registration order. Callbacks run outside
// the lock so a subscriber may deregister itself.
func (s *slot[T]) emit(v T) {
	s.mu.Lock()
	subs := append([]slotEntry[T](nil), s.subs...)
	s.mu.Unlock()
	for _, e := range subs {
		e.fn(v)
	}
}
