package observable

import "sync"

// Store holds a current value and pushes every update to subscribers.
// It is the primitive behind connection status, entity snapshots and
// notification state: consumers subscribe, receive the current value
// immediately, and are invoked synchronously on each subsequent Set.
type Store[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]func(T)
	nextID int
}

// New creates a store holding the given initial value.
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the current value and notifies all subscribers.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	subs := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Update applies fn to the current value and publishes the result.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	value := s.value
	subs := s.snapshotLocked()
	s.mu.Unlock()

	for _, sub := range subs {
		sub(value)
	}
}

// Subscribe registers fn and immediately invokes it with the current
// value. The initial call happens under the lock so it stays ordered
// with concurrent Set calls; fn must not call back into the store.
// The returned function removes the subscription; calling it more than
// once is harmless.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	fn(s.value)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotLocked copies the subscriber set so callbacks run outside the
// lock. Callers must hold s.mu.
func (s *Store[T]) snapshotLocked() []func(T) {
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}
