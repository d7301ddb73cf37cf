package client

import "sync"

// Store holds the current State and applies actions one at a time.
// Snapshots returned by State share backing arrays with the store and must
// be treated as read-only.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewStore() *Store {
	return &Store{state: InitialState(), listeners: make(map[int]func(State))}
}

// Dispatch applies a and notifies subscribers with the new state
func (s *Store) Dispatch(a Action) State {
	_, next := s.Transition(a)
	return next
}

// Transition applies a and returns the states on either side of it. Both
// are taken under the same lock, so a caller can tell whether its own
// action caused a change.
func (s *Store) Transition(a Action) (prev, next State) {
	s.mu.Lock()
	prev = s.state
	s.state = Reduce(s.state, a)
	next = s.state
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return prev, next
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every future state; the returned func removes it
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
