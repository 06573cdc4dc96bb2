package state

import (
	"sync"
)

// Store owns one State and serializes every transition through Dispatch.
// Subscribers receive states in order; a subscriber that falls behind only
// ever sees the latest state, never a stale one.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[uint64]chan State
	nextID uint64
	closed bool
}

// NewStore creates a store holding the initial state.
func NewStore(initial State) *Store {
	return &Store{
		state: initial,
		subs:  make(map[uint64]chan State),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces the action into the current state and notifies subscribers.
// A rejected action leaves the state and the revision untouched.
func (s *Store) Dispatch(a Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Reduce(s.state, a)
	if err != nil {
		return s.state, err
	}
	next.Revision = s.state.Revision + 1
	s.state = next
	s.publish(next)
	return next, nil
}

// Subscribe returns a channel that first yields the current state and then
// every later one. The returned cancel func closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.state

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close ends every subscription. Dispatch keeps working afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// publish must be called with mu held. Each channel has room for one state:
// an unread state is replaced, so sends never block.
func (s *Store) publish(st State) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
