// Package debounce delays commits of rapidly changing values until the input
// settles. Every key owns one pending slot: a new value replaces the pending
// one and restarts its timer, so only the last value is ever committed.
package debounce

import (
	"sync"
	"time"
)

// CommitFunc receives the value that survived the quiescence window.
type CommitFunc[K comparable, V any] func(key K, value V)

type slot[V any] struct {
	value V
	timer *time.Timer
	gen   uint64
}

// Debouncer holds last-write-wins pending slots keyed by K.
//
// Commits are serialized with Cancel and CancelAll: once either returns, a
// value it dropped is never committed, even when its timer had already fired.
type Debouncer[K comparable, V any] struct {
	// commitMu is held across commit calls and cancellations, taken before mu.
	commitMu sync.Mutex
	mu       sync.Mutex
	window   time.Duration
	commit   CommitFunc[K, V]
	slots    map[K]*slot[V]
	// inflight maps keys whose timer fired to the generation about to commit.
	inflight map[K]uint64
	gen      uint64
	stopped  bool
	running  sync.WaitGroup
}

// New creates a Debouncer committing through fn once a key has been quiet for window.
// A window <= 0 commits synchronously on Push.
func New[K comparable, V any](window time.Duration, fn func(key K, value V)) *Debouncer[K, V] {
	return &Debouncer[K, V]{
		window:   window,
		commit:   fn,
		slots:    make(map[K]*slot[V]),
		inflight: make(map[K]uint64),
	}
}

// Push stores value as the pending value of key and restarts the key's timer.
// It returns false once the debouncer has been stopped.
func (d *Debouncer[K, V]) Push(key K, value V) bool {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	if d.window <= 0 {
		d.running.Add(1)
		d.mu.Unlock()
		defer d.running.Done()
		d.commitMu.Lock()
		defer d.commitMu.Unlock()
		d.commit(key, value)
		return true
	}

	d.gen++
	gen := d.gen
	s, ok := d.slots[key]
	if !ok {
		s = &slot[V]{}
		d.slots[key] = s
	} else {
		s.timer.Stop()
	}
	s.value = value
	s.gen = gen
	s.timer = time.AfterFunc(d.window, func() { d.fire(key, gen) })
	d.mu.Unlock()
	return true
}

// Pending returns the value waiting for commit under key.
func (d *Debouncer[K, V]) Pending(key K) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.slots[key]; ok {
		return s.value, true
	}
	var zero V
	return zero, false
}

// HasPending reports whether any key waits for commit.
func (d *Debouncer[K, V]) HasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots) > 0
}

// Cancel drops the pending value of key without committing it. A commit of
// key already running finishes before Cancel returns.
func (d *Debouncer[K, V]) Cancel(key K) {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.slots[key]; ok {
		s.timer.Stop()
		delete(d.slots, key)
	}
	delete(d.inflight, key)
}

// CancelAll drops every pending value without committing. Commits already
// running finish before CancelAll returns.
// Must not be called from a CommitFunc.
func (d *Debouncer[K, V]) CancelAll() {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked()
}

// Flush commits every pending value now, in the calling goroutine.
func (d *Debouncer[K, V]) Flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	pending := make(map[K]V, len(d.slots))
	for k, s := range d.slots {
		s.timer.Stop()
		pending[k] = s.value
	}
	clear(d.slots)
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	d.commitMu.Lock()
	defer d.commitMu.Unlock()
	for k, v := range pending {
		d.commit(k, v)
	}
}

// Stop drops every pending value and waits for commits already running.
// Must not be called from a CommitFunc.
func (d *Debouncer[K, V]) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.dropLocked()
	d.mu.Unlock()
	d.running.Wait()
}

func (d *Debouncer[K, V]) dropLocked() {
	for _, s := range d.slots {
		s.timer.Stop()
	}
	clear(d.slots)
	clear(d.inflight)
}

func (d *Debouncer[K, V]) fire(key K, gen uint64) {
	d.mu.Lock()
	s, ok := d.slots[key]
	// superseded, cancelled or stopped
	if !ok || s.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.slots, key)
	d.inflight[key] = gen
	value := s.value
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	d.commitMu.Lock()
	defer d.commitMu.Unlock()
	if !d.takeInflight(key, gen) {
		return
	}
	d.commit(key, value)
}

// takeInflight reports whether gen is still the live commit of key, that is
// it was neither cancelled nor superseded by a newer fire while waiting.
func (d *Debouncer[K, V]) takeInflight(key K, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.inflight[key]; !ok || cur != gen || d.stopped {
		return false
	}
	delete(d.inflight, key)
	return true
}
