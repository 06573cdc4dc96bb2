package catalog

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo caches filter results per criteria for a single snapshot.
// Concurrent misses for the same criteria are collapsed into one computation.
type Memo struct {
	mu      sync.RWMutex
	size    int
	entries map[Criteria][]Product
	order   []Criteria
	sf      singleflight.Group

	hits   uint64
	misses uint64
}

// NewMemo creates a memo holding at most size results. A size <= 0 disables caching.
func NewMemo(size int) *Memo {
	return &Memo{
		size:    size,
		entries: make(map[Criteria][]Product),
	}
}

// Get returns the cached result for c or computes it with fn.
func (m *Memo) Get(c Criteria, fn func() []Product) []Product {
	if m == nil || m.size <= 0 {
		return fn()
	}

	m.mu.RLock()
	cached, ok := m.entries[c]
	m.mu.RUnlock()
	if ok {
		m.mu.Lock()
		m.hits++
		m.mu.Unlock()
		return cached
	}

	v, _, _ := m.sf.Do(memoKey(c), func() (any, error) {
		result := fn()
		m.store(c, result)
		return result, nil
	})
	return v.([]Product)
}

// memoKey quotes every text field so distinct criteria never share a
// singleflight key, whatever the search text contains.
func memoKey(c Criteria) string {
	return fmt.Sprintf("%q|%q|%q|%q|%t|%d", c.SearchName, c.Category, c.Company, c.Color, c.Shipping, c.Price)
}

// Stats returns the hit and miss counters.
func (m *Memo) Stats() (hits, misses uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}

func (m *Memo) store(c Criteria, result []Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
	if _, ok := m.entries[c]; ok {
		return
	}
	// oldest entry goes first
	if len(m.order) >= m.size {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[c] = result
	m.order = append(m.order, c)
}
