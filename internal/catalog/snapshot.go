package catalog

import (
	"slices"
	"sync/atomic"
	"time"
)

var snapshotSeq atomic.Uint64

// Snapshot is an immutable, versioned view of a loaded product collection.
// Facets and the maximum price are computed once, so they change only when a
// new snapshot replaces this one.
type Snapshot struct {
	version  uint64
	products []Product
	facets   Facets
	maxPrice int64
	loadedAt time.Time
	memo     *Memo
}

// NewSnapshot copies the products and derives facets from them.
// memoSize bounds the number of cached filter results, 0 disables caching.
func NewSnapshot(products []Product, memoSize int) *Snapshot {
	owned := make([]Product, len(products))
	copy(owned, products)
	for i := range owned {
		owned[i].Colors = slices.Clone(owned[i].Colors)
	}
	return &Snapshot{
		version:  snapshotSeq.Add(1),
		products: owned,
		facets:   ExtractFacets(owned),
		maxPrice: MaxPrice(owned),
		loadedAt: time.Now(),
		memo:     NewMemo(memoSize),
	}
}

// EmptySnapshot is used when the collection is unavailable.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil, 0)
}

func (s *Snapshot) Version() uint64     { return s.version }
func (s *Snapshot) Products() []Product { return s.products }
func (s *Snapshot) Facets() Facets      { return s.facets }
func (s *Snapshot) MaxPrice() int64     { return s.maxPrice }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *Snapshot) Len() int            { return len(s.products) }

// Filter returns the products matching the criteria, served from the memo
// when the same normalized criteria were asked before.
// The returned slice is shared and must not be modified.
func (s *Snapshot) Filter(c Criteria) []Product {
	c = c.Normalize()
	return s.memo.Get(c, func() []Product {
		return Filter(s.products, c)
	})
}

// MemoStats returns the filter cache hit and miss counters of this snapshot.
func (s *Snapshot) MemoStats() (hits, misses uint64) {
	return s.memo.Stats()
}
