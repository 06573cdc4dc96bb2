// Package state holds the browsing state of one catalog view and the
// single-writer store that mutates it.
package state

import (
	"fmt"

	"github.com/abgdnv/catalog/internal/catalog"
	cerrors "github.com/abgdnv/catalog/internal/errors"
)

// Display is the layout used to render the filtered products.
type Display string

const (
	DisplayGrid Display = "grid"
	DisplayList Display = "list"
)

// ParseDisplay converts a raw value into a Display.
func ParseDisplay(s string) (Display, error) {
	switch Display(s) {
	case DisplayGrid, DisplayList:
		return Display(s), nil
	default:
		return "", fmt.Errorf("%w: %q", cerrors.ErrInvalidDisplay, s)
	}
}

// Status is what a view should render for a state.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusEmpty   Status = "empty"
	StatusReady   Status = "ready"
)

// State is the complete browsing state read by views.
type State struct {
	Loading        bool              `json:"loading"`
	Products       []catalog.Product `json:"-"`
	FilterProducts []catalog.Product `json:"filterProducts"`
	Display        Display           `json:"display"`
	Error          string            `json:"error,omitempty"`
	FilterInput    catalog.Criteria  `json:"filters"`
	MaxPrice       int64             `json:"maxPrice"`
	Facets         catalog.Facets    `json:"facets"`
	// Version is the version of the catalog snapshot the state was derived from.
	Version uint64 `json:"catalogVersion"`
	// Revision counts the transitions applied by the owning store.
	Revision uint64 `json:"revision"`

	snapshot *catalog.Snapshot
}

// New returns the state of a view before any catalog has been loaded.
func New() State {
	snap := catalog.EmptySnapshot()
	return State{
		Products:       snap.Products(),
		FilterProducts: []catalog.Product{},
		Display:        DisplayGrid,
		FilterInput:    catalog.DefaultCriteria(0),
		Facets:         snap.Facets(),
		snapshot:       snap,
	}
}

// Status reports loading, error, empty or ready. An error always wins over an
// empty result, so "no matches" is only reported for a healthy catalog.
func (s State) Status() Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.Error != "":
		return StatusError
	case len(s.FilterProducts) == 0:
		return StatusEmpty
	default:
		return StatusReady
	}
}

// DefaultFilters reports whether every criteria field is at its default.
func (s State) DefaultFilters() bool {
	return s.FilterInput.Normalize() == catalog.DefaultCriteria(s.MaxPrice)
}
