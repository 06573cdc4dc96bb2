package state

import (
	"fmt"

	"github.com/abgdnv/catalog/internal/catalog"
	cerrors "github.com/abgdnv/catalog/internal/errors"
)

// FilterType names the criteria field a SetFilter action changes.
type FilterType string

const (
	FilterCategory FilterType = "category"
	FilterCompany  FilterType = "company"
	FilterColor    FilterType = "color"
	FilterShipping FilterType = "ship"
	FilterSearch   FilterType = "searchName"
	FilterPrice    FilterType = "price"
)

// ParseFilterType converts a raw value into a FilterType.
func ParseFilterType(s string) (FilterType, error) {
	switch t := FilterType(s); t {
	case FilterCategory, FilterCompany, FilterColor, FilterShipping, FilterSearch, FilterPrice:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", cerrors.ErrUnknownFilterType, s)
	}
}

// Debounced reports whether updates of this type come from high frequency
// inputs (typing, dragging) and should wait for the input to settle.
func (t FilterType) Debounced() bool {
	return t == FilterSearch || t == FilterPrice
}

// Action is a state transition request handled by Reduce.
type Action interface {
	isAction()
}

// SetFilter changes a single criteria field. The value is ignored for
// FilterShipping, which toggles.
type SetFilter struct {
	Type  FilterType
	Value any
}

// ClearFilter resets every criteria field to its default in one transition.
type ClearFilter struct{}

// SetDisplay switches between grid and list layout.
type SetDisplay struct {
	Display Display
}

// LoadStarted marks the catalog as being fetched.
type LoadStarted struct{}

// LoadSucceeded installs a freshly loaded catalog snapshot.
type LoadSucceeded struct {
	Snapshot *catalog.Snapshot
}

// LoadFailed records a failed fetch; the collection is treated as empty.
type LoadFailed struct {
	Err error
}

func (SetFilter) isAction()     {}
func (ClearFilter) isAction()   {}
func (SetDisplay) isAction()    {}
func (LoadStarted) isAction()   {}
func (LoadSucceeded) isAction() {}
func (LoadFailed) isAction()    {}
