package state

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abgdnv/catalog/internal/catalog"
	cerrors "github.com/abgdnv/catalog/internal/errors"
)

// Reduce applies an action to a state and returns the next state.
// On error the returned state is the input state, unchanged.
func Reduce(s State, a Action) (State, error) {
	if s.snapshot == nil {
		s.snapshot = catalog.EmptySnapshot()
	}
	switch a := a.(type) {
	case SetFilter:
		criteria, err := applyFilter(s.FilterInput, a)
		if err != nil {
			return s, err
		}
		s.FilterInput = criteria
		s.FilterProducts = s.snapshot.Filter(criteria)
		return s, nil

	case ClearFilter:
		s.FilterInput = catalog.DefaultCriteria(s.MaxPrice)
		s.FilterProducts = s.snapshot.Filter(s.FilterInput)
		return s, nil

	case SetDisplay:
		if _, err := ParseDisplay(string(a.Display)); err != nil {
			return s, err
		}
		s.Display = a.Display
		return s, nil

	case LoadStarted:
		s.Loading = true
		return s, nil

	case LoadSucceeded:
		if a.Snapshot == nil {
			return s, fmt.Errorf("%w: nil snapshot", cerrors.ErrCatalogUnavailable)
		}
		return install(s, a.Snapshot, ""), nil

	case LoadFailed:
		msg := "failed to load products"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		return install(s, catalog.EmptySnapshot(), msg), nil

	default:
		return s, fmt.Errorf("unsupported action %T", a)
	}
}

// install replaces the collection and resets the criteria against its price range.
func install(s State, snap *catalog.Snapshot, errMsg string) State {
	s.snapshot = snap
	s.Loading = false
	s.Error = errMsg
	s.Products = snap.Products()
	s.Facets = snap.Facets()
	s.MaxPrice = snap.MaxPrice()
	s.Version = snap.Version()
	s.FilterInput = catalog.DefaultCriteria(s.MaxPrice)
	s.FilterProducts = snap.Filter(s.FilterInput)
	return s
}

func applyFilter(c catalog.Criteria, a SetFilter) (catalog.Criteria, error) {
	if a.Type == FilterShipping {
		c.Shipping = !c.Shipping
		return c, nil
	}
	if a.Type == FilterPrice {
		price, err := toPrice(a.Value)
		if err != nil {
			return c, err
		}
		c.Price = price
		return c, nil
	}

	text, ok := a.Value.(string)
	if !ok {
		return c, fmt.Errorf("%w: %s expects a string, got %T", cerrors.ErrInvalidFilterValue, a.Type, a.Value)
	}
	switch a.Type {
	case FilterSearch:
		c.SearchName = text
	case FilterCategory:
		c.Category = facetValue(text)
	case FilterCompany:
		c.Company = facetValue(text)
	case FilterColor:
		c.Color = facetValue(text)
	default:
		return c, fmt.Errorf("%w: %q", cerrors.ErrUnknownFilterType, a.Type)
	}
	return c, nil
}

func facetValue(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return catalog.All
	}
	return v
}

// toPrice accepts the numeric shapes a price can arrive in from JSON, query
// strings or Go callers. Negative prices are clamped to zero.
func toPrice(v any) (int64, error) {
	var price int64
	switch n := v.(type) {
	case int:
		price = int64(n)
	case int32:
		price = int64(n)
	case int64:
		price = n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: price %v", cerrors.ErrInvalidFilterValue, n)
		}
		price = int64(math.Floor(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: price %q", cerrors.ErrInvalidFilterValue, n)
		}
		price = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: price %q", cerrors.ErrInvalidFilterValue, n)
		}
		price = i
	default:
		return 0, fmt.Errorf("%w: price of type %T", cerrors.ErrInvalidFilterValue, v)
	}
	return max(price, 0), nil
}
