package catalog

// Facets lists the distinct category, company and color values of a collection
// in first-occurrence order.
type Facets struct {
	Categories []string `json:"categories"`
	Companies  []string `json:"companies"`
	Colors     []string `json:"colors"`
}

// ExtractFacets derives the filter choice lists from the full product collection.
// Colors is the union of every product's color set.
func ExtractFacets(products []Product) Facets {
	categories := newOrderedSet()
	companies := newOrderedSet()
	colors := newOrderedSet()

	for i := range products {
		categories.add(products[i].Category)
		companies.add(products[i].Company)
		for _, c := range products[i].Colors {
			colors.add(c)
		}
	}

	return Facets{
		Categories: categories.values,
		Companies:  companies.values,
		Colors:     colors.values,
	}
}

type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{
		seen:   make(map[string]struct{}),
		values: []string{},
	}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}
