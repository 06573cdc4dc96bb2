package catalog

import "strings"

// Matches reports whether a product satisfies every predicate of the criteria.
// The criteria are expected to be normalized.
func Matches(p *Product, c Criteria) bool {
	if c.SearchName != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(c.SearchName)) {
		return false
	}
	if c.Category != All && c.Category != p.Category {
		return false
	}
	if c.Company != All && c.Company != p.Company {
		return false
	}
	if c.Color != All && !p.HasColor(c.Color) {
		return false
	}
	if c.Shipping && !p.Shipping {
		return false
	}
	return p.Price <= c.Price
}

// Filter returns the products satisfying the criteria in collection order.
// The result is never nil, an empty slice means nothing matched.
func Filter(products []Product, c Criteria) []Product {
	c = c.Normalize()
	result := make([]Product, 0, len(products))
	for i := range products {
		if Matches(&products[i], c) {
			result = append(result, products[i])
		}
	}
	return result
}
