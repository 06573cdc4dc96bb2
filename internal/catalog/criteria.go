package catalog

// All is the facet value meaning "do not filter on this facet".
const All = "all"

// Criteria is the set of active filter selections.
type Criteria struct {
	SearchName string `json:"searchName"`
	Category   string `json:"category"`
	Company    string `json:"company"`
	Color      string `json:"color"`
	Shipping   bool   `json:"ship"`
	Price      int64  `json:"price"` // inclusive upper bound, cents
}

// DefaultCriteria returns criteria that let every product of a collection
// with the given maximum price through.
func DefaultCriteria(maxPrice int64) Criteria {
	if maxPrice < 0 {
		maxPrice = 0
	}
	return Criteria{
		Category: All,
		Company:  All,
		Color:    All,
		Price:    maxPrice,
	}
}

// Normalize clamps values that trusted controls should never send:
// a negative price becomes 0 and an empty facet becomes All.
// Search text is kept verbatim, surrounding spaces included.
func (c Criteria) Normalize() Criteria {
	if c.Category == "" {
		c.Category = All
	}
	if c.Company == "" {
		c.Company = All
	}
	if c.Color == "" {
		c.Color = All
	}
	if c.Price < 0 {
		c.Price = 0
	}
	return c
}
