// Package catalog holds the product collection model and the pure functions
// deriving filter facets and filtered views from it.
package catalog

// Product represents a catalog item as delivered by a product source.
// Only Name, Category, Company, Colors, Price and Shipping take part in filtering.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Company     string   `json:"company"`
	Colors      []string `json:"colors"`
	Price       int64    `json:"price"` // Price in cents
	Shipping    bool     `json:"shipping"`
	Image       string   `json:"image,omitempty"`
	Description string   `json:"description,omitempty"`
	Stars       float64  `json:"stars,omitempty"`
	Reviews     int32    `json:"reviews,omitempty"`
	Stock       int32    `json:"stock,omitempty"`
}

// HasColor reports whether the product is offered in the given color.
func (p *Product) HasColor(color string) bool {
	for _, c := range p.Colors {
		if c == color {
			return true
		}
	}
	return false
}

// MaxPrice returns the highest price in the collection, 0 for an empty one.
func MaxPrice(products []Product) int64 {
	var maxPrice int64
	for i := range products {
		if products[i].Price > maxPrice {
			maxPrice = products[i].Price
		}
	}
	return maxPrice
}
