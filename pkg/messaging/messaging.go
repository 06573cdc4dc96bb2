// Package messaging defines the catalog events exchanged over the broker.
package messaging

import "context"

const (
	// ProductsChangedSubject carries notifications that the product collection
	// was modified upstream and the catalog should be reloaded.
	ProductsChangedSubject = "catalog.products.changed"
	// CatalogReloadedSubject announces that a new catalog snapshot is being served.
	CatalogReloadedSubject = "catalog.snapshot.reloaded"
)

// Event is a message with its own subject and JSON payload.
type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// Publisher sends events to the broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
