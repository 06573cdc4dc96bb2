package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/abgdnv/catalog/pkg/messaging"
	"go.opentelemetry.io/otel/propagation"
)

type CatalogReloadedEvent struct {
	Carrier    propagation.MapCarrier `json:"carrier,omitempty"`
	Version    uint64                 `json:"version"`
	Products   int                    `json:"products"`
	MaxPrice   int64                  `json:"max_price"`
	Categories int                    `json:"categories"`
	Companies  int                    `json:"companies"`
	Colors     int                    `json:"colors"`
	LoadedAt   time.Time              `json:"loaded_at"`
}

func (e CatalogReloadedEvent) Subject() string {
	return messaging.CatalogReloadedSubject
}

func (e CatalogReloadedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// MessageID makes repeated announcements of one snapshot idempotent.
func (e CatalogReloadedEvent) MessageID() string {
	return "catalog-reloaded-" + strconv.FormatUint(e.Version, 10) + "-" + strconv.FormatInt(e.LoadedAt.UnixNano(), 10)
}

// ProductsChangedEvent is sent by whoever edits the product collection.
// All fields are informational; any message on the subject triggers a reload.
type ProductsChangedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	ChangedAt time.Time              `json:"changed_at"`
}

func (e ProductsChangedEvent) Subject() string {
	return messaging.ProductsChangedSubject
}

func (e ProductsChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
