package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CatalogReloadedEvent(t *testing.T) {
	loadedAt := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	e := CatalogReloadedEvent{Version: 3, Products: 24, MaxPrice: 309999, LoadedAt: loadedAt}

	payload, err := e.Payload()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, float64(3), decoded["version"])
	assert.Equal(t, float64(309999), decoded["max_price"])
	assert.Equal(t, messaging.CatalogReloadedSubject, e.Subject())
	assert.NotEqual(t, e.MessageID(), CatalogReloadedEvent{Version: 3, LoadedAt: loadedAt.Add(time.Second)}.MessageID())
}
