package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	// given
	m, err := NewMetrics("catalog-test")
	require.NoError(t, err)
	defer func() { _ = m.Provider.Shutdown(context.Background()) }()

	counter, err := m.Provider.Meter("test").Int64Counter("catalog_test_requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	// when
	rr := httptest.NewRecorder()
	m.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "catalog_test_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServiceResource(t *testing.T) {
	res := serviceResource(context.Background(), "catalog-test")

	name, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "catalog-test", name.AsString())
}
