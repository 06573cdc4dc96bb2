// Package e2e provides end-to-end tests for the catalog service.
// The suite starts a PostgreSQL container, applies the embedded migrations,
// seeds products and runs the real HTTP handler in an httptest.Server.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/catalog/internal/app"
	"github.com/abgdnv/catalog/internal/catalog"
	"github.com/abgdnv/catalog/internal/config"
	"github.com/abgdnv/catalog/internal/migrations"
	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/internal/session"
	"github.com/abgdnv/catalog/internal/source"
	"github.com/abgdnv/catalog/pkg/bootstrap"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipE2ETests = "CATALOG_SKIP_E2E_TESTS"

const apiURL = "/api/v1"

type CatalogServiceE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	source      *source.PgSource
	deps        *app.Dependencies
	server      *httptest.Server
	httpClient  *http.Client
	logger      *slog.Logger
	ctx         context.Context
}

// testConfig has the sections the catalog handler depends on.
func testConfig() *config.Config {
	var cfg config.Config
	cfg.HTTPServer.MaxHeaderBytes = 1 << 20
	cfg.HTTPServer.Timeout.Read = 10 * time.Minute
	cfg.HTTPServer.Timeout.Idle = 60 * time.Minute
	cfg.HTTPServer.Timeout.ReadHeader = 5 * time.Minute
	cfg.Catalog.Source = source.KindPostgres
	cfg.Catalog.FetchTimeout = 10 * time.Second
	cfg.Filter.DebounceWindow = 50 * time.Millisecond
	cfg.Filter.SessionTTL = time.Hour
	cfg.Filter.MemoSize = 16
	return &cfg
}

func (s *CatalogServiceE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("catalog_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = bootstrap.NewDbPool(s.ctx, connStr, 30*time.Second, 4)
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL")
	require.NoError(s.T(), bootstrap.Migrate(migrations.FS, migrations.Dir, connStr), "Failed to apply migrations")

	cfg := testConfig()
	src, err := app.NewSource(cfg, s.dbPool)
	require.NoError(s.T(), err)
	s.source = src.(*source.PgSource)

	s.deps = app.SetupDependencies(cfg, src, nil, nil, s.logger)
	s.server = httptest.NewServer(app.SetupHttpHandler(s.deps))
	s.httpClient = s.server.Client()
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

func (s *CatalogServiceE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.deps != nil {
		s.deps.Sessions.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

// SetupTest seeds a fresh collection and loads it.
func (s *CatalogServiceE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY")
	require.NoError(s.T(), err, "Failed to truncate products table")
	_, err = s.source.Insert(s.ctx, seedProducts())
	require.NoError(s.T(), err)
	_, status := s.doRequest(http.MethodPost, apiURL+"/catalog/reload", nil)
	require.Equal(s.T(), http.StatusOK, status)
}

func TestCatalogServiceE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping e2e tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(CatalogServiceE2ESuite))
}

func seedProducts() []catalog.Product {
	return []catalog.Product{
		{Name: "accent chair", Category: "office", Company: "marcos", Colors: []string{"#ff0000", "#00ff00"}, Price: 25999, Shipping: true},
		{Name: "albany sectional", Category: "living room", Company: "liddy", Colors: []string{"#000"}, Price: 109999},
		{Name: "armchair", Category: "bedroom", Company: "marcos", Colors: []string{"#000", "#ffb900"}, Price: 12599, Shipping: true},
		{Name: "dining table", Category: "dining", Company: "caressa", Colors: []string{"#0000ff"}, Price: 309999},
	}
}

func (s *CatalogServiceE2ESuite) TestFacets() {
	body, status := s.doRequest(http.MethodGet, apiURL+"/facets", nil)
	s.Require().Equal(http.StatusOK, status)

	var dto service.CatalogDto
	s.Require().NoError(json.Unmarshal(body, &dto))
	s.Equal(4, dto.Products)
	s.Equal(int64(309999), dto.MaxPrice)
	s.Equal(int64(309999+session.PriceCeilingPadding), dto.PriceCeiling)
	s.Equal([]string{"office", "living room", "bedroom", "dining"}, dto.Facets.Categories)
	s.Equal([]string{"marcos", "liddy", "caressa"}, dto.Facets.Companies)
	s.Equal([]string{"#ff0000", "#00ff00", "#000", "#ffb900", "#0000ff"}, dto.Facets.Colors)
}

func (s *CatalogServiceE2ESuite) TestFilterProducts() {
	testCases := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "no filters", query: "", expected: []string{"accent chair", "albany sectional", "armchair", "dining table"}},
		{name: "company", query: "?company=marcos", expected: []string{"accent chair", "armchair"}},
		{name: "color and shipping", query: "?color=%23000&ship=true", expected: []string{"armchair"}},
		{name: "search is case insensitive", query: "?search=CHAIR", expected: []string{"accent chair", "armchair"}},
		{name: "price bound is inclusive", query: "?price=25999", expected: []string{"accent chair", "armchair"}},
		{name: "nothing matches", query: "?category=kitchen", expected: []string{}},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			body, status := s.doRequest(http.MethodGet, apiURL+"/products"+tc.query, nil)
			s.Require().Equal(http.StatusOK, status)

			var result service.FilterResultDto
			s.Require().NoError(json.Unmarshal(body, &result))
			names := make([]string, 0, len(result.Products))
			for _, p := range result.Products {
				names = append(names, p.Name)
			}
			s.Equal(tc.expected, names)
			s.Equal(len(tc.expected), result.Total)
		})
	}
}

func (s *CatalogServiceE2ESuite) TestSessionFlow() {
	// given
	body, status := s.doRequest(http.MethodPost, apiURL+"/sessions", nil)
	s.Require().Equal(http.StatusCreated, status)
	var view session.View
	s.Require().NoError(json.Unmarshal(body, &view))
	s.Len(view.FilterProducts, 4)
	sessionURL := apiURL + "/sessions/" + view.ID

	// when a discrete filter is applied
	_, status = s.doRequest(http.MethodPost, sessionURL+"/filters", service.FilterDto{Type: "company", Value: "marcos"})
	s.Require().Equal(http.StatusOK, status)

	// and a price is typed
	_, status = s.doRequest(http.MethodPost, sessionURL+"/filters", service.FilterDto{Type: "price", Value: 20000})
	s.Require().Equal(http.StatusAccepted, status)

	// then the price is committed after the quiet period
	s.Require().Eventually(func() bool {
		v := s.getSession(sessionURL)
		return !v.Pending && v.FilterInput.Price == 20000
	}, 2*time.Second, 20*time.Millisecond)
	v := s.getSession(sessionURL)
	s.Require().Len(v.FilterProducts, 1)
	s.Equal("armchair", v.FilterProducts[0].Name)

	// when filters are cleared
	body, status = s.doRequest(http.MethodDelete, sessionURL+"/filters", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(body, &v))
	s.Len(v.FilterProducts, 4)
	s.Equal(int64(309999), v.FilterInput.Price)

	// and the session is removed
	_, status = s.doRequest(http.MethodDelete, sessionURL, nil)
	s.Equal(http.StatusNoContent, status)
	_, status = s.doRequest(http.MethodGet, sessionURL, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *CatalogServiceE2ESuite) TestReloadPicksUpNewProducts() {
	// given
	before := s.catalog()
	_, err := s.source.Insert(s.ctx, []catalog.Product{
		{Name: "kitchen stool", Category: "kitchen", Company: "ikea", Colors: []string{"#fff"}, Price: 400000},
	})
	s.Require().NoError(err)

	// when
	_, status := s.doRequest(http.MethodPost, apiURL+"/catalog/reload", nil)

	// then
	s.Require().Equal(http.StatusOK, status)
	after := s.catalog()
	s.Greater(after.Version, before.Version)
	s.Equal(5, after.Products)
	s.Equal(int64(400000), after.MaxPrice)
	s.Contains(after.Facets.Companies, "ikea")
}

func (s *CatalogServiceE2ESuite) catalog() service.CatalogDto {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, apiURL+"/facets", nil)
	s.Require().Equal(http.StatusOK, status)
	var dto service.CatalogDto
	s.Require().NoError(json.Unmarshal(body, &dto))
	return dto
}

func (s *CatalogServiceE2ESuite) getSession(url string) session.View {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, url, nil)
	s.Require().Equal(http.StatusOK, status)
	var v session.View
	s.Require().NoError(json.Unmarshal(body, &v))
	return v
}

// doRequest sends a request to the test server and returns the body and status code.
func (s *CatalogServiceE2ESuite) doRequest(method, path string, payload any) ([]byte, int) {
	s.T().Helper()
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	require.NoError(s.T(), err, "Failed to create HTTP request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err, "HTTP request failed")
	defer func() {
		require.NoError(s.T(), resp.Body.Close(), "Failed to close response body")
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err, "Failed to read response body")
	return bodyBytes, resp.StatusCode
}
