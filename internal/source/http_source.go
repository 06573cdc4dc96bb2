package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abgdnv/catalog/internal/catalog"
	cerrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/pkg/config"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes bounds the size of a product feed.
const maxBodyBytes = 32 << 20

// HTTPSource downloads a JSON array of products. Calls go through a circuit
// breaker so a failing upstream is not hammered on every reload.
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]catalog.Product]
}

// NewHTTPSource creates a source for the given URL.
func NewHTTPSource(url string, timeout time.Duration, cfg config.CircuitBreakerConfig) *HTTPSource {
	st := gobreaker.Settings{
		Name:        "catalog-source-cb",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the upstream
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]catalog.Product](st),
	}
}

// Fetch downloads and decodes the product feed.
func (s *HTTPSource) Fetch(ctx context.Context) ([]catalog.Product, error) {
	products, err := s.breaker.Execute(func() ([]catalog.Product, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products from %s: %w", s.url, err)
	}
	return products, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]catalog.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", cerrors.ErrUnexpectedHTTPStatus, resp.StatusCode)
	}
	var products []catalog.Product
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, nil
}
