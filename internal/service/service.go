// Package service provides the catalog browsing use cases shared by the REST and gRPC transports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/catalog/internal/catalog"
	"github.com/abgdnv/catalog/internal/session"
	"github.com/abgdnv/catalog/internal/source"
	"github.com/abgdnv/catalog/internal/state"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/singleflight"
)

const instrumentationName = "github.com/abgdnv/catalog/internal/service"

// CatalogService defines the catalog browsing operations.
type CatalogService interface {
	// Reload fetches the product collection and installs it in every session.
	// Concurrent calls share one fetch.
	Reload(ctx context.Context) (*CatalogDto, error)

	// Catalog describes the currently loaded collection.
	// Returns ErrCatalogUnavailable if nothing has been loaded.
	Catalog(ctx context.Context) (*CatalogDto, error)

	// Filter runs a one-off query against the loaded collection.
	Filter(ctx context.Context, query FilterQuery) (*FilterResultDto, error)

	// CreateSession starts a browsing session with default criteria.
	CreateSession(ctx context.Context) (*session.View, error)

	// View returns the current view of a session.
	// Returns ErrSessionNotFound for unknown or expired sessions.
	View(ctx context.Context, id uuid.UUID) (*session.View, error)

	// DeleteSession ends a session.
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// SetFilter changes one criteria field of a session. applied is false when
	// the value waits for input to settle before it is committed.
	SetFilter(ctx context.Context, id uuid.UUID, filter FilterDto) (view *session.View, applied bool, err error)

	// ClearFilter resets every criteria field of a session.
	ClearFilter(ctx context.Context, id uuid.UUID) (*session.View, error)

	// SetDisplay switches the layout of a session.
	SetDisplay(ctx context.Context, id uuid.UUID, display DisplayDto) (*session.View, error)

	// Subscribe streams the views of a session until cancel is called or the session ends.
	Subscribe(ctx context.Context, id uuid.UUID) (<-chan session.View, func(), error)
}

// CatalogDto describes a loaded product collection.
type CatalogDto struct {
	Version      uint64         `json:"version"`
	Products     int            `json:"products"`
	MaxPrice     int64          `json:"maxPrice"`
	PriceCeiling int64          `json:"priceCeiling"`
	Facets       catalog.Facets `json:"facets"`
	LoadedAt     time.Time      `json:"loadedAt"`
}

// FilterQuery is a stateless filter request. A nil Price means no price limit.
type FilterQuery struct {
	SearchName string
	Category   string
	Company    string
	Color      string
	Shipping   bool
	Price      *int64
}

// FilterResultDto is the answer to a FilterQuery.
type FilterResultDto struct {
	Version  uint64            `json:"catalogVersion"`
	Criteria catalog.Criteria  `json:"filters"`
	Total    int               `json:"total"`
	Products []catalog.Product `json:"products"`
}

// FilterDto sets one filter of a session. Value is ignored for ship, which toggles.
type FilterDto struct {
	Type  string `json:"type" validate:"required,oneof=category company color ship searchName price"`
	Value any    `json:"value"`
}

type DisplayDto struct {
	Display string `json:"display" validate:"required,oneof=grid list"`
}

// Options tune the service.
type Options struct {
	FetchTimeout   time.Duration
	ReloadInterval time.Duration
	MemoSize       int
}

// Service implements CatalogService on top of a product source and a session manager.
type Service struct {
	source    source.Source
	sessions  *session.Manager
	publisher messaging.Publisher
	opts      Options
	logger    *slog.Logger

	reloads   singleflight.Group
	readyOnce sync.Once
	ready     chan struct{}

	reloadCounter  metric.Int64Counter
	reloadDuration metric.Float64Histogram
	filterCounter  metric.Int64Counter
}

// NewService creates the service. A nil publisher disables event publishing.
func NewService(src source.Source, sessions *session.Manager, publisher messaging.Publisher, opts Options, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	s := &Service{
		source:    src,
		sessions:  sessions,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With("component", "catalog-service"),
		ready:     make(chan struct{}),
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	if s.reloadCounter, err = meter.Int64Counter("catalog_reloads",
		metric.WithDescription("Catalog reloads by result")); err != nil {
		panic(fmt.Sprintf("failed to create catalog_reloads counter: %v", err))
	}
	if s.reloadDuration, err = meter.Float64Histogram("catalog_reload_duration",
		metric.WithDescription("Time spent fetching and installing the catalog"),
		metric.WithUnit("s")); err != nil {
		panic(fmt.Sprintf("failed to create catalog_reload_duration histogram: %v", err))
	}
	if s.filterCounter, err = meter.Int64Counter("catalog_filter_requests",
		metric.WithDescription("Stateless filter queries")); err != nil {
		panic(fmt.Sprintf("failed to create catalog_filter_requests counter: %v", err))
	}
	if _, err = meter.Int64ObservableGauge("catalog_sessions",
		metric.WithDescription("Live browsing sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.sessions.Len()))
			return nil
		})); err != nil {
		panic(fmt.Sprintf("failed to create catalog_sessions gauge: %v", err))
	}
	if _, err = meter.Int64ObservableGauge("catalog_filter_memo",
		metric.WithDescription("Filter cache lookups of the current snapshot"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			snap, err := s.sessions.Snapshot()
			if err != nil {
				return nil
			}
			hits, misses := snap.MemoStats()
			o.Observe(int64(hits), metric.WithAttributes(attribute.String("result", "hit")))
			o.Observe(int64(misses), metric.WithAttributes(attribute.String("result", "miss")))
			return nil
		})); err != nil {
		panic(fmt.Sprintf("failed to create catalog_filter_memo gauge: %v", err))
	}
}

// Ready is closed by the first successful load. A failed load leaves it open
// until a later reload succeeds.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Run loads the catalog, then reloads it every ReloadInterval until ctx is done.
// Load errors are reported to sessions and logged; they do not stop Run.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.Reload(ctx); err != nil {
		s.logger.ErrorContext(ctx, "initial catalog load failed", "error", err)
	}
	if s.opts.ReloadInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.opts.ReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Reload(ctx); err != nil {
				s.logger.WarnContext(ctx, "periodic catalog reload failed", "error", err)
			}
		}
	}
}

// Reload fetches the collection. While another reload is running the caller
// waits for it and gets its result.
func (s *Service) Reload(ctx context.Context) (*CatalogDto, error) {
	res, err, shared := s.reloads.Do("reload", func() (any, error) {
		return s.reload(ctx)
	})
	if shared {
		s.logger.DebugContext(ctx, "joined running catalog reload")
	}
	if err != nil {
		return nil, err
	}
	return res.(*CatalogDto), nil
}

func (s *Service) reload(ctx context.Context) (*CatalogDto, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "CatalogService.Reload")
	defer span.End()

	start := time.Now()
	s.sessions.LoadStarted()

	fetchCtx := ctx
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}
	products, err := s.source.Fetch(fetchCtx)
	s.reloadDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.sessions.LoadFailed(err)
		s.reloadCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	snap := catalog.NewSnapshot(products, s.opts.MemoSize)
	s.sessions.Loaded(snap)
	s.readyOnce.Do(func() { close(s.ready) })
	s.reloadCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	span.SetAttributes(
		attribute.Int64("catalog.version", int64(snap.Version())),
		attribute.Int("catalog.products", snap.Len()),
	)
	s.logger.InfoContext(ctx, "catalog loaded",
		slog.Uint64("version", snap.Version()),
		slog.Int("products", snap.Len()),
		slog.Duration("took", time.Since(start)))

	s.publishReloaded(ctx, snap)
	return toCatalogDto(snap), nil
}

func (s *Service) publishReloaded(ctx context.Context, snap *catalog.Snapshot) {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	facets := snap.Facets()
	event := events.CatalogReloadedEvent{
		Carrier:    carrier,
		Version:    snap.Version(),
		Products:   snap.Len(),
		MaxPrice:   snap.MaxPrice(),
		Categories: len(facets.Categories),
		Companies:  len(facets.Companies),
		Colors:     len(facets.Colors),
		LoadedAt:   snap.LoadedAt(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish CatalogReloadedEvent", "error", err)
	}
}

// Catalog describes the loaded collection.
func (s *Service) Catalog(_ context.Context) (*CatalogDto, error) {
	snap, err := s.sessions.Snapshot()
	if err != nil {
		return nil, err
	}
	return toCatalogDto(snap), nil
}

// Filter applies the query to the loaded collection.
func (s *Service) Filter(ctx context.Context, query FilterQuery) (*FilterResultDto, error) {
	snap, err := s.sessions.Snapshot()
	if err != nil {
		return nil, err
	}
	c := catalog.Criteria{
		SearchName: query.SearchName,
		Category:   query.Category,
		Company:    query.Company,
		Color:      query.Color,
		Shipping:   query.Shipping,
		Price:      snap.MaxPrice(),
	}
	if query.Price != nil {
		c.Price = *query.Price
	}
	c = c.Normalize()
	products := snap.Filter(c)
	s.filterCounter.Add(ctx, 1)
	return &FilterResultDto{
		Version:  snap.Version(),
		Criteria: c,
		Total:    len(products),
		Products: products,
	}, nil
}

func (s *Service) CreateSession(ctx context.Context) (*session.View, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.DebugContext(ctx, "session created", "session_id", sess.ID().String())
	v := sess.View()
	return &v, nil
}

func (s *Service) View(_ context.Context, id uuid.UUID) (*session.View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	v := sess.View()
	return &v, nil
}

func (s *Service) DeleteSession(_ context.Context, id uuid.UUID) error {
	return s.sessions.Delete(id)
}

// SetFilter routes the change through the session, which debounces search text and price.
func (s *Service) SetFilter(ctx context.Context, id uuid.UUID, filter FilterDto) (*session.View, bool, error) {
	ft, err := state.ParseFilterType(filter.Type)
	if err != nil {
		return nil, false, err
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, false, err
	}
	_, applied, err := sess.SetFilter(ft, filter.Value)
	if err != nil {
		s.logger.DebugContext(ctx, "filter rejected", "session_id", id.String(), "type", ft, "error", err)
		return nil, false, err
	}
	v := sess.View()
	return &v, applied, nil
}

func (s *Service) ClearFilter(_ context.Context, id uuid.UUID) (*session.View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := sess.ClearFilter(); err != nil {
		return nil, err
	}
	v := sess.View()
	return &v, nil
}

func (s *Service) SetDisplay(_ context.Context, id uuid.UUID, display DisplayDto) (*session.View, error) {
	d, err := state.ParseDisplay(display.Display)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := sess.SetDisplay(d); err != nil {
		return nil, err
	}
	v := sess.View()
	return &v, nil
}

func (s *Service) Subscribe(_ context.Context, id uuid.UUID) (<-chan session.View, func(), error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, nil, err
	}
	views, cancel := sess.Subscribe()
	return views, cancel, nil
}

func toCatalogDto(snap *catalog.Snapshot) *CatalogDto {
	return &CatalogDto{
		Version:      snap.Version(),
		Products:     snap.Len(),
		MaxPrice:     snap.MaxPrice(),
		PriceCeiling: snap.MaxPrice() + session.PriceCeilingPadding,
		Facets:       snap.Facets(),
		LoadedAt:     snap.LoadedAt(),
	}
}
