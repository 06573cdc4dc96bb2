// Package app contains the application setup for the catalog service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/catalog/internal/config"
	cerrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/internal/session"
	"github.com/abgdnv/catalog/internal/source"
	grpcImpl "github.com/abgdnv/catalog/internal/transport/grpc"
	"github.com/abgdnv/catalog/internal/transport/rest"
	"github.com/abgdnv/catalog/pkg/auth"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

type Dependencies struct {
	CatalogService *service.Service
	Sessions       *session.Manager
	// Verifier guards the reload endpoint, nil leaves it open.
	Verifier auth.Verifier
	// Metrics is mounted on MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

// NewSource builds the product source selected by the catalog section.
// The pool is used by the postgres source only.
func NewSource(cfg *config.Config, dbPool *pgxpool.Pool) (source.Source, error) {
	switch cfg.Catalog.Source {
	case source.KindPostgres:
		if dbPool == nil {
			return nil, fmt.Errorf("postgres source requires a database pool")
		}
		return source.NewPgSource(dbPool), nil
	case source.KindHTTP:
		return source.NewHTTPSource(cfg.Catalog.URL, cfg.Catalog.FetchTimeout, cfg.Resilience.CircuitBreaker), nil
	case source.KindFile:
		return source.NewFileSource(cfg.Catalog.Path), nil
	default:
		return nil, fmt.Errorf("%w: %q", cerrors.ErrUnknownSourceKind, cfg.Catalog.Source)
	}
}

func SetupDependencies(cfg *config.Config, src source.Source, publisher messaging.Publisher, verifier auth.Verifier, logger *slog.Logger) *Dependencies {
	sessions := session.NewManager(session.Config{
		DebounceWindow: cfg.Filter.DebounceWindow,
		TTL:            cfg.Filter.SessionTTL,
		MaxSessions:    cfg.Filter.MaxSessions,
	}, logger)
	svc := service.NewService(src, sessions, publisher, service.Options{
		FetchTimeout:   cfg.Catalog.FetchTimeout,
		ReloadInterval: cfg.Catalog.ReloadInterval,
		MemoSize:       cfg.Filter.MemoSize,
	}, logger)

	return &Dependencies{
		CatalogService: svc,
		Sessions:       sessions,
		Verifier:       verifier,
		Logger:         logger,
	}
}

// SetupHttpHandler initializes the routes and middleware of the catalog API.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	catalogHandler := rest.NewHandler(deps.CatalogService, deps.Verifier, deps.Logger)
	catalogHandler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle(deps.MetricsPath, deps.Metrics)
	}
}

// SetupHttpServer creates the HTTP server of the catalog service with tracing enabled.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	handler := server.WithTracing(SetupHttpHandler(deps), "catalog-http")
	return server.NewHTTPServer(cfg.HTTPServer, handler)
}

// SetupGrpcServer initializes the gRPC server. The returned health server
// reports NOT_SERVING until the caller marks it otherwise.
func SetupGrpcServer(deps *Dependencies, cfg *config.Config) (*grpc.Server, *health.Server) {
	catalogRegisterFunc := func(s *grpc.Server) {
		grpcImpl.RegisterCatalogServer(s, grpcImpl.NewServer(deps.CatalogService, deps.Logger))
	}
	opts := server.GRPCOptions{
		Reflection: cfg.GRPC.ReflectionEnabled,
		Tracing:    true,
		Logger:     deps.Logger.With("component", "grpc"),
	}
	return server.NewGRPCServer(opts, catalogRegisterFunc)
}
