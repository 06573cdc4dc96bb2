// Package main runs the catalog browsing service: REST and SSE for
// interactive sessions, gRPC for stateless facet and filter queries.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/catalog/internal/app"
	"github.com/abgdnv/catalog/internal/config"
	"github.com/abgdnv/catalog/internal/migrations"
	"github.com/abgdnv/catalog/internal/source"
	"github.com/abgdnv/catalog/internal/subscriber"
	"github.com/abgdnv/catalog/pkg/auth"
	"github.com/abgdnv/catalog/pkg/bootstrap"
	"github.com/abgdnv/catalog/pkg/config/configloader"
	"github.com/abgdnv/catalog/pkg/messaging"
	pnats "github.com/abgdnv/catalog/pkg/nats"
	"github.com/abgdnv/catalog/pkg/probes"
	"github.com/abgdnv/catalog/pkg/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "catalog"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run wires the catalog source, the optional broker and identity provider,
// and serves HTTP, gRPC and pprof until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName, configloader.WithDefaults(config.Defaults()))
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Telemetry.TracesEnabled() {
		tracerProvider, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down tracer provider")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown tracer provider: %w", err)
			}
			return nil
		})
	}

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		metrics, err := telemetry.NewMetrics(serviceName)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		defer func() { _ = metrics.Provider.Shutdown(context.Background()) }()
		metricsHandler = metrics.Handler
	}

	var dbPool *pgxpool.Pool
	if cfg.Catalog.Source == source.KindPostgres {
		if cfg.Database.Migrate {
			if err := bootstrap.Migrate(migrations.FS, migrations.Dir, cfg.Database.URL); err != nil {
				return err
			}
			logger.Info("Database migrations applied")
		}
		var err error
		dbPool, err = bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("failed to create database connection pool: %w", err)
		}
		defer dbPool.Close()
		logger.Info("Successfully connected to the database!")
	}
	src, err := app.NewSource(cfg, dbPool)
	if err != nil {
		return err
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	var js jetstream.JetStream
	if cfg.Nats.Enabled() {
		nc, err := pnats.NewClient(cfg.Nats.Url, cfg.Nats.Name, cfg.Nats.Timeout, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		js, err = pnats.NewJetStreamContext(nc)
		if err != nil {
			return err
		}
		if cfg.Subscriber.CreateStream {
			subjects := []string{messaging.ProductsChangedSubject, messaging.CatalogReloadedSubject}
			if _, err := pnats.EnsureStream(ctx, js, cfg.Subscriber.Stream, subjects...); err != nil {
				return err
			}
		}
		publisher = pnats.NewPublisher(js)
		logger.Info("Connected to NATS", slog.String("url", cfg.Nats.Url))
	}

	var verifier auth.Verifier
	if cfg.IdP.Enabled() {
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		jwtVerifier, err := auth.NewJWTVerifier(startupCtx, cfg.IdP)
		if err != nil {
			return fmt.Errorf("failed to create JWT verifier: %w", err)
		}
		verifier = jwtVerifier
	}

	deps := app.SetupDependencies(cfg, src, publisher, verifier, logger)
	deps.Metrics = metricsHandler
	deps.MetricsPath = cfg.Telemetry.Metrics.Path
	httpServer := app.SetupHttpServer(deps, cfg)
	grpcServer, healthServer := app.SetupGrpcServer(deps, cfg)
	probe := probes.New(cfg.Probes, logger)

	// Catalog loading and session housekeeping
	g.Go(func() error {
		return deps.CatalogService.Run(gCtx)
	})
	g.Go(func() error {
		if err := deps.Sessions.Run(gCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	// Serve traffic as soon as the first catalog is loaded
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return nil
		case <-deps.CatalogService.Ready():
		}
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		logger.Info("Catalog loaded, service is ready")
		return probe.MarkReady()
	})
	g.Go(func() error {
		return probe.RunLiveness(gCtx)
	})

	if js != nil {
		g.Go(func() error {
			return subscriber.Start(gCtx, js, cfg.Subscriber, deps.CatalogService, logger)
		})
	}

	serveHTTP(gCtx, g, "HTTP", httpServer, cfg.Shutdown.Timeout, logger)
	serveGRPC(gCtx, g, ":"+cfg.GRPC.Port, grpcServer, healthServer, cfg.Shutdown.Timeout, logger)
	if cfg.PProf.Enabled {
		serveHTTP(gCtx, g, "pprof", &http.Server{Addr: cfg.PProf.Addr, ReadHeaderTimeout: 5 * time.Second}, cfg.Shutdown.Timeout, logger)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
