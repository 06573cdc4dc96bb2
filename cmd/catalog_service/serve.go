package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// serveHTTP runs srv in g and shuts it down within grace once ctx is done.
func serveHTTP(ctx context.Context, g *errgroup.Group, name string, srv *http.Server, grace time.Duration, logger *slog.Logger) {
	logger = logger.With(slog.String("server", name), slog.String("addr", srv.Addr))
	g.Go(func() error {
		logger.Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// serveGRPC runs srv on addr in g. On shutdown the health service flips to
// NOT_SERVING first, then in-flight calls get grace to finish before the
// server is stopped hard.
func serveGRPC(ctx context.Context, g *errgroup.Group, addr string, srv *grpc.Server, healthSrv *health.Server, grace time.Duration, logger *slog.Logger) {
	logger = logger.With(slog.String("server", "gRPC"), slog.String("addr", addr))
	g.Go(func() error {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("Server listening")
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")
		healthSrv.Shutdown()
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			return nil
		case <-time.After(grace):
			logger.Warn("Graceful stop timed out, forcing stop")
			srv.Stop()
			return errors.New("grpc server graceful stop timed out")
		}
	})
}
