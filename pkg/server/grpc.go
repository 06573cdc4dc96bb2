package server

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// RegistrationFunc registers a grpc service with the server.
type RegistrationFunc func(*grpc.Server)

// GRPCOptions selects the optional parts of a gRPC server.
type GRPCOptions struct {
	Reflection bool
	Tracing    bool
	// Logger enables call logging and panic recovery when set.
	Logger *slog.Logger
}

// NewGRPCServer creates a gRPC server with a health service, optional
// reflection and tracing, and the given service registrations.
// The health service starts out NOT_SERVING.
func NewGRPCServer(opts GRPCOptions, registerFunc ...RegistrationFunc) (*grpc.Server, *health.Server) {
	var serverOpts []grpc.ServerOption
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	if opts.Logger != nil {
		serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(interceptorLogger(opts.Logger),
				logging.WithLogOnEvents(logging.FinishCall)),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(recoverFrom(opts.Logger))),
		))
	}
	grpcServer := grpc.NewServer(serverOpts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	if opts.Reflection {
		reflection.Register(grpcServer)
	}
	for _, regFunc := range registerFunc {
		regFunc(grpcServer)
	}
	return grpcServer, healthServer
}

func interceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func recoverFrom(l *slog.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorContext(ctx, "panic in gRPC handler", "panic", p)
		return status.Error(codes.Internal, "internal error")
	}
}
