package server

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abgdnv/catalog/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

var panicDesc = grpc.ServiceDesc{
	ServiceName: "test.Panicker",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Do",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(context.Context, any) (any, error) { panic("boom") }
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/test.Panicker/Do"}, handler)
		},
	}},
}

func dial(t *testing.T, srv *grpc.Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	conn, err := grpc.NewClient("passthrough://bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewGRPCServer_RecoversPanics(t *testing.T) {
	// given
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	srv, _ := NewGRPCServer(GRPCOptions{Logger: logger}, func(s *grpc.Server) {
		s.RegisterService(&panicDesc, struct{}{})
	})
	conn := dial(t, srv)

	// when
	err := conn.Invoke(context.Background(), "/test.Panicker/Do", &structpb.Struct{}, &structpb.Struct{})

	// then
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, logs.String(), "panic in gRPC handler")
	assert.Contains(t, logs.String(), "finished call")
}

func TestNewGRPCServer_HealthStartsNotServing(t *testing.T) {
	srv, healthSrv := NewGRPCServer(GRPCOptions{})
	conn := dial(t, srv)
	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	resp, err = client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.HTTPConfig{Port: 8081, MaxHeaderBytes: 4096}
	cfg.Timeout.Read = 2 * time.Second
	cfg.Timeout.ReadHeader = time.Second

	srv := NewHTTPServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":8081", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.ReadTimeout)
	assert.Equal(t, time.Second, srv.ReadHeaderTimeout)
	assert.Zero(t, srv.WriteTimeout)
	assert.Equal(t, 4096, srv.MaxHeaderBytes)
}

func TestNewChiRouter_RecoversAndTagsRequests(t *testing.T) {
	var logs bytes.Buffer
	router := NewChiRouter(slog.New(slog.NewJSONHandler(&logs, nil)))
	router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	handler := WithTracing(router, "test")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
