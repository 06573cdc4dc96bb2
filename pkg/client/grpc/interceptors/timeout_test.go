package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func Test_GRPCClient_TimeoutInterceptor(t *testing.T) {
	testCases := []struct {
		name          string
		serviceDelay  time.Duration
		clientTimeout time.Duration
		expectedCode  codes.Code
	}{
		{name: "slow service exceeds deadline", serviceDelay: 500 * time.Millisecond, clientTimeout: 50 * time.Millisecond, expectedCode: codes.DeadlineExceeded},
		{name: "fast service", serviceDelay: 0, clientTimeout: time.Second, expectedCode: codes.OK},
		{name: "zero timeout is unbounded", serviceDelay: 100 * time.Millisecond, clientTimeout: 0, expectedCode: codes.OK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			service := &mockService{delay: tc.serviceDelay}
			conn := setupTestEnvironment(t, service, UnaryClientTimeoutInterceptor(tc.clientTimeout))

			// when
			start := time.Now()
			err := conn.Invoke(context.Background(), probeMethod, &structpb.Struct{}, new(structpb.Struct))

			// then
			st, ok := status.FromError(err)
			require.True(t, ok, "Error should be a gRPC status error")
			require.Equal(t, tc.expectedCode, st.Code())
			if tc.expectedCode == codes.DeadlineExceeded {
				require.Less(t, time.Since(start), tc.serviceDelay)
			}
		})
	}
}
