package subscriber

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/pkg/config"
	"github.com/abgdnv/catalog/pkg/messaging/events"
	pnats "github.com/abgdnv/catalog/pkg/nats"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"golang.org/x/sync/errgroup"
)

const skipIntegrationTests = "CATALOG_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

type countingReloader struct {
	calls atomic.Int64
}

func (r *countingReloader) Reload(context.Context) (*service.CatalogDto, error) {
	n := r.calls.Add(1)
	return &service.CatalogDto{Version: uint64(n)}, nil
}

// SubscriberSuite runs the subscriber against a real JetStream server.
type SubscriberSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	nc            *natsgo.Conn
	js            jetstream.JetStream
}

func (s *SubscriberSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, "catalog-subscriber-test", 5*time.Second, s.logger)
	require.NoError(s.T(), err, "Failed to connect to NATS")

	s.js, err = pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")
}

func (s *SubscriberSuite) TearDownSuite() {
	s.nc.Close()
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func TestSubscriberIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(SubscriberSuite))
}

func (s *SubscriberSuite) TestProductsChangedTriggersReload() {
	// given
	streamName := "STREAM-" + uuid.NewString()
	consumerName := "CONSUMER-" + uuid.NewString()
	subject := "catalog.products." + uuid.NewString()

	_, err := pnats.EnsureStream(s.ctx, s.js, streamName, subject)
	require.NoError(s.T(), err)

	reloader := &countingReloader{}
	cfg := config.SubscriberConfig{
		Stream:   streamName,
		Subject:  subject,
		Consumer: consumerName,
		Batch:    1,
		Timeout:  200 * time.Millisecond,
		Interval: 200 * time.Millisecond,
		Workers:  1,
	}
	testCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	g, gCtx := errgroup.WithContext(testCtx)
	g.Go(func() error {
		return Start(gCtx, s.js, cfg, reloader, s.logger)
	})
	s.T().Cleanup(func() {
		cancel()
		require.NoError(s.T(), g.Wait())
	})

	// when
	for range 2 {
		payload, err := events.ProductsChangedEvent{Source: "test", ChangedAt: time.Now()}.Payload()
		require.NoError(s.T(), err)
		_, err = s.js.Publish(s.ctx, subject, payload)
		require.NoError(s.T(), err)
	}

	// then
	require.Eventually(s.T(), func() bool {
		return reloader.calls.Load() == 2
	}, 5*time.Second, 100*time.Millisecond, "catalog was not reloaded for every notification")

	require.Eventually(s.T(), func() bool {
		consumer, err := s.js.Consumer(s.ctx, streamName, consumerName)
		if err != nil {
			return false
		}
		info, err := consumer.Info(s.ctx)
		return err == nil && info.NumAckPending == 0 && info.NumPending == 0
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *SubscriberSuite) TestPublisherDeduplicatesReloadAnnouncements() {
	// given
	streamName := "RELOADED-" + uuid.NewString()
	stream, err := pnats.EnsureStream(s.ctx, s.js, streamName, events.CatalogReloadedEvent{}.Subject())
	require.NoError(s.T(), err)
	s.T().Cleanup(func() { _ = s.js.DeleteStream(s.ctx, streamName) })

	publisher := pnats.NewPublisher(s.js)
	event := events.CatalogReloadedEvent{Version: 7, Products: 3, LoadedAt: time.Now()}

	// when
	require.NoError(s.T(), publisher.Publish(s.ctx, event))
	require.NoError(s.T(), publisher.Publish(s.ctx, event))
	require.NoError(s.T(), publisher.Publish(s.ctx, events.CatalogReloadedEvent{Version: 8, LoadedAt: time.Now()}))

	// then
	info, err := stream.Info(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), uint64(2), info.State.Msgs)

	msg, err := stream.GetMsg(s.ctx, info.State.FirstSeq)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "application/json", msg.Header.Get("Content-Type"))
}
