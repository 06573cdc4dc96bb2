package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/pkg/config"
	"github.com/abgdnv/catalog/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// Reloader refreshes the catalog from its source.
type Reloader interface {
	Reload(ctx context.Context) (*service.CatalogDto, error)
}

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
}

// Start creates the durable consumer and runs workers that reload the catalog
// for every products changed notification.
func Start(ctx context.Context, js jetstream.JetStream, subscriberCfg config.SubscriberConfig, reloader Reloader, logger *slog.Logger) error {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: subscriberCfg.Subject,
		Durable:       subscriberCfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, subscriberCfg.Stream, cfg)
	if err != nil {
		return err
	}
	logger.Info("subscriber started",
		slog.String("stream", subscriberCfg.Stream),
		slog.String("subject", subscriberCfg.Subject),
		slog.Int("workers", subscriberCfg.Workers))

	g, gCtx := errgroup.WithContext(ctx)
	for range subscriberCfg.Workers {
		g.Go(func() error {
			return runWorker(gCtx, consumer, subscriberCfg, reloader, logger)
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig, reloader Reloader, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				logger.Error("failed to fetch messages", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(cfg.Interval):
				}
				continue
			}
			for msg := range batch.Messages() {
				handleMessage(ctx, msg, reloader, logger)
			}
		}
	}
}

// handleMessage reloads the catalog once per message. A failed reload is
// nacked so the notification is redelivered.
func handleMessage(ctx context.Context, msg ackableMsg, reloader Reloader, logger *slog.Logger) {
	if msg == nil {
		logger.Error("received nil message")
		return
	}
	var event events.ProductsChangedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Error("failed to unmarshal message", "error", err, "subject", msg.Subject())
		if err := msg.Nak(); err != nil {
			logger.Error("failed to nack message", "error", err)
		}
		return
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, event.Carrier)
	ctx, span := otel.Tracer("catalog/subscriber").Start(ctx, "ProductsChanged")
	defer span.End()

	logger.InfoContext(ctx, "received products changed event",
		slog.String("subject", msg.Subject()),
		slog.String("source", event.Source),
		slog.String("reason", event.Reason),
		slog.String("changed_at", event.ChangedAt.Format(time.RFC3339)))

	dto, err := reloader.Reload(ctx)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to reload catalog", "error", err)
		if err := msg.Nak(); err != nil {
			logger.ErrorContext(ctx, "failed to nack message", "error", err)
		}
		return
	}
	logger.InfoContext(ctx, "catalog reloaded", slog.Uint64("version", dto.Version), slog.Int("products", dto.Products))

	if err := msg.Ack(); err != nil {
		logger.ErrorContext(ctx, "failed to ack message", "error", err)
	}
}
