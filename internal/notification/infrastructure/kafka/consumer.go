package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

const maxAttempts = 3

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Handler interface {
	Handle(ctx context.Context, eventType string, payload []byte) error
}

type Consumer struct {
	log     *slog.Logger
	reader  Reader
	handler Handler
	idem    Deduper
	tracer  trace.Tracer
	backoff time.Duration
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, handler Handler, idem Deduper) *Consumer {
	return &Consumer{
		log:     log,
		reader:  reader,
		handler: handler,
		idem:    idem,
		tracer:  otel.Tracer("notification-consumer"),
		backoff: 500 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Every fetched message is committed
// once handled, skipped as a duplicate, or given up on.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		// without redis we would rather notify twice than never
		c.log.Warn("idempotency check failed", "key", key, "err", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	eventType := tracing.HeaderValue(msg.Headers, "event_type")
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", string(msg.Key)),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	for attempt := 1; ; attempt++ {
		err = c.handler.Handle(msgCtx, eventType, msg.Value)
		if err == nil {
			return
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		c.log.Warn("handle failed, retrying", "type", eventType, "order_id", string(msg.Key), "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.log.Error("giving up on message", "type", eventType, "order_id", string(msg.Key), "offset", msg.Offset, "err", err)
	if rErr := c.idem.Release(context.WithoutCancel(ctx), key); rErr != nil {
		c.log.Warn("idempotency release failed", "key", key, "err", rErr)
	}
}
