package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

// Writer publishes order events for the outbox relay. Messages are keyed by
// order id and the hash balancer keeps one order's events on one partition.
type Writer struct {
	w      *kafka.Writer
	tracer trace.Tracer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		tracer: otel.Tracer("order-outbox"),
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	ctx, span := w.tracer.Start(ctx, "PublishOrderEvents", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(attribute.Int("messaging.batch.message_count", len(msgs)))
	for i := range msgs {
		msgs[i].Headers = tracing.InjectKafkaHeaders(ctx, msgs[i].Headers)
	}

	if err := w.w.WriteMessages(ctx, msgs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (w *Writer) Close() error {
	return w.w.Close()
}
