package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmehra2102/cafe-order-core/internal/notification/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

const (
	RoutingKey  = "kitchen.ticket"
	maxPriority = 10
)

// Publisher sends kitchen tickets to a durable priority queue.
type Publisher struct {
	log      *slog.Logger
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	mu       sync.Mutex
}

func Dial(log *slog.Logger, url, exchange, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open channel: %w", err), conn.Close())
	}
	p := &Publisher{log: log, conn: conn, ch: ch, exchange: exchange, queue: queue}
	if err := p.setup(); err != nil {
		return nil, errors.Join(err, p.Close())
	}
	return p, nil
}

func (p *Publisher) setup() error {
	if err := p.ch.ExchangeDeclare(
		p.exchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := p.ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-max-priority": maxPriority},
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := p.ch.QueueBind(p.queue, RoutingKey, p.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (p *Publisher) PublishTicket(ctx context.Context, t domain.Ticket) error {
	msg, err := Publishing(t, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// a channel must not be used for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish ticket: %w", err)
	}
	p.log.Debug("ticket published", "order_id", t.OrderID, "priority", msg.Priority)
	return nil
}

// Publishing builds the persistent AMQP message for t.
func Publishing(t domain.Ticket, traceparent string) (amqp.Publishing, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode ticket: %w", err)
	}
	headers := amqp.Table{"dining_type": string(t.DiningType)}
	if traceparent != "" {
		headers["traceparent"] = traceparent
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Priority:     t.Priority(),
		ContentType:  "application/json",
		MessageId:    t.OrderID,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}, nil
}

func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
