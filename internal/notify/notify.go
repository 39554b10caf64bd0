// Package notify announces issued invoices to the mailer through RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/venuebook/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const InvoiceIssuedQueue = "invoice.issued"

// InvoiceIssued is the message the mailer renders and sends.
type InvoiceIssued struct {
	Type      string         `json:"type"`
	Invoice   domain.Invoice `json:"invoice"`
	Recipient string         `json:"recipient"`
	IssuedAt  time.Time      `json:"issued_at"`
}

func NewInvoiceIssued(inv domain.Invoice, recipient string, at time.Time) InvoiceIssued {
	return InvoiceIssued{
		Type:      InvoiceIssuedQueue,
		Invoice:   inv,
		Recipient: recipient,
		IssuedAt:  at.UTC(),
	}
}

// AMQPPublisher publishes persistent JSON messages to a durable queue. Each
// publish opens its own connection so a broker restart never leaves a stale
// channel behind.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger
}

func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, logger: logger}
}

func (p *AMQPPublisher) PublishInvoiceIssued(ctx context.Context, msg InvoiceIssued) error {
	const op = "notify.AMQPPublisher.PublishInvoiceIssued"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := p.publish(ctx, InvoiceIssuedQueue, body); err != nil {
		p.logger.Warn("amqp publish failed", "queue", InvoiceIssuedQueue, "invoice_id", msg.Invoice.ID, "error", err)
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// LogPublisher only logs; used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishInvoiceIssued(_ context.Context, msg InvoiceIssued) error {
	p.logger.Info("invoice issued",
		"invoice_id", msg.Invoice.ID,
		"number", msg.Invoice.Number,
		"recipient", msg.Recipient,
	)
	return nil
}
