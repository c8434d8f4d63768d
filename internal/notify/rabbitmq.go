package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/nurpe/supply-settlement/internal/model"
)

const RoutingKeyCompleted = "invoice.completed"

// Publisher announces completed invoice organizations on a topic exchange.
type Publisher struct {
	exchange string
	log      zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	chn  *amqp.Channel
}

func NewPublisher(url, exchange string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := chn.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{exchange: exchange, log: log, conn: conn, chn: chn}, nil
}

func (p *Publisher) PublishCompleted(ctx context.Context, event model.CompletionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.chn.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKeyCompleted,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    event.InvoiceID.String() + ":" + event.OrganizationID.String(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyCompleted, err)
	}
	p.log.Debug().
		Str("invoice_id", event.InvoiceID.String()).
		Str("organization_id", event.OrganizationID.String()).
		Msg("completion event published")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.chn.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) PublishCompleted(context.Context, model.CompletionEvent) error { return nil }

func (Noop) Close() error { return nil }
