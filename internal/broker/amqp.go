package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"dm-chat/internal/models"
	"dm-chat/internal/observability"
)

// AMQPRoutingKey is the topic routing key for newMessage envelopes.
const AMQPRoutingKey = "messages.new"

// AMQPBroker fans messages out across instances through a topic exchange.
// Each instance consumes from its own exclusive queue.
type AMQPBroker struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	exchange  string
	deliverer Deliverer
	logger    *slog.Logger
}

// NewAMQPBroker dials url and declares the durable topic exchange.
func NewAMQPBroker(url, exchange string, deliverer Deliverer, logger *slog.Logger) (*AMQPBroker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPBroker{conn: conn, ch: ch, exchange: exchange, deliverer: deliverer, logger: logger}, nil
}

func (b *AMQPBroker) PublishMessage(ctx context.Context, msg models.Message, headers map[string]string) error {
	body, err := json.Marshal(newEnvelope(msg))
	if err != nil {
		return err
	}

	amqpHeaders := amqp.Table{}
	for key, value := range headers {
		amqpHeaders[key] = value
	}

	err = b.ch.PublishWithContext(ctx, b.exchange, AMQPRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqpHeaders,
	})
	if err != nil {
		observability.IncBrokerPublishError("amqp")
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (b *AMQPBroker) Run(ctx context.Context) error {
	q, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.ch.QueueBind(q.Name, AMQPRoutingKey, b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := b.ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			msg, err := decodeEnvelope(d.Body)
			if err != nil {
				b.logger.Warn("dropping amqp event", "error", err)
				continue
			}
			b.deliverer.DeliverMessage(msg)
		}
	}
}

func (b *AMQPBroker) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
