package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"dm-chat/internal/models"
)

// Deliverer receives messages fanned out by a broker. The push hub is the
// production implementation.
type Deliverer interface {
	DeliverMessage(msg models.Message)
}

// Broker carries newMessage events from the API instance that stored a
// message to the instance holding the receiver's push connection.
type Broker interface {
	PublishMessage(ctx context.Context, msg models.Message, headers map[string]string) error
	// Run consumes published messages until ctx is done.
	Run(ctx context.Context) error
	Close() error
}

// EventEnvelope wraps every event that crosses the broker.
type EventEnvelope struct {
	EventType string         `json:"event_type"`
	EventName string         `json:"event_name"`
	Payload   models.Message `json:"payload"`
}

func newEnvelope(msg models.Message) EventEnvelope {
	return EventEnvelope{EventType: "chat_events", EventName: models.EventNewMessage, Payload: msg}
}

func decodeEnvelope(body []byte) (models.Message, error) {
	var env EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventName != models.EventNewMessage {
		return models.Message{}, fmt.Errorf("unexpected event %q", env.EventName)
	}
	return env.Payload, nil
}

// BuildHeaders returns the correlation headers attached to published events.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// Options selects and configures the broker.
type Options struct {
	Kind      string
	RedisAddr string
	AMQPURL   string
	Exchange  string
}

// New builds the configured broker, or a local broker when the remote one
// cannot be reached.
func New(ctx context.Context, opts Options, deliverer Deliverer, logger *slog.Logger) Broker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "broker")

	switch opts.Kind {
	case "redis":
		b, err := NewRedisBroker(ctx, opts.RedisAddr, deliverer, logger)
		if err == nil {
			logger.Info("broker connected", "kind", "redis", "addr", opts.RedisAddr)
			return b
		}
		logger.Warn("redis broker disabled, using local", "error", err)
		return NewLocalBroker(deliverer, err.Error())
	case "amqp":
		b, err := NewAMQPBroker(opts.AMQPURL, opts.Exchange, deliverer, logger)
		if err == nil {
			logger.Info("broker connected", "kind", "amqp", "exchange", opts.Exchange)
			return b
		}
		logger.Warn("amqp broker disabled, using local", "error", err)
		return NewLocalBroker(deliverer, err.Error())
	default:
		return NewLocalBroker(deliverer, "")
	}
}

// Mode reports the broker kind for logging.
func Mode(b Broker) string {
	switch b.(type) {
	case *RedisBroker:
		return "redis"
	case *AMQPBroker:
		return "amqp"
	case *LocalBroker:
		return "local"
	default:
		return "unknown"
	}
}

// FallbackReason reports why a remote broker was replaced by the local one.
func FallbackReason(b Broker) string {
	if local, ok := b.(*LocalBroker); ok {
		return local.reason
	}
	return ""
}
