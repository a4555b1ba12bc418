package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher sends a raw message to a broker exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey, messageID string, body []byte) error
	Close() error
}

// AMQPPublisher publishes to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	if u.Path == "" {
		clean += "/"
	}
	return clean, nil
}

func DialAMQP(amqpURL string) (*AMQPPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, declared: make(map[string]bool)}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, exchange, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[exchange] {
		err := p.channel.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}

	return p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		})
}

func (p *AMQPPublisher) Close() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// NoopPublisher drops messages. Used when no broker is configured or reachable.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                                    { return nil }

// NewPublisher dials the broker, falling back to a NoopPublisher when the URL is
// empty or the broker is unreachable.
func NewPublisher(amqpURL string, logger *zerolog.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		logger.Info().Msg("broker not configured; settlement events stay in-process")
		return NoopPublisher{}
	}
	pub, err := DialAMQP(amqpURL)
	if err != nil {
		logger.Warn().Err(err).Msg("broker unavailable; using fallback publisher")
		return NoopPublisher{}
	}
	logger.Info().Msg("broker publisher connected")
	return pub
}

// Forwarder republishes bus events to the broker with the event type as routing key.
type Forwarder struct {
	publisher Publisher
	exchange  string
	timeout   time.Duration
	logger    *zerolog.Logger
}

func NewForwarder(publisher Publisher, exchange string, logger *zerolog.Logger) *Forwarder {
	l := logger.With().Str("component", "event_forwarder").Logger()
	return &Forwarder{publisher: publisher, exchange: exchange, timeout: 5 * time.Second, logger: &l}
}

// Attach subscribes the forwarder to every settlement event type.
func (f *Forwarder) Attach(bus *EventBus) {
	bus.Subscribe(f.Handle, AllEventTypes...)
}

func (f *Forwarder) Handle(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, f.exchange, event.Type, event.ID, event.Payload); err != nil {
		return fmt.Errorf("failed to forward %s: %w", event.Type, err)
	}
	f.logger.Debug().Str("event_type", event.Type).Str("event_id", event.ID).Msg("event forwarded")
	return nil
}
