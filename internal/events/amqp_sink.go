package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
)

const maxDialDelay = 60 * time.Second

// Meta describes an envelope published to the broker.
type Meta struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Partition string    `json:"partition"`
	Time      time.Time `json:"time"`
	Source    string    `json:"source"`
}

// Envelope wraps a lifecycle event for downstream consumers.
type Envelope struct {
	Meta Meta           `json:"meta"`
	Data LifecycleEvent `json:"data"`
}

// RoutingKey returns the topic routing key for an event.
func RoutingKey(partition domain.TicketStatus, action Action) string {
	return fmt.Sprintf("ticket.%s.%s", partition, action)
}

// AMQPSink publishes lifecycle events to a topic exchange.
type AMQPSink struct {
	conn     *amqp.Connection
	exchange string
	source   string
	logger   *zap.Logger
	now      func() time.Time
}

// NewAMQPSink connects to the broker and declares the exchange.
func NewAMQPSink(ctx context.Context, cfg config.BrokerConfig, source string, logger *zap.Logger) (*AMQPSink, error) {
	conn, err := DialWithRetry(ctx, cfg.URL, cfg.RetryAttempts, cfg.RetryDelay(), logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("publishing lifecycle events to broker", zap.String("exchange", cfg.Exchange))
	return &AMQPSink{conn: conn, exchange: cfg.Exchange, source: source, logger: logger, now: time.Now}, nil
}

// Publish sends the event as a persistent JSON envelope.
func (s *AMQPSink) Publish(ctx context.Context, partition domain.TicketStatus, event LifecycleEvent) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	envelope := s.envelope(partition, event)
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	key := RoutingKey(partition, event.Action)
	err = ch.PublishWithContext(ctx, s.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.Meta.ID,
		Timestamp:    envelope.Meta.Time,
		Type:         envelope.Meta.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", key, err)
	}
	s.logger.Debug("published lifecycle event", zap.String("key", key), zap.String("exchange", s.exchange))
	return nil
}

func (s *AMQPSink) envelope(partition domain.TicketStatus, event LifecycleEvent) Envelope {
	return Envelope{
		Meta: Meta{
			ID:        uuid.NewString(),
			Type:      "ticket." + string(event.Action),
			Partition: string(partition),
			Time:      s.now().UTC(),
			Source:    s.source,
		},
		Data: event,
	}
}

// Close closes the broker connection.
func (s *AMQPSink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// DialWithRetry connects to the broker with capped exponential backoff,
// giving up early when ctx is cancelled.
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			if i > 1 {
				logger.Info("broker connected", zap.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		sleep := backoff(delay, i)
		logger.Warn("broker dial failed", zap.Int("attempt", i), zap.Duration("sleep", sleep), zap.Error(err))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to broker after %d attempts: %w", attempts, lastErr)
}

func backoff(delay time.Duration, attempt int) time.Duration {
	if delay <= 0 {
		return 0
	}
	sleep := delay * time.Duration(math.Pow(2, float64(attempt-1)))
	if sleep > maxDialDelay || sleep <= 0 {
		return maxDialDelay
	}
	return sleep
}
