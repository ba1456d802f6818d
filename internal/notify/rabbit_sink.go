package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

// Publisher is the part of *amqp.Channel the sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitSink publishes events as JSON to a topic exchange with routing key
// "notification.<kind>". Delivery to patients is done by whoever consumes
// the exchange. Publishing goes through a circuit breaker so a dead broker
// fails fast instead of tying up dispatcher workers until their timeout.
type RabbitSink struct {
	pub      Publisher
	exchange string
	breaker  *gobreaker.CircuitBreaker
	closers  []func() error
}

func NewRabbitSink(pub Publisher, exchange string) *RabbitSink {
	return &RabbitSink{
		pub:      pub,
		exchange: exchange,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "rabbitmq-notify",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// DialRabbitSink connects to url and declares exchange as a durable topic exchange.
func DialRabbitSink(url, exchange string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	s := NewRabbitSink(ch, exchange)
	s.closers = []func() error{ch.Close, conn.Close}
	return s, nil
}

func RoutingKey(kind EventKind) string {
	return "notification." + string(kind)
}

func (s *RabbitSink) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.pub.PublishWithContext(ctx, s.exchange, RoutingKey(ev.Kind), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID.String(),
			Timestamp:    ev.OccurredAt,
			Type:         string(ev.Kind),
			Body:         body,
		})
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *RabbitSink) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
