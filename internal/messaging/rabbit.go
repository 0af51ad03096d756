// internal/messaging/rabbit.go
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"acornbox/internal/logger"
)

type RabbitClient struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	URL      string

	mu sync.Mutex
}

func NewRabbitClient(url, exchange string) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	r := &RabbitClient{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		URL:      url,
	}
	if err := r.DeclareExchange(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *RabbitClient) GetConnection() *amqp.Connection {
	return r.conn
}

// DeclareExchange creates the durable topic exchange events are routed through
func (r *RabbitClient) DeclareExchange() error {
	err := r.channel.ExchangeDeclare(
		r.exchange,
		amqp.ExchangeTopic,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", r.exchange, err)
	}
	logger.Info("rabbit exchange declared", "exchange", r.exchange)
	return nil
}

// BindQueue declares a durable queue and binds it to the exchange with the
// given routing pattern, e.g. "message.*" or "#".
func (r *RabbitClient) BindQueue(queueName, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if err := r.channel.QueueBind(queueName, pattern, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queueName, err)
	}
	return nil
}

// PublishEvent sends ev to the exchange using its type as routing key
func (r *RabbitClient) PublishEvent(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.channel.Publish(
		r.exchange,
		string(ev.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID.String(),
			Timestamp:    ev.OccurredAt,
			Type:         string(ev.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close closes the channel and then the connection. The connection is
// closed even when closing the channel fails.
func (r *RabbitClient) Close() error {
	var chErr, connErr error
	if r.channel != nil {
		chErr = r.channel.Close()
	}
	if r.conn != nil {
		connErr = r.conn.Close()
	}
	return errors.Join(chErr, connErr)
}
