package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Message is the JSON body published for each notification.
type Message struct {
	UserId   string            `json:"user_id"`
	Template string            `json:"template"`
	Fields   map[string]string `json:"fields,omitempty"`
	SentAt   time.Time         `json:"sent_at"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AmqpNotifier publishes notifications as persistent messages to a durable
// queue on the default exchange.
type AmqpNotifier struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    publisher
	queue string
	now   func() time.Time
}

// DialAmqpNotifier connects to url and declares queue.
func DialAmqpNotifier(url, queue string) (*AmqpNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	zap.L().Info("Notification publisher connected", zap.String("queue", queue))
	return &AmqpNotifier{conn: conn, ch: ch, queue: queue, now: time.Now}, nil
}

func newAmqpNotifier(ch publisher, queue string, now func() time.Time) *AmqpNotifier {
	return &AmqpNotifier{ch: ch, queue: queue, now: now}
}

func (n *AmqpNotifier) Notify(ctx context.Context, userId, template string, fields map[string]string) error {
	body, err := json.Marshal(Message{
		UserId:   userId,
		Template: template,
		Fields:   fields,
		SentAt:   n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", template, err)
	}
	return nil
}

func (n *AmqpNotifier) NotifyBulk(ctx context.Context, userIds []string, template string, fields map[string]string) error {
	for _, id := range userIds {
		if err := n.Notify(ctx, id, template, fields); err != nil {
			return err
		}
	}
	return nil
}

func (n *AmqpNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
