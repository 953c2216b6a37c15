/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"powerbank-rental-go/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ReturnProcessor settles one hardware return event.
type ReturnProcessor interface {
	ProcessReturn(ctx context.Context, ev models.ReturnEvent) (*models.ReturnResult, error)
}

// ReturnListenerConfig contains configuration for ReturnListener
type ReturnListenerConfig struct {
	Url            string
	Queue          string
	Processor      ReturnProcessor
	Prefetch       int
	ReconnectDelay time.Duration
}

// ReturnListener consumes hardware return events from a durable queue and
// feeds them to the reconciler.
type ReturnListener struct {
	url            string
	queue          string
	processor      ReturnProcessor
	prefetch       int
	reconnectDelay time.Duration

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewReturnListener creates a new return event listener
func NewReturnListener(cfg ReturnListenerConfig) *ReturnListener {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 20
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	return &ReturnListener{
		url:            cfg.Url,
		queue:          cfg.Queue,
		processor:      cfg.Processor,
		prefetch:       cfg.Prefetch,
		reconnectDelay: cfg.ReconnectDelay,
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}
}

// Start connects once so configuration errors surface immediately, then
// consumes in the background, reconnecting when the broker goes away.
func (l *ReturnListener) Start(ctx context.Context) error {
	zap.L().Info("Starting return listener", zap.String("queue", l.queue))

	conn, err := amqp.Dial(l.url)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}

	go l.run(ctx, conn)
	return nil
}

// Stop gracefully stops the return listener
func (l *ReturnListener) Stop() {
	zap.L().Info("Stopping return listener")
	close(l.stopChan)
	<-l.doneChan
	zap.L().Info("Return listener stopped")
}

func (l *ReturnListener) run(ctx context.Context, conn *amqp.Connection) {
	defer close(l.doneChan)

	backoff := l.reconnectDelay
	for {
		if conn != nil {
			err := l.consume(ctx, conn)
			_ = conn.Close()
			conn = nil
			if err == nil {
				return
			}
			zap.L().Warn("Return consumer interrupted, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		}

		select {
		case <-time.After(backoff):
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}

		var err error
		conn, err = amqp.Dial(l.url)
		if err != nil {
			zap.L().Error("Failed to reconnect to broker", zap.Error(err))
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = l.reconnectDelay
	}
}

// consume returns nil when asked to stop and an error when the connection
// or channel is lost.
func (l *ReturnListener) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(l.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	if _, err := ch.QueueDeclare(l.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", l.queue, err)
	}
	deliveries, err := ch.Consume(l.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", l.queue, err)
	}

	zap.L().Info("Return listener consuming", zap.String("queue", l.queue))
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			l.settle(d, l.handle(ctx, d.Body, d.Redelivered))
		case <-l.stopChan:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *ReturnListener) settle(d amqp.Delivery, action action) {
	var err error
	switch action {
	case actionAck:
		err = d.Ack(false)
	case actionRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		zap.L().Error("Failed to settle delivery", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}
