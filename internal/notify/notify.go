// Package notify holds the store.Notifier implementations: a zap-backed log
// notifier, a RabbitMQ publisher and a fanout over several of them.
package notify

import (
	"context"
	"errors"
	"sort"

	"powerbank-rental-go/internal/store"

	"go.uber.org/zap"
)

// LogNotifier writes every notification to the structured log. It is the
// default when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, userId, template string, fields map[string]string) error {
	zf := []zap.Field{zap.String("user_id", userId), zap.String("template", template)}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.String(k, fields[k]))
	}
	n.logger.Info("Notification", zf...)
	return nil
}

func (n *LogNotifier) NotifyBulk(ctx context.Context, userIds []string, template string, fields map[string]string) error {
	for _, id := range userIds {
		_ = n.Notify(ctx, id, template, fields)
	}
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []store.Notifier

func (f Fanout) Notify(ctx context.Context, userId, template string, fields map[string]string) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, userId, template, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) NotifyBulk(ctx context.Context, userIds []string, template string, fields map[string]string) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyBulk(ctx, userIds, template, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
