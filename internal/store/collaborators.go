package store

import "context"

// PrerequisiteChecker decides whether a user may start a rental. A denial is
// returned as an error carrying the reason.
type PrerequisiteChecker interface {
	CheckRentalPrerequisites(ctx context.Context, userId string) error
}

// Notifier delivers user-facing messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userId, template string, fields map[string]string) error
	NotifyBulk(ctx context.Context, userIds []string, template string, fields map[string]string) error
}

// PointsAwarder credits loyalty points outside of any rental transaction.
// The reason doubles as the idempotency key.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, userId string, points int64, reason string) error
}

// Notification templates
const (
	TemplateRentalStarted   = "rental_started"
	TemplateRentalReminder  = "rental_due_reminder"
	TemplateRentalCompleted = "rental_completed"
	TemplateRentalCancelled = "rental_cancelled"
	TemplateRentalExtended  = "rental_extended"
	TemplateRentalAbandoned = "rental_abandoned"
	TemplatePaymentDue      = "rental_payment_due"
)
