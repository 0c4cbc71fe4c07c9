package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-planner/internal/logger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

// QueueNotifier schedules planner reminders as jobs on a Publisher.
type QueueNotifier struct {
	publisher Publisher
}

// NewQueueNotifier creates a notifier backed by publisher.
func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

// Schedule implements planner.Notifier.
func (n *QueueNotifier) Schedule(ctx context.Context, reminders []planner.Reminder) error {
	for _, r := range reminders {
		job := &ReminderJob{
			JobID:     r.ID,
			PaymentID: r.PaymentID,
			Title:     r.Title,
			Body:      r.Body,
			FireAt:    r.FireAt,
		}
		if err := n.publisher.PublishReminder(ctx, job); err != nil {
			return fmt.Errorf("Schedule: publishing reminder %s: %w", r.ID, err)
		}
	}
	return nil
}

// Cancel implements planner.Notifier.
func (n *QueueNotifier) Cancel(ctx context.Context, paymentID string) error {
	dropped, err := n.publisher.CancelPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	if dropped > 0 {
		log := logger.FromContext(ctx)
		log.Debug().Str("payment_id", paymentID).Int("dropped", dropped).Msg("Cancelled payment reminders")
	}
	return nil
}

// Delivery hands a due reminder to the user. The worker logs reminders;
// other transports implement the same function type.
type Delivery func(ctx context.Context, job *ReminderJob) error

// LogDelivery writes the reminder to the context logger.
func LogDelivery(ctx context.Context, job *ReminderJob) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.JobID).
		Str("payment_id", job.PaymentID).
		Time("fire_at", job.FireAt).
		Str("title", job.Title).
		Msg(job.Body)
	return nil
}

// ReminderHandler adapts a Delivery to a JobHandler.
func ReminderHandler(deliver Delivery) JobHandler {
	return func(ctx context.Context, job Job) error {
		reminder, ok := job.(*ReminderJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		return deliver(ctx, reminder)
	}
}

// Ensure QueueNotifier implements planner.Notifier.
var _ planner.Notifier = (*QueueNotifier)(nil)
