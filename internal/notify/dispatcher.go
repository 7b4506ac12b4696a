package notify

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/hray3182/Upkeep/internal/metrics"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

const (
	dispatchBatch = 50
	// MaxAttempts is how often a reminder is retried before it is dropped.
	MaxAttempts = 10
	// ClaimLease bounds how long a dispatcher that died mid-send keeps a
	// reminder from the others.
	ClaimLease = 5 * time.Minute
)

// Dispatcher sends due reminders from the outbox.
type Dispatcher struct {
	store    OutboxStore
	senders  []Sender
	logger   *zap.Logger
	metrics  *metrics.Metrics
	clock    clockz.Clock
	interval time.Duration
}

func NewDispatcher(store OutboxStore, senders []Sender, log *zap.Logger, m *metrics.Metrics, clock clockz.Clock, interval time.Duration) *Dispatcher {
	if clock == nil {
		clock = clockz.RealClock
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		store:    store,
		senders:  senders,
		logger:   logger.OrNop(log),
		metrics:  m,
		clock:    clock,
		interval: interval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Dispatcher started", zap.Duration("interval", d.interval), zap.Int("senders", len(d.senders)))

	for {
		d.Dispatch(ctx)

		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopped")
			return
		case <-d.clock.After(d.interval):
		}
	}
}

// Dispatch claims due reminders, sends them and returns how many were
// delivered. A reminder counts as delivered once any sender accepted it;
// otherwise its claim is released and it stays in the outbox for the next
// run. Dispatchers sharing one outbox never send the same claimed row.
func (d *Dispatcher) Dispatch(ctx context.Context) int {
	reminders, err := d.store.Claim(ctx, d.clock.Now(), ClaimLease, dispatchBatch)
	if err != nil {
		d.logger.Error("Failed to claim due reminders", zap.Error(err))
		d.metrics.Failure("dispatch")
		return 0
	}

	delivered := 0
	for _, reminder := range reminders {
		if d.deliver(ctx, reminder) {
			delivered++
			if err := d.store.MarkDelivered(ctx, reminder); err != nil {
				d.logger.Error("Failed to remove delivered reminder",
					zap.String("reminder_id", reminder.ReminderID),
					zap.Error(err))
			}
			continue
		}

		if reminder.Attempts+1 >= MaxAttempts {
			d.logger.Warn("Dropping undeliverable reminder",
				zap.String("reminder_id", reminder.ReminderID),
				zap.Int("attempts", reminder.Attempts+1))
			if err := d.store.MarkDelivered(ctx, reminder); err != nil {
				d.logger.Error("Failed to drop reminder", zap.String("reminder_id", reminder.ReminderID), zap.Error(err))
			}
			continue
		}
		if err := d.store.IncrementAttempts(ctx, reminder.ReminderID); err != nil {
			d.logger.Error("Failed to record delivery attempt",
				zap.String("reminder_id", reminder.ReminderID),
				zap.Error(err))
		}
	}
	return delivered
}

func (d *Dispatcher) deliver(ctx context.Context, reminder *models.ScheduledReminder) bool {
	ok := false
	for _, sender := range d.senders {
		err := sender.Send(ctx, reminder)
		switch {
		case err == nil:
			ok = true
			d.metrics.Delivered(sender.Name())
			d.logger.Info("Sent reminder",
				zap.String("reminder_id", reminder.ReminderID),
				zap.String("channel", sender.Name()))
		case errors.Is(err, ErrNotLinked):
			d.logger.Debug("Channel not linked", zap.String("channel", sender.Name()))
		default:
			d.metrics.Failure("send_" + sender.Name())
			d.logger.Error("Failed to send reminder",
				zap.String("reminder_id", reminder.ReminderID),
				zap.String("channel", sender.Name()),
				zap.Error(err))
		}
	}
	return ok
}
