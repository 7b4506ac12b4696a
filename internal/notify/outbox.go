// Package notify delivers maintenance reminders. Scheduled reminders are
// kept in a persistent outbox keyed by their stable identifier and a
// dispatcher sends them through the configured channels once due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/Upkeep/internal/models"
	"github.com/zoobzio/clockz"
)

// ErrNotLinked is returned by a sender with no delivery target configured.
var ErrNotLinked = errors.New("no reminder target linked")

// OutboxStore persists pending reminders.
type OutboxStore interface {
	Upsert(ctx context.Context, reminder *models.ScheduledReminder) error
	Delete(ctx context.Context, reminderIDs []string) error
	// Claim leases due reminders to the caller until now+lease. A leased
	// reminder is not handed out again until the lease expires, it is
	// rescheduled, or a failed attempt releases it.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.ScheduledReminder, error)
	MarkDelivered(ctx context.Context, reminder *models.ScheduledReminder) error
	IncrementAttempts(ctx context.Context, reminderID string) error
}

type SettingsSource interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Outbox is the reminder-delivery collaborator used by the reminder
// scheduler.
type Outbox struct {
	store    OutboxStore
	settings SettingsSource
	clock    clockz.Clock
	push     bool
}

// NewOutbox creates an outbox. push reports whether a push channel is
// configured, which authorizes delivery without a linked chat.
func NewOutbox(store OutboxStore, settings SettingsSource, clock clockz.Clock, push bool) *Outbox {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Outbox{store: store, settings: settings, clock: clock, push: push}
}

// IsAuthorized reports whether reminders are enabled and can reach the user.
func (o *Outbox) IsAuthorized(ctx context.Context) (bool, error) {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.RemindersEnabled {
		return false, nil
	}
	return settings.IsLinked() || o.push, nil
}

func (o *Outbox) ScheduleAt(ctx context.Context, id, title, body string, fireAt time.Time) error {
	err := o.store.Upsert(ctx, &models.ScheduledReminder{
		ReminderID: id,
		Title:      title,
		Body:       body,
		FireAt:     fireAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder %s: %w", id, err)
	}
	return nil
}

func (o *Outbox) ScheduleAfter(ctx context.Context, id, title, body string, after time.Duration) error {
	return o.ScheduleAt(ctx, id, title, body, o.clock.Now().Add(after))
}

func (o *Outbox) Cancel(ctx context.Context, ids []string) error {
	if err := o.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return nil
}
