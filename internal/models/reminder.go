package models

import "time"

// ScheduledReminder is a pending alert in the delivery outbox. ReminderID is
// the stable per-(item, kind) identifier, so at most one row exists per axis.
type ScheduledReminder struct {
	ReminderID string    `json:"reminder_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	FireAt     time.Time `json:"fire_at"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"created_at"`
}
