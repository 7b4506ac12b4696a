package repository

import (
	"context"
	"sort"
	"time"

	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/jackc/pgx/v5"
)

// ReminderRepository stores the pending reminders outbox.
type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Upsert schedules the reminder, replacing a pending one with the same id.
func (r *ReminderRepository) Upsert(ctx context.Context, reminder *models.ScheduledReminder) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO scheduled_reminders (reminder_id, title, body, fire_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (reminder_id) DO UPDATE
		 SET title = EXCLUDED.title, body = EXCLUDED.body, fire_at = EXCLUDED.fire_at,
		     attempts = 0, claimed_until = NULL
		 RETURNING attempts, created_at`,
		reminder.ReminderID, reminder.Title, reminder.Body, reminder.FireAt,
	).Scan(&reminder.Attempts, &reminder.CreatedAt)
}

func (r *ReminderRepository) Get(ctx context.Context, reminderID string) (*models.ScheduledReminder, error) {
	reminder := &models.ScheduledReminder{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT reminder_id, title, body, fire_at, attempts, created_at
		 FROM scheduled_reminders WHERE reminder_id = $1`,
		reminderID,
	).Scan(&reminder.ReminderID, &reminder.Title, &reminder.Body, &reminder.FireAt,
		&reminder.Attempts, &reminder.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return reminder, nil
}

func (r *ReminderRepository) Delete(ctx context.Context, reminderIDs []string) error {
	if len(reminderIDs) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM scheduled_reminders WHERE reminder_id = ANY($1)`,
		reminderIDs,
	)
	return err
}

// Claim leases up to limit reminders due at now, oldest first, until
// now+lease. Rows leased by another dispatcher are skipped until their lease
// runs out, so each due reminder is handed to one caller at a time.
func (r *ReminderRepository) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.ScheduledReminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE scheduled_reminders SET claimed_until = $2
		 WHERE reminder_id IN (
		     SELECT reminder_id FROM scheduled_reminders
		     WHERE fire_at <= $1 AND (claimed_until IS NULL OR claimed_until <= $1)
		     ORDER BY fire_at ASC LIMIT $3
		     FOR UPDATE SKIP LOCKED)
		 RETURNING reminder_id, title, body, fire_at, attempts, created_at`,
		now, now.Add(lease), limit,
	)
	if err != nil {
		return nil, err
	}

	reminders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.ScheduledReminder, error) {
		reminder := &models.ScheduledReminder{}
		err := row.Scan(&reminder.ReminderID, &reminder.Title, &reminder.Body, &reminder.FireAt,
			&reminder.Attempts, &reminder.CreatedAt)
		return reminder, err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].FireAt.Before(reminders[j].FireAt) })
	return reminders, nil
}

// MarkDelivered removes a delivered reminder. A row rescheduled since it was
// read has a different fire time and is kept.
func (r *ReminderRepository) MarkDelivered(ctx context.Context, reminder *models.ScheduledReminder) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM scheduled_reminders WHERE reminder_id = $1 AND fire_at = $2`,
		reminder.ReminderID, reminder.FireAt,
	)
	return err
}

// IncrementAttempts records a failed delivery and releases the lease so the
// next dispatch retries the reminder.
func (r *ReminderRepository) IncrementAttempts(ctx context.Context, reminderID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE scheduled_reminders SET attempts = attempts + 1, claimed_until = NULL
		 WHERE reminder_id = $1`,
		reminderID,
	)
	return err
}
