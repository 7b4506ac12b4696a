package repository

import (
	"context"

	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/models"
)

type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings row, creating the default row if it is missing.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	settings := &models.Settings{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO settings (id) VALUES (1)
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING distance_threshold, days_threshold, distance_unit, reminders_enabled, chat_id, updated_at`,
	).Scan(
		&settings.DistanceThreshold,
		&settings.DaysThreshold,
		&settings.DistanceUnit,
		&settings.RemindersEnabled,
		&settings.ChatID,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Update writes the user-editable fields. The linked chat is changed only
// through LinkChat.
func (r *SettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	return r.db.Pool.QueryRow(ctx,
		`UPDATE settings SET distance_threshold = $1, days_threshold = $2, distance_unit = $3,
		 reminders_enabled = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = 1
		 RETURNING updated_at`,
		settings.DistanceThreshold, settings.DaysThreshold, settings.DistanceUnit, settings.RemindersEnabled,
	).Scan(&settings.UpdatedAt)
}

// LinkChat sets the Telegram chat that receives reminders. A nil chatID
// unlinks it.
func (r *SettingsRepository) LinkChat(ctx context.Context, chatID *int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE settings SET chat_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
		chatID,
	)
	return err
}
