package models

import "time"

const (
	DefaultDistanceThreshold = 500
	DefaultDaysThreshold     = 14
)

// DistanceUnit is only used for display; the engine is unit-agnostic.
type DistanceUnit string

const (
	DistanceMiles      DistanceUnit = "mi"
	DistanceKilometers DistanceUnit = "km"
)

// Settings holds the household-wide reminder settings.
type Settings struct {
	DistanceThreshold int          `json:"distance_threshold"` // Distance before due that counts as "due"
	DaysThreshold     int          `json:"days_threshold"`     // Days before due that counts as "due"
	DistanceUnit      DistanceUnit `json:"distance_unit"`
	RemindersEnabled  bool         `json:"reminders_enabled"`
	ChatID            *int64       `json:"chat_id"` // Linked Telegram chat, nil until /start
	UpdatedAt         time.Time    `json:"updated_at"`
}

// NewDefaultSettings creates Settings with default values
func NewDefaultSettings() *Settings {
	return &Settings{
		DistanceThreshold: DefaultDistanceThreshold,
		DaysThreshold:     DefaultDaysThreshold,
		DistanceUnit:      DistanceMiles,
		RemindersEnabled:  true,
		UpdatedAt:         time.Now(),
	}
}

// IsLinked reports whether a Telegram chat has been linked.
func (s *Settings) IsLinked() bool {
	return s.ChatID != nil && *s.ChatID != 0
}
