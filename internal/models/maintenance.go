package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimeUnit is the unit of a maintenance item's time interval.
type TimeUnit string

const (
	TimeUnitMonths TimeUnit = "months"
	TimeUnitYears  TimeUnit = "years"
)

// ParseTimeUnit accepts the short forms used in bot commands.
func ParseTimeUnit(s string) (TimeUnit, bool) {
	switch s {
	case "m", "mo", "month", "months":
		return TimeUnitMonths, true
	case "y", "yr", "year", "years":
		return TimeUnitYears, true
	default:
		return "", false
	}
}

// ReminderKind identifies one of the two reminder axes of an item.
type ReminderKind string

const (
	ReminderDistance ReminderKind = "distance"
	ReminderTime     ReminderKind = "time"
)

// MaintenanceItem is a recurring maintenance definition such as "Oil Change".
type MaintenanceItem struct {
	ItemID           uuid.UUID `json:"item_id"`
	VehicleID        uuid.UUID `json:"vehicle_id"`
	Name             string    `json:"name"`
	DistanceInterval int       `json:"distance_interval"` // 0 = not distance-tracked
	TimeInterval     int       `json:"time_interval"`     // 0 = not time-tracked
	TimeUnit         TimeUnit  `json:"time_unit"`

	// Stable per-kind identifiers shared by every device syncing this item.
	DistanceReminderID string `json:"distance_reminder_id"`
	TimeReminderID     string `json:"time_reminder_id"`

	DistanceReminderScheduled bool       `json:"distance_reminder_scheduled"`
	TimeReminderScheduled     bool       `json:"time_reminder_scheduled"`
	TimeReminderAt            *time.Time `json:"time_reminder_at"` // Fire point of the outstanding time reminder

	Records   []CompletionRecord `json:"records"`
	CreatedAt time.Time          `json:"created_at"`
}

// CompletionRecord is one logged service of a maintenance item.
type CompletionRecord struct {
	RecordID    uuid.UUID `json:"record_id"`
	ItemID      uuid.UUID `json:"item_id"`
	CompletedAt time.Time `json:"completed_at"`
	Odometer    int       `json:"odometer"`
	Cost        *float64  `json:"cost"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

// LastRecord returns the most recent completion record, or nil if the item
// has never been serviced. Records with the same date are ordered by odometer.
func (m *MaintenanceItem) LastRecord() *CompletionRecord {
	var last *CompletionRecord
	for i := range m.Records {
		r := &m.Records[i]
		if last == nil || r.CompletedAt.After(last.CompletedAt) ||
			(r.CompletedAt.Equal(last.CompletedAt) && r.Odometer > last.Odometer) {
			last = r
		}
	}
	return last
}

// SortRecords orders records newest first.
func (m *MaintenanceItem) SortRecords() {
	sort.SliceStable(m.Records, func(i, j int) bool {
		if m.Records[i].CompletedAt.Equal(m.Records[j].CompletedAt) {
			return m.Records[i].Odometer > m.Records[j].Odometer
		}
		return m.Records[i].CompletedAt.After(m.Records[j].CompletedAt)
	})
}

func (m *MaintenanceItem) ReminderID(kind ReminderKind) string {
	if kind == ReminderDistance {
		return m.DistanceReminderID
	}
	return m.TimeReminderID
}

// ReminderIDs returns both identifiers, skipping unset ones.
func (m *MaintenanceItem) ReminderIDs() []string {
	var ids []string
	for _, id := range []string{m.DistanceReminderID, m.TimeReminderID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsTracked reports whether at least one interval is set.
func (m *MaintenanceItem) IsTracked() bool {
	return m.DistanceInterval > 0 || m.TimeInterval > 0
}

// ReminderState is the persisted scheduling state of an item's reminders.
type ReminderState struct {
	DistanceScheduled bool
	TimeScheduled     bool
	TimeAt            *time.Time
}

func (m *MaintenanceItem) ReminderState() ReminderState {
	var at *time.Time
	if m.TimeReminderAt != nil {
		t := *m.TimeReminderAt
		at = &t
	}
	return ReminderState{
		DistanceScheduled: m.DistanceReminderScheduled,
		TimeScheduled:     m.TimeReminderScheduled,
		TimeAt:            at,
	}
}

// Equal compares two states, treating fire points as instants.
func (s ReminderState) Equal(o ReminderState) bool {
	if s.DistanceScheduled != o.DistanceScheduled || s.TimeScheduled != o.TimeScheduled {
		return false
	}
	if s.TimeAt == nil || o.TimeAt == nil {
		return s.TimeAt == nil && o.TimeAt == nil
	}
	return s.TimeAt.Equal(*o.TimeAt)
}
