// Package due derives due points, due status and urgency ranking for
// maintenance items. Everything here is pure: callers pass the odometer,
// the current time and the thresholds.
package due

import (
	"time"

	"github.com/hray3182/Upkeep/internal/models"
)

// Status is the tri-state due classification of a maintenance item.
type Status int

const (
	NotDue Status = iota
	Due
	Overdue
)

func (s Status) String() string {
	switch s {
	case Due:
		return "due"
	case Overdue:
		return "overdue"
	default:
		return "not_due"
	}
}

// Thresholds are the lead windows in which an upcoming due point counts as
// "due" rather than "not due".
type Thresholds struct {
	Distance int
	Days     int
}

// ThresholdsFrom extracts thresholds from stored settings.
func ThresholdsFrom(s *models.Settings) Thresholds {
	if s == nil {
		return Thresholds{Distance: models.DefaultDistanceThreshold, Days: models.DefaultDaysThreshold}
	}
	return Thresholds{Distance: s.DistanceThreshold, Days: s.DaysThreshold}
}

// Result is the full computation for one item. Absent axes leave the
// pointer nil and contribute NotDue.
type Result struct {
	OdometerDue    *int
	DateDue        *time.Time
	DistanceStatus Status
	TimeStatus     Status
	Status         Status
}

// OdometerDue returns the odometer reading at which the item is next due.
func OdometerDue(item *models.MaintenanceItem) (int, bool) {
	if item.DistanceInterval <= 0 {
		return 0, false
	}
	last := item.LastRecord()
	if last == nil {
		return 0, false
	}
	return last.Odometer + item.DistanceInterval, true
}

// DateDue returns the date at which the item is next due.
func DateDue(item *models.MaintenanceItem) (time.Time, bool) {
	if item.TimeInterval <= 0 {
		return time.Time{}, false
	}
	last := item.LastRecord()
	if last == nil {
		return time.Time{}, false
	}
	return AddInterval(last.CompletedAt, item.TimeInterval, item.TimeUnit), true
}

// AddInterval advances t by n months or years. The day of month is clamped
// to the end of the target month, so Jan 31 + 1 month is the last day of
// February.
func AddInterval(t time.Time, n int, unit models.TimeUnit) time.Time {
	if unit == models.TimeUnitYears {
		return addMonths(t, 12*n)
	}
	return addMonths(t, n)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// DaysUntil returns the whole days from now to t, truncated toward zero.
func DaysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

// Calculate computes due points and status for item.
func Calculate(item *models.MaintenanceItem, odometer int, now time.Time, th Thresholds) Result {
	var res Result

	if odo, ok := OdometerDue(item); ok {
		res.OdometerDue = &odo
		res.DistanceStatus = distanceStatus(odo-odometer, th.Distance)
	}

	if date, ok := DateDue(item); ok {
		res.DateDue = &date
		res.TimeStatus = timeStatus(now, date, th.Days)
	}

	res.Status = combine(res.DistanceStatus, res.TimeStatus)
	return res
}

// StatusOf is the status-only form of Calculate.
func StatusOf(item *models.MaintenanceItem, odometer int, now time.Time, th Thresholds) Status {
	return Calculate(item, odometer, now, th).Status
}

func distanceStatus(delta, threshold int) Status {
	switch {
	case delta < 0:
		return Overdue
	case delta <= threshold:
		return Due
	default:
		return NotDue
	}
}

func timeStatus(now, dateDue time.Time, threshold int) Status {
	if dateDue.Before(now) {
		return Overdue
	}
	if DaysUntil(now, dateDue) <= threshold {
		return Due
	}
	return NotDue
}

// combine lets Overdue dominate Due, and Due dominate NotDue.
func combine(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}
