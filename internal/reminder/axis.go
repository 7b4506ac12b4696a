package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/due"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/hray3182/Upkeep/internal/rrule"
	"go.uber.org/zap"
)

// syncDistance applies the distance-axis state machine. Distance cannot be
// mapped to a wall-clock time, so a near-term reminder is scheduled once the
// item enters the threshold window and is kept until the item leaves it.
func (s *Scheduler) syncDistance(ctx context.Context, e env, vehicle *models.Vehicle, item *models.MaintenanceItem, res due.Result) bool {
	changed := ensureID(&item.DistanceReminderID)

	inWindow := false
	overdue := false
	if res.OdometerDue != nil {
		delta := *res.OdometerDue - vehicle.Odometer
		inWindow = delta >= 0 && delta <= e.thresholds.Distance
		overdue = delta < 0
	}

	switch {
	case inWindow && !item.DistanceReminderScheduled:
		title, body := s.message(e, vehicle, item)
		if err := s.notifier.ScheduleAfter(ctx, item.DistanceReminderID, title, body, s.distanceDelay); err != nil {
			s.logFailure("Failed to schedule distance reminder", item, err)
			return changed
		}
		s.metrics.Scheduled(string(models.ReminderDistance))
		item.DistanceReminderScheduled = true
		return true

	case item.DistanceReminderScheduled && !inWindow && !overdue:
		if err := s.notifier.Cancel(ctx, []string{item.DistanceReminderID}); err != nil {
			s.logFailure("Failed to cancel distance reminder", item, err)
			return changed
		}
		s.metrics.Cancelled(string(models.ReminderDistance))
		item.DistanceReminderScheduled = false
		return true
	}

	return changed
}

// syncTime applies the time-axis state machine. A reminder whose fire time
// has passed is stale: it is cancelled and the flag cleared before the
// scheduling decision, so the axis can be rescheduled in the same call.
func (s *Scheduler) syncTime(ctx context.Context, e env, vehicle *models.Vehicle, item *models.MaintenanceItem, res due.Result) bool {
	changed := ensureID(&item.TimeReminderID)

	if item.TimeReminderScheduled && (item.TimeReminderAt == nil || !item.TimeReminderAt.After(e.now)) {
		if err := s.notifier.Cancel(ctx, []string{item.TimeReminderID}); err != nil {
			s.logger.Warn("Failed to cancel stale time reminder",
				zap.String("item_id", item.ItemID.String()),
				zap.Error(err))
		}
		s.metrics.Cancelled(string(models.ReminderTime))
		item.TimeReminderScheduled = false
		item.TimeReminderAt = nil
		changed = true
	}

	fireAt, precise, wanted := s.desiredTime(e, item, res)

	if !wanted {
		if !item.TimeReminderScheduled {
			return changed
		}
		if err := s.notifier.Cancel(ctx, []string{item.TimeReminderID}); err != nil {
			s.logFailure("Failed to cancel time reminder", item, err)
			return changed
		}
		s.metrics.Cancelled(string(models.ReminderTime))
		item.TimeReminderScheduled = false
		item.TimeReminderAt = nil
		return true
	}

	if item.TimeReminderScheduled {
		at := *item.TimeReminderAt
		switch {
		case precise && !fireAt.Equal(at):
		case !precise && fireAt.Before(at):
		default:
			return changed
		}
	}

	title, body := s.message(e, vehicle, item)
	if err := s.notifier.ScheduleAt(ctx, item.TimeReminderID, title, body, fireAt); err != nil {
		s.logFailure("Failed to schedule time reminder", item, err)
		return changed
	}
	s.metrics.Scheduled(string(models.ReminderTime))
	item.TimeReminderScheduled = true
	item.TimeReminderAt = &fireAt
	return true
}

// desiredTime returns when the time reminder should fire. precise is false
// for the next-day fallback used once the alert point has passed.
func (s *Scheduler) desiredTime(e env, item *models.MaintenanceItem, res due.Result) (fireAt time.Time, precise, wanted bool) {
	if res.DateDue == nil || res.DateDue.Before(e.now) {
		return time.Time{}, false, false
	}

	alert := res.DateDue.AddDate(0, 0, -e.thresholds.Days)
	if alert.After(e.now) {
		return alert.Truncate(time.Microsecond), true, true
	}

	next, err := rrule.NextDay(s.fallbackRule, e.now)
	if err != nil {
		s.logger.Warn("Invalid fallback rule, using next day",
			zap.String("rule", s.fallbackRule),
			zap.String("item_id", item.ItemID.String()),
			zap.Error(err))
		next = e.now.Add(24 * time.Hour)
	}
	return next.Truncate(time.Microsecond), false, true
}

func (s *Scheduler) message(e env, vehicle *models.Vehicle, item *models.MaintenanceItem) (string, string) {
	title := fmt.Sprintf("%s: %s", vehicle.Name, item.Name)
	body := due.Describe(item, vehicle.Odometer, e.now, e.unit)
	return title, body
}

func (s *Scheduler) logFailure(msg string, item *models.MaintenanceItem, err error) {
	s.logger.Error(msg,
		zap.String("item_id", item.ItemID.String()),
		zap.Error(err))
	s.metrics.Failure("notifier")
}

// ensureID assigns a stable identifier the first time an axis needs one.
func ensureID(id *string) bool {
	if *id != "" {
		return false
	}
	*id = uuid.NewString()
	return true
}
