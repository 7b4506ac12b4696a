// Package reminder keeps at most one outstanding reminder per maintenance
// item and reminder kind, matching the item's current due computation.
//
// Evaluation is idempotent: the per-kind identifiers stored on the item are
// stable, so re-scheduling replaces a pending reminder instead of adding a
// second one, and repeated evaluation without data changes issues no
// delivery calls at all.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/due"
	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/hray3182/Upkeep/internal/metrics"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/hray3182/Upkeep/internal/rrule"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Store is the persistence collaborator.
type Store interface {
	ListVehicles(ctx context.Context) ([]*models.Vehicle, error)
	// ListItems returns the vehicle's items with their completion records.
	ListItems(ctx context.Context, vehicleID uuid.UUID) ([]*models.MaintenanceItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.MaintenanceItem, error)
	// SaveReminderState stores the item's reminder state only if the stored
	// state still equals prev. It reports false when another writer got there
	// first.
	SaveReminderState(ctx context.Context, item *models.MaintenanceItem, prev models.ReminderState) (bool, error)
}

// Notifier is the reminder-delivery collaborator. Scheduling under an
// identifier that is already pending replaces the pending reminder.
type Notifier interface {
	IsAuthorized(ctx context.Context) (bool, error)
	ScheduleAt(ctx context.Context, id, title, body string, fireAt time.Time) error
	ScheduleAfter(ctx context.Context, id, title, body string, after time.Duration) error
	Cancel(ctx context.Context, ids []string) error
}

// SettingsSource provides the user's thresholds.
type SettingsSource interface {
	Get(ctx context.Context) (*models.Settings, error)
}

type Options struct {
	// FallbackRule is the RRULE used when a time reminder's alert point has
	// already passed; its first occurrence on the next day is used.
	FallbackRule string
	// DistanceDelay is the lead time of near-term distance reminders.
	DistanceDelay time.Duration
	Clock         clockz.Clock
	Metrics       *metrics.Metrics
}

type Scheduler struct {
	store    Store
	notifier Notifier
	settings SettingsSource
	logger   *zap.Logger
	metrics  *metrics.Metrics
	clock    clockz.Clock

	fallbackRule  string
	distanceDelay time.Duration

	// mu serializes writes to item reminder state across passes and
	// write-side callers.
	mu sync.Mutex
}

func New(store Store, notifier Notifier, settings SettingsSource, log *zap.Logger, opts Options) *Scheduler {
	s := &Scheduler{
		store:         store,
		notifier:      notifier,
		settings:      settings,
		logger:        logger.OrNop(log),
		metrics:       opts.Metrics,
		clock:         opts.Clock,
		fallbackRule:  opts.FallbackRule,
		distanceDelay: opts.DistanceDelay,
	}
	if s.clock == nil {
		s.clock = clockz.RealClock
	}
	if s.fallbackRule == "" {
		s.fallbackRule = rrule.DefaultFallbackRule
	}
	if s.distanceDelay <= 0 {
		s.distanceDelay = 5 * time.Second
	}
	return s
}

// Summary describes one evaluation pass.
type Summary struct {
	Vehicles  int
	Items     int
	Changed   int
	Failed    int
	Skipped   bool // true when delivery is not authorized
	StartedAt time.Time
}

// EvaluateAll runs the scheduler over every item of every vehicle.
func (s *Scheduler) EvaluateAll(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{StartedAt: s.clock.Now()}

	env, ok := s.prepare(ctx)
	if !ok {
		sum.Skipped = true
		return sum, nil
	}

	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list vehicles: %w", err)
	}

	for _, vehicle := range vehicles {
		sum.Vehicles++

		items, err := s.store.ListItems(ctx, vehicle.VehicleID)
		if err != nil {
			s.logger.Error("Failed to list maintenance items",
				zap.String("vehicle_id", vehicle.VehicleID.String()),
				zap.Error(err))
			s.metrics.Failure("list_items")
			sum.Failed++
			continue
		}

		for _, item := range items {
			sum.Items++
			changed, err := s.evaluate(ctx, env, vehicle, item)
			if err != nil {
				sum.Failed++
			}
			if changed {
				sum.Changed++
			}
		}
	}

	return sum, nil
}

// Evaluate runs the scheduler for a single item. The item is reloaded from
// the store first; the caller's copy is refreshed with the result.
func (s *Scheduler) Evaluate(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := s.prepare(ctx)
	if !ok {
		return nil
	}
	fresh, err := s.reload(ctx, item)
	if err != nil {
		return err
	}
	_, err = s.evaluate(ctx, env, vehicle, fresh)
	*item = *fresh
	return err
}

// IntervalsChanged must be called after an item's intervals were edited. Both
// outstanding reminders are cancelled before any new scheduling decision,
// since the old due points no longer apply.
func (s *Scheduler) IntervalsChanged(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, err := s.reload(ctx, item)
	if err != nil {
		return err
	}
	defer func() { *item = *fresh }()

	prev := fresh.ReminderState()
	if err := s.cancelAll(ctx, fresh); err != nil {
		return err
	}
	if _, err := s.save(ctx, fresh, prev); err != nil {
		return err
	}

	env, ok := s.prepare(ctx)
	if !ok {
		return nil
	}
	_, err = s.evaluate(ctx, env, vehicle, fresh)
	return err
}

// Forget cancels both reminders of an item that is about to be deleted.
func (s *Scheduler) Forget(ctx context.Context, items ...*models.MaintenanceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, item := range items {
		ids = append(ids, item.ReminderIDs()...)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.notifier.Cancel(ctx, ids); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return nil
}

// reload returns the stored version of item, so decisions never rest on a
// copy the caller has held across another pass.
func (s *Scheduler) reload(ctx context.Context, item *models.MaintenanceItem) (*models.MaintenanceItem, error) {
	fresh, err := s.store.GetItem(ctx, item.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload item %s: %w", item.ItemID, err)
	}
	return fresh, nil
}

func (s *Scheduler) cancelAll(ctx context.Context, item *models.MaintenanceItem) error {
	if ids := item.ReminderIDs(); len(ids) > 0 {
		if err := s.notifier.Cancel(ctx, ids); err != nil {
			return fmt.Errorf("failed to cancel reminders for %s: %w", item.ItemID, err)
		}
	}
	if item.DistanceReminderScheduled {
		s.metrics.Cancelled(string(models.ReminderDistance))
	}
	if item.TimeReminderScheduled {
		s.metrics.Cancelled(string(models.ReminderTime))
	}
	item.DistanceReminderScheduled = false
	item.TimeReminderScheduled = false
	item.TimeReminderAt = nil
	return nil
}

// env is the per-evaluation input shared by all items.
type env struct {
	now        time.Time
	thresholds due.Thresholds
	unit       models.DistanceUnit
}

// prepare loads settings and checks authorization. When delivery is not
// authorized no scheduling happens and flags are left as they are; a later
// pass retries.
func (s *Scheduler) prepare(ctx context.Context) (env, bool) {
	authorized, err := s.notifier.IsAuthorized(ctx)
	if err != nil {
		s.logger.Warn("Failed to check reminder authorization", zap.Error(err))
		return env{}, false
	}
	if !authorized {
		s.logger.Info("Reminder delivery not authorized, skipping scheduling")
		return env{}, false
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("Failed to load settings, using defaults", zap.Error(err))
		settings = models.NewDefaultSettings()
	}

	return env{
		now:        s.clock.Now(),
		thresholds: due.ThresholdsFrom(settings),
		unit:       settings.DistanceUnit,
	}, true
}

func (s *Scheduler) evaluate(ctx context.Context, e env, vehicle *models.Vehicle, item *models.MaintenanceItem) (bool, error) {
	prev := item.ReminderState()
	res := due.Calculate(item, vehicle.Odometer, e.now, e.thresholds)

	distChanged := s.syncDistance(ctx, e, vehicle, item, res)
	timeChanged := s.syncTime(ctx, e, vehicle, item, res)

	if !distChanged && !timeChanged {
		return false, nil
	}
	return s.save(ctx, item, prev)
}

// save writes the item's reminder state on top of prev. A lost race is not an
// error: the winner's state stands and the next pass reconciles against it.
func (s *Scheduler) save(ctx context.Context, item *models.MaintenanceItem, prev models.ReminderState) (bool, error) {
	ok, err := s.store.SaveReminderState(ctx, item, prev)
	if err != nil {
		s.logger.Error("Failed to save reminder state",
			zap.String("item_id", item.ItemID.String()),
			zap.Error(err))
		s.metrics.Failure("save_state")
		return true, err
	}
	if !ok {
		s.logger.Warn("Reminder state changed concurrently, keeping stored state",
			zap.String("item_id", item.ItemID.String()))
		s.metrics.Failure("state_conflict")
		return false, nil
	}
	return true, nil
}
