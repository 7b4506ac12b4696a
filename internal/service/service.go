// Package service implements the write-side maintenance operations used by
// the bot. Every write keeps the reminder scheduler's contract: interval
// edits cancel outstanding reminders, deletions forget them, and new
// completion records re-evaluate the affected item.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/due"
	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

var (
	ErrInvalidName     = errors.New("name must not be empty")
	ErrInvalidInterval = errors.New("intervals must not be negative")
	ErrInvalidOdometer = errors.New("odometer must not be negative")
	ErrNoRecords       = errors.New("no service logged yet")
)

type VehicleStore interface {
	Create(ctx context.Context, vehicle *models.Vehicle) error
	GetByID(ctx context.Context, vehicleID uuid.UUID) (*models.Vehicle, error)
	GetByName(ctx context.Context, name string) (*models.Vehicle, error)
	List(ctx context.Context) ([]*models.Vehicle, error)
	UpdateOdometer(ctx context.Context, vehicle *models.Vehicle, odometer int) error
	Rename(ctx context.Context, vehicleID uuid.UUID, name string) error
	Delete(ctx context.Context, vehicleID uuid.UUID) error
}

type MaintenanceStore interface {
	CreateItem(ctx context.Context, item *models.MaintenanceItem) error
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.MaintenanceItem, error)
	GetItemByName(ctx context.Context, vehicleID uuid.UUID, name string) (*models.MaintenanceItem, error)
	ListItems(ctx context.Context, vehicleID uuid.UUID) ([]*models.MaintenanceItem, error)
	UpdateIntervals(ctx context.Context, item *models.MaintenanceItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	AddRecord(ctx context.Context, record *models.CompletionRecord) error
	DeleteRecord(ctx context.Context, recordID uuid.UUID) error
}

type SettingsStore interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, settings *models.Settings) error
	LinkChat(ctx context.Context, chatID *int64) error
}

// Scheduler is the reminder scheduler's write-side API.
type Scheduler interface {
	Evaluate(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) error
	IntervalsChanged(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) error
	Forget(ctx context.Context, items ...*models.MaintenanceItem) error
}

// Publisher announces local writes to other devices.
type Publisher interface {
	Publish(ctx context.Context, entity, entityID string) error
}

type Service struct {
	vehicles    VehicleStore
	maintenance MaintenanceStore
	settings    SettingsStore
	scheduler   Scheduler
	publisher   Publisher
	clock       clockz.Clock
	logger      *zap.Logger
}

// New creates the service. publisher may be nil when no sync bus is
// configured.
func New(vehicles VehicleStore, maintenance MaintenanceStore, settings SettingsStore, scheduler Scheduler,
	publisher Publisher, clock clockz.Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Service{
		vehicles:    vehicles,
		maintenance: maintenance,
		settings:    settings,
		scheduler:   scheduler,
		publisher:   publisher,
		clock:       clock,
		logger:      logger.OrNop(log),
	}
}

func (s *Service) publish(ctx context.Context, entity string, id uuid.UUID) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, entity, id.String()); err != nil {
		s.logger.Warn("Failed to publish sync event", zap.String("entity", entity), zap.Error(err))
	}
}

func (s *Service) AddVehicle(ctx context.Context, name string, odometer int) (*models.Vehicle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if odometer < 0 {
		return nil, ErrInvalidOdometer
	}

	vehicle := &models.Vehicle{Name: name, Odometer: odometer}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	s.publish(ctx, "vehicles", vehicle.VehicleID)
	return vehicle, nil
}

func (s *Service) AddItem(ctx context.Context, vehicle *models.Vehicle, name string, distance, interval int, unit models.TimeUnit) (*models.MaintenanceItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if distance < 0 || interval < 0 {
		return nil, ErrInvalidInterval
	}

	item := &models.MaintenanceItem{
		VehicleID:        vehicle.VehicleID,
		Name:             name,
		DistanceInterval: distance,
		TimeInterval:     interval,
		TimeUnit:         unit,
	}
	if err := s.maintenance.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	s.publish(ctx, "maintenance_items", item.ItemID)
	return item, nil
}

// LogService records a completed service. A reading above the vehicle's
// odometer also raises the odometer.
func (s *Service) LogService(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem,
	completedAt time.Time, odometer int, cost *float64, note string) (*models.CompletionRecord, error) {
	if odometer < 0 {
		return nil, ErrInvalidOdometer
	}
	if completedAt.IsZero() {
		completedAt = s.clock.Now()
	}

	record := &models.CompletionRecord{
		ItemID:      item.ItemID,
		CompletedAt: completedAt,
		Odometer:    odometer,
		Cost:        cost,
		Note:        strings.TrimSpace(note),
	}
	if err := s.maintenance.AddRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to add record: %w", err)
	}

	if odometer > vehicle.Odometer {
		if err := s.vehicles.UpdateOdometer(ctx, vehicle, odometer); err != nil {
			return nil, fmt.Errorf("failed to update odometer: %w", err)
		}
	}

	item.Records = append(item.Records, *record)
	item.SortRecords()
	if err := s.scheduler.Evaluate(ctx, vehicle, item); err != nil {
		s.logger.Warn("Failed to evaluate reminders", zap.String("item_id", item.ItemID.String()), zap.Error(err))
	}

	s.publish(ctx, "completion_records", record.RecordID)
	return record, nil
}

// UndoLastRecord deletes the item's most recent record and re-evaluates the
// item. The vehicle's odometer is left as is.
func (s *Service) UndoLastRecord(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) (*models.CompletionRecord, error) {
	last := item.LastRecord()
	if last == nil {
		return nil, ErrNoRecords
	}
	removed := *last

	if err := s.maintenance.DeleteRecord(ctx, removed.RecordID); err != nil {
		return nil, fmt.Errorf("failed to delete record: %w", err)
	}

	records := item.Records[:0]
	for _, r := range item.Records {
		if r.RecordID != removed.RecordID {
			records = append(records, r)
		}
	}
	item.Records = records
	if err := s.scheduler.Evaluate(ctx, vehicle, item); err != nil {
		s.logger.Warn("Failed to evaluate reminders", zap.String("item_id", item.ItemID.String()), zap.Error(err))
	}

	s.publish(ctx, "completion_records", removed.RecordID)
	return &removed, nil
}

// UpdateIntervals changes an item's intervals and cancels its outstanding
// reminders before any new scheduling decision.
func (s *Service) UpdateIntervals(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem, distance, interval int, unit models.TimeUnit) error {
	if distance < 0 || interval < 0 {
		return ErrInvalidInterval
	}

	item.DistanceInterval = distance
	item.TimeInterval = interval
	if unit != "" {
		item.TimeUnit = unit
	}
	if err := s.maintenance.UpdateIntervals(ctx, item); err != nil {
		return fmt.Errorf("failed to update intervals: %w", err)
	}

	if err := s.scheduler.IntervalsChanged(ctx, vehicle, item); err != nil {
		s.logger.Warn("Failed to reschedule reminders", zap.String("item_id", item.ItemID.String()), zap.Error(err))
	}
	s.publish(ctx, "maintenance_items", item.ItemID)
	return nil
}

// DeleteItem cancels the item's reminders, then deletes it with its records.
func (s *Service) DeleteItem(ctx context.Context, item *models.MaintenanceItem) error {
	if err := s.scheduler.Forget(ctx, item); err != nil {
		return err
	}
	if err := s.maintenance.DeleteItem(ctx, item.ItemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	s.publish(ctx, "maintenance_items", item.ItemID)
	return nil
}

func (s *Service) RenameVehicle(ctx context.Context, vehicle *models.Vehicle, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if err := s.vehicles.Rename(ctx, vehicle.VehicleID, name); err != nil {
		return fmt.Errorf("failed to rename vehicle: %w", err)
	}
	vehicle.Name = name
	s.publish(ctx, "vehicles", vehicle.VehicleID)
	return nil
}

func (s *Service) DeleteVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	items, err := s.maintenance.ListItems(ctx, vehicle.VehicleID)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}
	if err := s.scheduler.Forget(ctx, items...); err != nil {
		return err
	}
	if err := s.vehicles.Delete(ctx, vehicle.VehicleID); err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	s.publish(ctx, "vehicles", vehicle.VehicleID)
	return nil
}

// RecordOdometer raises the vehicle's odometer and re-evaluates its items.
// It returns the stored reading, which is unchanged for a lower value.
func (s *Service) RecordOdometer(ctx context.Context, vehicle *models.Vehicle, odometer int) (int, error) {
	if odometer < 0 {
		return 0, ErrInvalidOdometer
	}
	if err := s.vehicles.UpdateOdometer(ctx, vehicle, odometer); err != nil {
		return 0, fmt.Errorf("failed to update odometer: %w", err)
	}

	items, err := s.maintenance.ListItems(ctx, vehicle.VehicleID)
	if err != nil {
		return vehicle.Odometer, fmt.Errorf("failed to list items: %w", err)
	}
	for _, item := range items {
		if err := s.scheduler.Evaluate(ctx, vehicle, item); err != nil {
			s.logger.Warn("Failed to evaluate reminders", zap.String("item_id", item.ItemID.String()), zap.Error(err))
		}
	}

	s.publish(ctx, "vehicles", vehicle.VehicleID)
	return vehicle.Odometer, nil
}

// UpdateThresholds changes the due thresholds. Reminders follow on the next
// reevaluation pass, which the settings change triggers.
func (s *Service) UpdateThresholds(ctx context.Context, distance, days int) (*models.Settings, error) {
	if distance < 0 || days < 0 {
		return nil, ErrInvalidInterval
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings.DistanceThreshold = distance
	settings.DaysThreshold = days
	if err := s.settings.Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	s.publish(ctx, "settings", uuid.Nil)
	return settings, nil
}

func (s *Service) LinkChat(ctx context.Context, chatID int64) error {
	if err := s.settings.LinkChat(ctx, &chatID); err != nil {
		return fmt.Errorf("failed to link chat: %w", err)
	}
	s.publish(ctx, "settings", uuid.Nil)
	return nil
}

// ItemStatus is the read model of one item for display.
type ItemStatus struct {
	Item        *models.MaintenanceItem
	Status      due.Status
	Description string
}

// VehicleStatus returns every item of the vehicle in priority order.
func (s *Service) VehicleStatus(ctx context.Context, vehicle *models.Vehicle) ([]ItemStatus, error) {
	items, err := s.maintenance.ListItems(ctx, vehicle.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("Failed to load settings, using defaults", zap.Error(err))
		settings = models.NewDefaultSettings()
	}

	now := s.clock.Now()
	th := due.ThresholdsFrom(settings)

	var statuses []ItemStatus
	for _, est := range due.Rank(items, vehicle.Odometer, now) {
		statuses = append(statuses, ItemStatus{
			Item:        est.Item,
			Status:      due.StatusOf(est.Item, vehicle.Odometer, now, th),
			Description: due.Describe(est.Item, vehicle.Odometer, now, settings.DistanceUnit),
		})
	}
	return statuses, nil
}

// NextDue returns the most urgent item of the vehicle, or nil.
func (s *Service) NextDue(ctx context.Context, vehicle *models.Vehicle) (*ItemStatus, error) {
	statuses, err := s.VehicleStatus(ctx, vehicle)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return &statuses[0], nil
}

func (s *Service) Vehicles(ctx context.Context) ([]*models.Vehicle, error) {
	return s.vehicles.List(ctx)
}

// FindVehicle looks a vehicle up by name, case-insensitively. With a single
// vehicle on record an empty name selects it.
func (s *Service) FindVehicle(ctx context.Context, name string) (*models.Vehicle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		vehicles, err := s.vehicles.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(vehicles) != 1 {
			return nil, ErrInvalidName
		}
		return vehicles[0], nil
	}
	return s.vehicles.GetByName(ctx, name)
}

func (s *Service) FindItem(ctx context.Context, vehicle *models.Vehicle, name string) (*models.MaintenanceItem, error) {
	return s.maintenance.GetItemByName(ctx, vehicle.VehicleID, strings.TrimSpace(name))
}

func (s *Service) Settings(ctx context.Context) (*models.Settings, error) {
	return s.settings.Get(ctx)
}
