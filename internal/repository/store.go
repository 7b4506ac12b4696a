package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/models"
)

// Store bundles the repositories behind the reminder scheduler's persistence
// interface.
type Store struct {
	Vehicles    *VehicleRepository
	Maintenance *MaintenanceRepository
	Settings    *SettingsRepository
	Reminders   *ReminderRepository
}

func NewStore(db *database.DB) *Store {
	return &Store{
		Vehicles:    NewVehicleRepository(db),
		Maintenance: NewMaintenanceRepository(db),
		Settings:    NewSettingsRepository(db),
		Reminders:   NewReminderRepository(db),
	}
}

func (s *Store) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	return s.Vehicles.List(ctx)
}

func (s *Store) ListItems(ctx context.Context, vehicleID uuid.UUID) ([]*models.MaintenanceItem, error) {
	return s.Maintenance.ListItems(ctx, vehicleID)
}

func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (*models.MaintenanceItem, error) {
	return s.Maintenance.GetItem(ctx, itemID)
}

func (s *Store) SaveReminderState(ctx context.Context, item *models.MaintenanceItem, prev models.ReminderState) (bool, error) {
	return s.Maintenance.SaveReminderState(ctx, item, prev)
}
