package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/models"
)

type VehicleRepository struct {
	db *database.DB
}

func NewVehicleRepository(db *database.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO vehicles (name, odometer)
		 VALUES ($1, $2)
		 RETURNING vehicle_id, created_at, updated_at`,
		vehicle.Name, vehicle.Odometer,
	).Scan(&vehicle.VehicleID, &vehicle.CreatedAt, &vehicle.UpdatedAt)
}

func (r *VehicleRepository) GetByID(ctx context.Context, vehicleID uuid.UUID) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT vehicle_id, name, odometer, created_at, updated_at
		 FROM vehicles WHERE vehicle_id = $1`,
		vehicleID,
	).Scan(&vehicle.VehicleID, &vehicle.Name, &vehicle.Odometer, &vehicle.CreatedAt, &vehicle.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return vehicle, nil
}

// GetByName matches case-insensitively; used by bot commands.
func (r *VehicleRepository) GetByName(ctx context.Context, name string) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT vehicle_id, name, odometer, created_at, updated_at
		 FROM vehicles WHERE LOWER(name) = LOWER($1)
		 ORDER BY created_at ASC LIMIT 1`,
		name,
	).Scan(&vehicle.VehicleID, &vehicle.Name, &vehicle.Odometer, &vehicle.CreatedAt, &vehicle.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return vehicle, nil
}

func (r *VehicleRepository) List(ctx context.Context) ([]*models.Vehicle, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT vehicle_id, name, odometer, created_at, updated_at
		 FROM vehicles ORDER BY name ASC, vehicle_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		vehicle := &models.Vehicle{}
		if err := rows.Scan(&vehicle.VehicleID, &vehicle.Name, &vehicle.Odometer,
			&vehicle.CreatedAt, &vehicle.UpdatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, rows.Err()
}

// UpdateOdometer raises the stored reading to odometer. A lower reading,
// e.g. from a stale device, leaves the stored value unchanged. The resulting
// reading is written back into vehicle.
func (r *VehicleRepository) UpdateOdometer(ctx context.Context, vehicle *models.Vehicle, odometer int) error {
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE vehicles SET odometer = GREATEST(odometer, $1), updated_at = CURRENT_TIMESTAMP
		 WHERE vehicle_id = $2
		 RETURNING odometer, updated_at`,
		odometer, vehicle.VehicleID,
	).Scan(&vehicle.Odometer, &vehicle.UpdatedAt)
	return notFound(err)
}

func (r *VehicleRepository) Rename(ctx context.Context, vehicleID uuid.UUID, name string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE vehicles SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE vehicle_id = $2`,
		name, vehicleID,
	)
	return err
}

// Delete removes the vehicle with its items and records.
func (r *VehicleRepository) Delete(ctx context.Context, vehicleID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM vehicles WHERE vehicle_id = $1`,
		vehicleID,
	)
	return err
}
