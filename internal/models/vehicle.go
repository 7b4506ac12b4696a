package models

import (
	"time"

	"github.com/google/uuid"
)

type Vehicle struct {
	VehicleID uuid.UUID `json:"vehicle_id"`
	Name      string    `json:"name"`
	Odometer  int       `json:"odometer"` // Only ever raised, see VehicleRepository.UpdateOdometer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
