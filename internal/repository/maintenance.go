package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/jackc/pgx/v5"
)

type MaintenanceRepository struct {
	db *database.DB
}

func NewMaintenanceRepository(db *database.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

const itemColumns = `item_id, vehicle_id, name, distance_interval, time_interval, time_unit,
	distance_reminder_id, time_reminder_id, distance_reminder_scheduled, time_reminder_scheduled,
	time_reminder_at, created_at`

func scanItem(row pgx.Row) (*models.MaintenanceItem, error) {
	item := &models.MaintenanceItem{}
	err := row.Scan(&item.ItemID, &item.VehicleID, &item.Name, &item.DistanceInterval, &item.TimeInterval,
		&item.TimeUnit, &item.DistanceReminderID, &item.TimeReminderID, &item.DistanceReminderScheduled,
		&item.TimeReminderScheduled, &item.TimeReminderAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CreateItem inserts a new item. Both reminder identifiers are assigned here
// and never change afterwards. A name already used on the vehicle, in any
// case, yields ErrDuplicate.
func (r *MaintenanceRepository) CreateItem(ctx context.Context, item *models.MaintenanceItem) error {
	if item.TimeUnit == "" {
		item.TimeUnit = models.TimeUnitMonths
	}
	if item.DistanceReminderID == "" {
		item.DistanceReminderID = uuid.NewString()
	}
	if item.TimeReminderID == "" {
		item.TimeReminderID = uuid.NewString()
	}

	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO maintenance_items (vehicle_id, name, distance_interval, time_interval, time_unit,
		 distance_reminder_id, time_reminder_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING item_id, created_at`,
		item.VehicleID, item.Name, item.DistanceInterval, item.TimeInterval, item.TimeUnit,
		item.DistanceReminderID, item.TimeReminderID,
	).Scan(&item.ItemID, &item.CreatedAt)
	return duplicate(err)
}

// GetItem returns the item with its records, newest first.
func (r *MaintenanceRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*models.MaintenanceItem, error) {
	item, err := scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM maintenance_items WHERE item_id = $1`,
		itemID,
	))
	if err != nil {
		return nil, notFound(err)
	}

	item.Records, err = r.ListRecords(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetItemByName matches case-insensitively within a vehicle.
func (r *MaintenanceRepository) GetItemByName(ctx context.Context, vehicleID uuid.UUID, name string) (*models.MaintenanceItem, error) {
	item, err := scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM maintenance_items
		 WHERE vehicle_id = $1 AND LOWER(name) = LOWER($2)
		 ORDER BY created_at ASC LIMIT 1`,
		vehicleID, name,
	))
	if err != nil {
		return nil, notFound(err)
	}

	item.Records, err = r.ListRecords(ctx, item.ItemID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns the vehicle's items with their completion records.
func (r *MaintenanceRepository) ListItems(ctx context.Context, vehicleID uuid.UUID) ([]*models.MaintenanceItem, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+itemColumns+` FROM maintenance_items
		 WHERE vehicle_id = $1 ORDER BY name ASC, item_id ASC`,
		vehicleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.MaintenanceItem
	byID := make(map[uuid.UUID]*models.MaintenanceItem)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		byID[item.ItemID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recRows, err := r.db.Pool.Query(ctx,
		`SELECT c.record_id, c.item_id, c.completed_at, c.odometer, c.cost, c.note, c.created_at
		 FROM completion_records c
		 JOIN maintenance_items m ON m.item_id = c.item_id
		 WHERE m.vehicle_id = $1
		 ORDER BY c.completed_at DESC, c.odometer DESC`,
		vehicleID,
	)
	if err != nil {
		return nil, err
	}
	defer recRows.Close()

	for recRows.Next() {
		rec, err := scanRecord(recRows)
		if err != nil {
			return nil, err
		}
		if item, ok := byID[rec.ItemID]; ok {
			item.Records = append(item.Records, *rec)
		}
	}
	return items, recRows.Err()
}

// UpdateIntervals changes the item definition. Reminder state is left to the
// reminder scheduler.
func (r *MaintenanceRepository) UpdateIntervals(ctx context.Context, item *models.MaintenanceItem) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE maintenance_items SET name = $1, distance_interval = $2, time_interval = $3, time_unit = $4
		 WHERE item_id = $5`,
		item.Name, item.DistanceInterval, item.TimeInterval, item.TimeUnit, item.ItemID,
	)
	if err != nil {
		return duplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveReminderState persists the reminder identifiers and flags only, and
// only while the stored flags still match prev. It reports false when another
// writer changed them first.
func (r *MaintenanceRepository) SaveReminderState(ctx context.Context, item *models.MaintenanceItem, prev models.ReminderState) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE maintenance_items SET distance_reminder_id = $1, time_reminder_id = $2,
		 distance_reminder_scheduled = $3, time_reminder_scheduled = $4, time_reminder_at = $5
		 WHERE item_id = $6 AND distance_reminder_scheduled = $7 AND time_reminder_scheduled = $8
		 AND time_reminder_at IS NOT DISTINCT FROM $9`,
		item.DistanceReminderID, item.TimeReminderID, item.DistanceReminderScheduled,
		item.TimeReminderScheduled, item.TimeReminderAt, item.ItemID,
		prev.DistanceScheduled, prev.TimeScheduled, prev.TimeAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *MaintenanceRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM maintenance_items WHERE item_id = $1`,
		itemID,
	)
	return err
}

func scanRecord(row pgx.Row) (*models.CompletionRecord, error) {
	rec := &models.CompletionRecord{}
	if err := row.Scan(&rec.RecordID, &rec.ItemID, &rec.CompletedAt, &rec.Odometer,
		&rec.Cost, &rec.Note, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *MaintenanceRepository) AddRecord(ctx context.Context, record *models.CompletionRecord) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO completion_records (item_id, completed_at, odometer, cost, note)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING record_id, created_at`,
		record.ItemID, record.CompletedAt, record.Odometer, record.Cost, record.Note,
	).Scan(&record.RecordID, &record.CreatedAt)
}

func (r *MaintenanceRepository) DeleteRecord(ctx context.Context, recordID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM completion_records WHERE record_id = $1`,
		recordID,
	)
	return err
}

// ListRecords returns the item's records, newest first.
func (r *MaintenanceRepository) ListRecords(ctx context.Context, itemID uuid.UUID) ([]models.CompletionRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT record_id, item_id, completed_at, odometer, cost, note, created_at
		 FROM completion_records WHERE item_id = $1
		 ORDER BY completed_at DESC, odometer DESC`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CompletionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
