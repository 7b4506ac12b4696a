package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("DATABASE_URI")
	if uri == "" {
		t.Skip("DATABASE_URI not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, uri, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE vehicles, scheduled_reminders CASCADE`)
	require.NoError(t, err)

	return NewStore(db)
}

func TestVehicleRepository_UpdateOdometerOnlyRaises(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	vehicle := &models.Vehicle{Name: "Civic", Odometer: 12000}
	require.NoError(t, store.Vehicles.Create(ctx, vehicle))

	require.NoError(t, store.Vehicles.UpdateOdometer(ctx, vehicle, 12500))
	assert.Equal(t, 12500, vehicle.Odometer)

	require.NoError(t, store.Vehicles.UpdateOdometer(ctx, vehicle, 11000))
	assert.Equal(t, 12500, vehicle.Odometer)

	got, err := store.Vehicles.GetByName(ctx, "civic")
	require.NoError(t, err)
	assert.Equal(t, 12500, got.Odometer)
}

func TestMaintenanceRepository_ItemsWithRecords(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	vehicle := &models.Vehicle{Name: "Civic", Odometer: 15000}
	require.NoError(t, store.Vehicles.Create(ctx, vehicle))

	item := &models.MaintenanceItem{VehicleID: vehicle.VehicleID, Name: "Oil change", DistanceInterval: 5000, TimeInterval: 6}
	require.NoError(t, store.Maintenance.CreateItem(ctx, item))
	assert.NotEmpty(t, item.DistanceReminderID)
	assert.NotEmpty(t, item.TimeReminderID)

	cost := 49.95
	older := &models.CompletionRecord{ItemID: item.ItemID, CompletedAt: time.Now().AddDate(0, -6, 0), Odometer: 9000}
	newer := &models.CompletionRecord{ItemID: item.ItemID, CompletedAt: time.Now(), Odometer: 14000, Cost: &cost}
	require.NoError(t, store.Maintenance.AddRecord(ctx, older))
	require.NoError(t, store.Maintenance.AddRecord(ctx, newer))

	items, err := store.ListItems(ctx, vehicle.VehicleID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Records, 2)
	assert.Equal(t, 14000, items[0].LastRecord().Odometer)
	require.NotNil(t, items[0].Records[0].Cost)
	assert.InDelta(t, cost, *items[0].Records[0].Cost, 0.001)
}

func TestMaintenanceRepository_SaveReminderState(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	vehicle := &models.Vehicle{Name: "Civic"}
	require.NoError(t, store.Vehicles.Create(ctx, vehicle))
	item := &models.MaintenanceItem{VehicleID: vehicle.VehicleID, Name: "Tires", DistanceInterval: 40000}
	require.NoError(t, store.Maintenance.CreateItem(ctx, item))

	at := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Microsecond)
	prev := item.ReminderState()
	item.DistanceReminderScheduled = true
	item.TimeReminderScheduled = true
	item.TimeReminderAt = &at
	saved, err := store.SaveReminderState(ctx, item, prev)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := store.GetItem(ctx, item.ItemID)
	require.NoError(t, err)
	assert.True(t, got.DistanceReminderScheduled)
	assert.True(t, got.TimeReminderScheduled)
	require.NotNil(t, got.TimeReminderAt)
	assert.True(t, at.Equal(*got.TimeReminderAt))
	assert.Equal(t, item.TimeReminderID, got.TimeReminderID)

	// A writer still holding the old state loses.
	stale := *got
	stale.DistanceReminderScheduled = false
	stale.TimeReminderScheduled = false
	stale.TimeReminderAt = nil
	saved, err = store.SaveReminderState(ctx, &stale, prev)
	require.NoError(t, err)
	assert.False(t, saved)

	got, err = store.GetItem(ctx, item.ItemID)
	require.NoError(t, err)
	assert.True(t, got.DistanceReminderScheduled)
	require.NotNil(t, got.TimeReminderAt)
}

func TestMaintenanceRepository_DuplicateItemName(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	civic := &models.Vehicle{Name: "Civic"}
	require.NoError(t, store.Vehicles.Create(ctx, civic))
	jazz := &models.Vehicle{Name: "Jazz"}
	require.NoError(t, store.Vehicles.Create(ctx, jazz))

	require.NoError(t, store.Maintenance.CreateItem(ctx, &models.MaintenanceItem{VehicleID: civic.VehicleID, Name: "Oil change"}))

	err := store.Maintenance.CreateItem(ctx, &models.MaintenanceItem{VehicleID: civic.VehicleID, Name: "OIL CHANGE"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Other vehicles may reuse the name.
	require.NoError(t, store.Maintenance.CreateItem(ctx, &models.MaintenanceItem{VehicleID: jazz.VehicleID, Name: "Oil change"}))

	tires := &models.MaintenanceItem{VehicleID: civic.VehicleID, Name: "Tires"}
	require.NoError(t, store.Maintenance.CreateItem(ctx, tires))
	tires.Name = "oil change"
	assert.ErrorIs(t, store.Maintenance.UpdateIntervals(ctx, tires), ErrDuplicate)
}

func TestReminderRepository_UpsertReplaces(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := &models.ScheduledReminder{ReminderID: "r-1", Title: "Civic: Oil change", Body: "Due in 300 mi", FireAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Reminders.Upsert(ctx, first))

	second := &models.ScheduledReminder{ReminderID: "r-1", Title: "Civic: Oil change", Body: "Due in 200 mi", FireAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.Reminders.Upsert(ctx, second))

	due, err := store.Reminders.Claim(ctx, time.Now(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Due in 200 mi", due[0].Body)

	require.NoError(t, store.Reminders.MarkDelivered(ctx, due[0]))
	_, err = store.Reminders.Get(ctx, "r-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminderRepository_ClaimIsExclusive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, id := range []string{"r-1", "r-2"} {
		require.NoError(t, store.Reminders.Upsert(ctx, &models.ScheduledReminder{ReminderID: id, Title: "t", Body: "b", FireAt: now.Add(-time.Minute)}))
	}

	first, err := store.Reminders.Claim(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := store.Reminders.Claim(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, second)

	// A failed attempt releases its claim; an expired lease frees the rest.
	require.NoError(t, store.Reminders.IncrementAttempts(ctx, "r-1"))
	retry, err := store.Reminders.Claim(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, "r-1", retry[0].ReminderID)
	assert.Equal(t, 1, retry[0].Attempts)

	expired, err := store.Reminders.Claim(ctx, now.Add(time.Minute), time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, expired, 2)
}

func TestReminderRepository_RescheduleReleasesClaim(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	reminder := &models.ScheduledReminder{ReminderID: "r-1", Title: "t", Body: "b", FireAt: now.Add(-time.Minute)}
	require.NoError(t, store.Reminders.Upsert(ctx, reminder))
	claimed, err := store.Reminders.Claim(ctx, now, time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	reminder.FireAt = now.Add(-time.Second)
	require.NoError(t, store.Reminders.Upsert(ctx, reminder))

	// The stale claim's delivery leaves the rescheduled row in place.
	require.NoError(t, store.Reminders.MarkDelivered(ctx, claimed[0]))
	again, err := store.Reminders.Claim(ctx, now, time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.True(t, reminder.FireAt.Equal(again[0].FireAt))
}

func TestSettingsRepository_LinkChat(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Settings.LinkChat(ctx, nil))
	settings, err := store.Settings.Get(ctx)
	require.NoError(t, err)
	assert.False(t, settings.IsLinked())

	chatID := int64(4242)
	require.NoError(t, store.Settings.LinkChat(ctx, &chatID))
	settings, err = store.Settings.Get(ctx)
	require.NoError(t, err)
	assert.True(t, settings.IsLinked())

	settings.DaysThreshold = 30
	require.NoError(t, store.Settings.Update(ctx, settings))
	settings, err = store.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, settings.DaysThreshold)
}
