package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/due"
	"github.com/hray3182/Upkeep/internal/models"
	"github.com/hray3182/Upkeep/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

type MockVehicleStore struct{ mock.Mock }

func (m *MockVehicleStore) Create(ctx context.Context, vehicle *models.Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *MockVehicleStore) GetByID(ctx context.Context, vehicleID uuid.UUID) (*models.Vehicle, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleStore) GetByName(ctx context.Context, name string) (*models.Vehicle, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleStore) List(ctx context.Context) ([]*models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Vehicle), args.Error(1)
}

func (m *MockVehicleStore) UpdateOdometer(ctx context.Context, vehicle *models.Vehicle, odometer int) error {
	args := m.Called(ctx, vehicle, odometer)
	if args.Error(0) == nil && odometer > vehicle.Odometer {
		vehicle.Odometer = odometer
	}
	return args.Error(0)
}

func (m *MockVehicleStore) Rename(ctx context.Context, vehicleID uuid.UUID, name string) error {
	args := m.Called(ctx, vehicleID, name)
	return args.Error(0)
}

func (m *MockVehicleStore) Delete(ctx context.Context, vehicleID uuid.UUID) error {
	args := m.Called(ctx, vehicleID)
	return args.Error(0)
}

type MockMaintenanceStore struct{ mock.Mock }

func (m *MockMaintenanceStore) CreateItem(ctx context.Context, item *models.MaintenanceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockMaintenanceStore) GetItem(ctx context.Context, itemID uuid.UUID) (*models.MaintenanceItem, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceItem), args.Error(1)
}

func (m *MockMaintenanceStore) GetItemByName(ctx context.Context, vehicleID uuid.UUID, name string) (*models.MaintenanceItem, error) {
	args := m.Called(ctx, vehicleID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceItem), args.Error(1)
}

func (m *MockMaintenanceStore) ListItems(ctx context.Context, vehicleID uuid.UUID) ([]*models.MaintenanceItem, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MaintenanceItem), args.Error(1)
}

func (m *MockMaintenanceStore) UpdateIntervals(ctx context.Context, item *models.MaintenanceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockMaintenanceStore) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockMaintenanceStore) AddRecord(ctx context.Context, record *models.CompletionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockMaintenanceStore) DeleteRecord(ctx context.Context, recordID uuid.UUID) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

type MockSettingsStore struct{ mock.Mock }

func (m *MockSettingsStore) Get(ctx context.Context) (*models.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settings), args.Error(1)
}

func (m *MockSettingsStore) Update(ctx context.Context, settings *models.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockSettingsStore) LinkChat(ctx context.Context, chatID *int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MockScheduler struct{ mock.Mock }

func (m *MockScheduler) Evaluate(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) error {
	args := m.Called(ctx, vehicle, item)
	return args.Error(0)
}

func (m *MockScheduler) IntervalsChanged(ctx context.Context, vehicle *models.Vehicle, item *models.MaintenanceItem) error {
	args := m.Called(ctx, vehicle, item)
	return args.Error(0)
}

func (m *MockScheduler) Forget(ctx context.Context, items ...*models.MaintenanceItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

type recordingPublisher struct{ entities []string }

func (p *recordingPublisher) Publish(ctx context.Context, entity, entityID string) error {
	p.entities = append(p.entities, entity)
	return nil
}

type fixture struct {
	vehicles    *MockVehicleStore
	maintenance *MockMaintenanceStore
	settings    *MockSettingsStore
	scheduler   *MockScheduler
	publisher   *recordingPublisher
	svc         *Service
	now         time.Time
}

func newFixture() *fixture {
	f := &fixture{
		vehicles:    new(MockVehicleStore),
		maintenance: new(MockMaintenanceStore),
		settings:    new(MockSettingsStore),
		scheduler:   new(MockScheduler),
		publisher:   &recordingPublisher{},
	}
	clock := clockz.NewFakeClock()
	f.now = clock.Now()
	f.svc = New(f.vehicles, f.maintenance, f.settings, f.scheduler, f.publisher, clock, nil)
	return f
}

func TestLogService_RaisesOdometerAndEvaluates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Name: "Civic", Odometer: 14000}
	item := &models.MaintenanceItem{ItemID: uuid.New(), VehicleID: vehicle.VehicleID, Name: "Oil change", DistanceInterval: 5000}

	f.maintenance.On("AddRecord", ctx, mock.AnythingOfType("*models.CompletionRecord")).Return(nil)
	f.vehicles.On("UpdateOdometer", ctx, vehicle, 15000).Return(nil)
	f.scheduler.On("Evaluate", ctx, vehicle, item).Return(nil)

	record, err := f.svc.LogService(ctx, vehicle, item, time.Time{}, 15000, nil, " synthetic ")

	require.NoError(t, err)
	assert.Equal(t, "synthetic", record.Note)
	assert.True(t, f.now.Equal(record.CompletedAt))
	assert.Equal(t, 15000, vehicle.Odometer)
	require.NotNil(t, item.LastRecord())
	assert.Equal(t, 15000, item.LastRecord().Odometer)
	assert.Equal(t, []string{"completion_records"}, f.publisher.entities)
	f.maintenance.AssertExpectations(t)
	f.vehicles.AssertExpectations(t)
	f.scheduler.AssertExpectations(t)
}

func TestLogService_LowerReadingKeepsOdometer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Odometer: 20000}
	item := &models.MaintenanceItem{ItemID: uuid.New()}

	f.maintenance.On("AddRecord", ctx, mock.Anything).Return(nil)
	f.scheduler.On("Evaluate", ctx, vehicle, item).Return(nil)

	_, err := f.svc.LogService(ctx, vehicle, item, f.now, 18000, nil, "")

	require.NoError(t, err)
	f.vehicles.AssertNotCalled(t, "UpdateOdometer", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogService_RejectsNegativeOdometer(t *testing.T) {
	f := newFixture()
	_, err := f.svc.LogService(context.Background(), &models.Vehicle{}, &models.MaintenanceItem{}, f.now, -1, nil, "")
	assert.ErrorIs(t, err, ErrInvalidOdometer)
}

func TestUpdateIntervals_CancelsThroughScheduler(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New()}
	item := &models.MaintenanceItem{ItemID: uuid.New(), DistanceInterval: 5000, TimeUnit: models.TimeUnitMonths}

	var order []string
	f.maintenance.On("UpdateIntervals", ctx, item).Return(nil).Run(func(mock.Arguments) { order = append(order, "update") })
	f.scheduler.On("IntervalsChanged", ctx, vehicle, item).Return(nil).Run(func(mock.Arguments) { order = append(order, "reschedule") })

	err := f.svc.UpdateIntervals(ctx, vehicle, item, 7500, 12, models.TimeUnitMonths)

	require.NoError(t, err)
	assert.Equal(t, []string{"update", "reschedule"}, order)
	assert.Equal(t, 7500, item.DistanceInterval)
	assert.Equal(t, 12, item.TimeInterval)
}

func TestUpdateIntervals_StoreErrorSkipsScheduler(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := &models.MaintenanceItem{ItemID: uuid.New()}
	f.maintenance.On("UpdateIntervals", ctx, item).Return(errors.New("connection reset"))

	err := f.svc.UpdateIntervals(ctx, &models.Vehicle{}, item, 1000, 0, "")

	assert.Error(t, err)
	f.scheduler.AssertNotCalled(t, "IntervalsChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddItem_DuplicateName(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Name: "Civic"}
	f.maintenance.On("CreateItem", ctx, mock.MatchedBy(func(item *models.MaintenanceItem) bool {
		return item.Name == "oil change" && item.VehicleID == vehicle.VehicleID
	})).Return(repository.ErrDuplicate)

	item, err := f.svc.AddItem(ctx, vehicle, " oil change ", 5000, 6, models.TimeUnitMonths)

	assert.Nil(t, item)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Empty(t, f.publisher.entities)
	f.maintenance.AssertExpectations(t)
}

func TestUpdateIntervals_RenameToExistingName(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := &models.MaintenanceItem{ItemID: uuid.New(), Name: "Tires"}
	f.maintenance.On("UpdateIntervals", ctx, item).Return(repository.ErrDuplicate)

	err := f.svc.UpdateIntervals(ctx, &models.Vehicle{}, item, 40000, 4, models.TimeUnitYears)

	assert.ErrorIs(t, err, repository.ErrDuplicate)
	f.scheduler.AssertNotCalled(t, "IntervalsChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteItem_ForgetsBeforeDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := &models.MaintenanceItem{ItemID: uuid.New(), DistanceReminderID: "d", TimeReminderID: "t"}

	var order []string
	f.scheduler.On("Forget", ctx, []*models.MaintenanceItem{item}).Return(nil).Run(func(mock.Arguments) { order = append(order, "forget") })
	f.maintenance.On("DeleteItem", ctx, item.ItemID).Return(nil).Run(func(mock.Arguments) { order = append(order, "delete") })

	require.NoError(t, f.svc.DeleteItem(ctx, item))
	assert.Equal(t, []string{"forget", "delete"}, order)
}

func TestDeleteItem_CancelFailureKeepsItem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := &models.MaintenanceItem{ItemID: uuid.New()}
	f.scheduler.On("Forget", ctx, []*models.MaintenanceItem{item}).Return(errors.New("outbox unavailable"))

	assert.Error(t, f.svc.DeleteItem(ctx, item))
	f.maintenance.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}

func TestDeleteVehicle_ForgetsAllItems(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New()}
	items := []*models.MaintenanceItem{{ItemID: uuid.New()}, {ItemID: uuid.New()}}

	f.maintenance.On("ListItems", ctx, vehicle.VehicleID).Return(items, nil)
	f.scheduler.On("Forget", ctx, items).Return(nil)
	f.vehicles.On("Delete", ctx, vehicle.VehicleID).Return(nil)

	require.NoError(t, f.svc.DeleteVehicle(ctx, vehicle))
	f.scheduler.AssertExpectations(t)
	f.vehicles.AssertExpectations(t)
}

func TestRecordOdometer_EvaluatesEveryItem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Odometer: 100}
	items := []*models.MaintenanceItem{{ItemID: uuid.New()}, {ItemID: uuid.New()}}

	f.vehicles.On("UpdateOdometer", ctx, vehicle, 250).Return(nil)
	f.maintenance.On("ListItems", ctx, vehicle.VehicleID).Return(items, nil)
	f.scheduler.On("Evaluate", ctx, vehicle, mock.Anything).Return(nil)

	odo, err := f.svc.RecordOdometer(ctx, vehicle, 250)

	require.NoError(t, err)
	assert.Equal(t, 250, odo)
	f.scheduler.AssertNumberOfCalls(t, "Evaluate", 2)
}

func TestUpdateThresholds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	settings := models.NewDefaultSettings()

	f.settings.On("Get", ctx).Return(settings, nil)
	f.settings.On("Update", ctx, settings).Return(nil)

	got, err := f.svc.UpdateThresholds(ctx, 300, 7)

	require.NoError(t, err)
	assert.Equal(t, 300, got.DistanceThreshold)
	assert.Equal(t, 7, got.DaysThreshold)

	_, err = f.svc.UpdateThresholds(ctx, -1, 7)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestAddVehicle_Validates(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AddVehicle(context.Background(), "  ", 0)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestVehicleStatus_PriorityOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Odometer: 14700}

	overdue := &models.MaintenanceItem{ItemID: uuid.New(), Name: "Brake fluid", TimeInterval: 1, TimeUnit: models.TimeUnitYears,
		Records: []models.CompletionRecord{{CompletedAt: f.now.AddDate(-1, 0, -5), Odometer: 2000}}}
	soon := &models.MaintenanceItem{ItemID: uuid.New(), Name: "Oil change", DistanceInterval: 5000,
		Records: []models.CompletionRecord{{CompletedAt: f.now.AddDate(0, -3, 0), Odometer: 10000}}}
	untracked := &models.MaintenanceItem{ItemID: uuid.New(), Name: "Air filter", DistanceInterval: 15000}

	f.maintenance.On("ListItems", ctx, vehicle.VehicleID).Return([]*models.MaintenanceItem{untracked, soon, overdue}, nil)
	f.settings.On("Get", ctx).Return(models.NewDefaultSettings(), nil)

	statuses, err := f.svc.VehicleStatus(ctx, vehicle)

	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, "Brake fluid", statuses[0].Item.Name)
	assert.Equal(t, due.Overdue, statuses[0].Status)
	assert.Equal(t, "Oil change", statuses[1].Item.Name)
	assert.Equal(t, due.Due, statuses[1].Status)
	assert.Equal(t, "Air filter", statuses[2].Item.Name)
	assert.Equal(t, "Not logged yet", statuses[2].Description)

	next, err := f.svc.NextDue(ctx, vehicle)
	require.NoError(t, err)
	assert.Equal(t, overdue, next.Item)
}

func TestFindVehicle_SingleVehicleByDefault(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	civic := &models.Vehicle{VehicleID: uuid.New(), Name: "Civic"}

	f.vehicles.On("List", ctx).Return([]*models.Vehicle{civic}, nil).Once()
	got, err := f.svc.FindVehicle(ctx, " ")
	require.NoError(t, err)
	assert.Same(t, civic, got)

	f.vehicles.On("List", ctx).Return([]*models.Vehicle{civic, {Name: "Bike"}}, nil).Once()
	_, err = f.svc.FindVehicle(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	f.vehicles.On("GetByName", ctx, "civic").Return(civic, nil)
	got, err = f.svc.FindVehicle(ctx, "civic")
	require.NoError(t, err)
	assert.Same(t, civic, got)
}

func TestUndoLastRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Odometer: 15000}
	older := models.CompletionRecord{RecordID: uuid.New(), CompletedAt: f.now.AddDate(0, -6, 0), Odometer: 10000}
	newer := models.CompletionRecord{RecordID: uuid.New(), CompletedAt: f.now, Odometer: 15000}
	item := &models.MaintenanceItem{ItemID: uuid.New(), Records: []models.CompletionRecord{newer, older}}

	f.maintenance.On("DeleteRecord", ctx, newer.RecordID).Return(nil)
	f.scheduler.On("Evaluate", ctx, vehicle, item).Return(nil)

	removed, err := f.svc.UndoLastRecord(ctx, vehicle, item)

	require.NoError(t, err)
	assert.Equal(t, newer.RecordID, removed.RecordID)
	require.Len(t, item.Records, 1)
	assert.Equal(t, older.RecordID, item.LastRecord().RecordID)
	assert.Equal(t, 15000, vehicle.Odometer)
	f.scheduler.AssertExpectations(t)
}

func TestUndoLastRecord_NothingLogged(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UndoLastRecord(context.Background(), &models.Vehicle{}, &models.MaintenanceItem{})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestRenameVehicle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vehicle := &models.Vehicle{VehicleID: uuid.New(), Name: "Civic"}
	f.vehicles.On("Rename", ctx, vehicle.VehicleID, "Daily").Return(nil)

	require.NoError(t, f.svc.RenameVehicle(ctx, vehicle, " Daily "))
	assert.Equal(t, "Daily", vehicle.Name)
	assert.Equal(t, []string{"vehicles"}, f.publisher.entities)

	assert.ErrorIs(t, f.svc.RenameVehicle(ctx, vehicle, ""), ErrInvalidName)
}
