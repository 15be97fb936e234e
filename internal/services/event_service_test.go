package services

import (
	"context"
	"testing"
	"time"

	"example.com/venueops/services/booking/config"
	"example.com/venueops/services/booking/internal/metrics"
	"example.com/venueops/services/booking/internal/models"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock repositories for testing
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) Save(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) FindOverlapCandidates(ctx context.Context, tenantID uuid.UUID, ref models.ResourceRef, startDate, endDate time.Time) ([]models.Event, error) {
	args := m.Called(ctx, tenantID, ref, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) CreateLines(ctx context.Context, lines []models.SupplyLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockEventRepository) SaveLine(ctx context.Context, line *models.SupplyLine) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

func (m *MockEventRepository) DeleteLinesByEvent(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type MockSupplyRepository struct {
	mock.Mock
}

func (m *MockSupplyRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Supply, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Supply), args.Error(1)
}

func (m *MockSupplyRepository) DecrementStock(ctx context.Context, tenantID, id uuid.UUID, qty int) (bool, error) {
	args := m.Called(ctx, tenantID, id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockSupplyRepository) IncrementStock(ctx context.Context, tenantID, id uuid.UUID, qty int) (bool, error) {
	args := m.Called(ctx, tenantID, id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockSupplyRepository) AppendMovement(ctx context.Context, movement *models.StockMovement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockSupplyRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.SupplyStatus) error {
	args := m.Called(ctx, tenantID, id, status)
	return args.Error(0)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Resource, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}

func (m *MockResourceRepository) LockForBooking(ctx context.Context, tenantID uuid.UUID, ref models.ResourceRef) error {
	args := m.Called(ctx, tenantID, ref)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Upsert(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SumNetCompleted(ctx context.Context, tenantID, eventID uuid.UUID) (float64, error) {
	args := m.Called(ctx, tenantID, eventID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockPaymentRepository) GetUnapplied(ctx context.Context, limit int) ([]models.Payment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) MarkApplied(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPaymentRepository) IncrementApplyAttempts(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// stubTxRunner runs the function directly; repository mocks don't care about
// transaction boundaries.
type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestEventService(events *MockEventRepository, supplies *MockSupplyRepository, clients *MockClientRepository, resources *MockResourceRepository, payments *MockPaymentRepository) *EventService {
	tracer, _ := tracing.NewTracer(config.TracingConfig{})
	return &EventService{
		events:    events,
		supplies:  supplies,
		clients:   clients,
		resources: resources,
		payments:  payments,
		tx:        stubTxRunner{},
		metrics:   metrics.NewMetrics(),
		tracer:    tracer,
	}
}

func testDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateEventComputesPricingAndSummary(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockClients := new(MockClientRepository)
	mockResources := new(MockResourceRepository)

	tenantID := uuid.New()
	clientID := uuid.New()

	mockClients.On("GetByID", mock.Anything, tenantID, clientID).Return(&models.Client{ID: clientID, TenantID: tenantID}, nil)
	mockResources.On("LockForBooking", mock.Anything, tenantID, models.NoResource()).Return(nil)
	mockEvents.On("FindOverlapCandidates", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything).Return([]models.Event{}, nil)
	mockEvents.On("Create", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), mockClients, mockResources, new(MockPaymentRepository))

	input := &CreateEventInput{
		ClientID:     clientID,
		Title:        "Wedding reception",
		StartDate:    testDate(2026, 6, 1),
		StartTime:    "10:00",
		EndDate:      testDate(2026, 6, 1),
		EndTime:      "16:00",
		BasePrice:    1000,
		Services:     []models.ServiceItem{{Name: "Sound system", Price: 200}},
		Discount:     10,
		DiscountKind: models.DiscountKindPercent,
		TaxRate:      19,
	}

	event, err := service.CreateEvent(context.Background(), tenantID, input)

	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, models.EventStatusPending, event.Status)
	require.Equal(t, 1200.00, event.Subtotal)
	require.Equal(t, 120.00, event.DiscountAmount)
	require.Equal(t, 205.20, event.TaxAmount)
	require.Equal(t, 1285.20, event.Total)
	require.Equal(t, models.PaymentStateUnpaid, event.PaymentStatus)
	require.Equal(t, 1285.20, event.AmountDue)

	mockEvents.AssertExpectations(t)
	mockClients.AssertExpectations(t)
	mockResources.AssertExpectations(t)
}

func TestCreateEventRejectsSlotConflict(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockClients := new(MockClientRepository)
	mockResources := new(MockResourceRepository)

	tenantID := uuid.New()
	clientID := uuid.New()
	existingID := uuid.New()

	mockClients.On("GetByID", mock.Anything, tenantID, clientID).Return(&models.Client{ID: clientID}, nil)
	mockResources.On("LockForBooking", mock.Anything, tenantID, models.NoResource()).Return(nil)
	mockEvents.On("FindOverlapCandidates", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything).Return([]models.Event{
		{
			ID:        existingID,
			StartDate: testDate(2026, 6, 1),
			StartTime: "11:00",
			EndDate:   testDate(2026, 6, 1),
			EndTime:   "13:00",
		},
	}, nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), mockClients, mockResources, new(MockPaymentRepository))

	input := &CreateEventInput{
		ClientID:  clientID,
		Title:     "Team offsite",
		StartDate: testDate(2026, 6, 1),
		StartTime: "10:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
	}

	event, err := service.CreateEvent(context.Background(), tenantID, input)

	require.Nil(t, event)
	var conflict *models.SlotConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, existingID, conflict.EventID)
	mockEvents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateEventRejectsInvertedWindow(t *testing.T) {
	service := newTestEventService(new(MockEventRepository), new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	input := &CreateEventInput{
		ClientID:  uuid.New(),
		Title:     "Backwards booking",
		StartDate: testDate(2026, 6, 1),
		StartTime: "14:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
	}

	_, err := service.CreateEvent(context.Background(), uuid.New(), input)
	require.ErrorIs(t, err, models.ErrInvalidTimeRange)
}

func TestCreateEventRequiresResourceIDForScopedBooking(t *testing.T) {
	service := newTestEventService(new(MockEventRepository), new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	input := &CreateEventInput{
		ClientID:     uuid.New(),
		Title:        "Room booking",
		ResourceKind: models.ResourceKindRoom,
		StartDate:    testDate(2026, 6, 1),
		StartTime:    "10:00",
		EndDate:      testDate(2026, 6, 1),
		EndTime:      "12:00",
	}

	_, err := service.CreateEvent(context.Background(), uuid.New(), input)
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "resource_id", validation.Field)
}

func TestUpdateEventRejectsTerminalState(t *testing.T) {
	mockEvents := new(MockEventRepository)

	tenantID := uuid.New()
	eventID := uuid.New()

	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(&models.Event{
		ID:       eventID,
		TenantID: tenantID,
		Status:   models.EventStatusCancelled,
	}, nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	title := "New title"
	_, err := service.UpdateEvent(context.Background(), tenantID, eventID, &UpdateEventInput{Title: &title})

	var state *models.StateError
	require.ErrorAs(t, err, &state)
	mockEvents.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateEventRerunsCollisionGateOnTimingChange(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockResources := new(MockResourceRepository)

	tenantID := uuid.New()
	eventID := uuid.New()
	otherID := uuid.New()

	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(&models.Event{
		ID:        eventID,
		TenantID:  tenantID,
		Status:    models.EventStatusPending,
		StartDate: testDate(2026, 6, 1),
		StartTime: "10:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
	}, nil)
	mockResources.On("LockForBooking", mock.Anything, tenantID, models.NoResource()).Return(nil)
	mockEvents.On("FindOverlapCandidates", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything).Return([]models.Event{
		// The event itself is a candidate and must be excluded
		{
			ID:        eventID,
			StartDate: testDate(2026, 6, 1),
			StartTime: "10:00",
			EndDate:   testDate(2026, 6, 1),
			EndTime:   "12:00",
		},
		{
			ID:        otherID,
			StartDate: testDate(2026, 6, 1),
			StartTime: "13:00",
			EndDate:   testDate(2026, 6, 1),
			EndTime:   "15:00",
		},
	}, nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), mockResources, new(MockPaymentRepository))

	newEnd := "14:00"
	_, err := service.UpdateEvent(context.Background(), tenantID, eventID, &UpdateEventInput{EndTime: &newEnd})

	var conflict *models.SlotConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, otherID, conflict.EventID)
	mockEvents.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateEventSkipsCollisionGateWhenTimingUnchanged(t *testing.T) {
	mockEvents := new(MockEventRepository)

	tenantID := uuid.New()
	eventID := uuid.New()

	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(&models.Event{
		ID:        eventID,
		TenantID:  tenantID,
		Status:    models.EventStatusPending,
		StartDate: testDate(2026, 6, 1),
		StartTime: "10:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
	}, nil)
	mockEvents.On("Save", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	title := "Renamed"
	updated, err := service.UpdateEvent(context.Background(), tenantID, eventID, &UpdateEventInput{Title: &title})

	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	mockEvents.AssertNotCalled(t, "FindOverlapCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEventRejectsCancellationPatch(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockSupplies := new(MockSupplyRepository)

	tenantID := uuid.New()
	eventID := uuid.New()

	event := &models.Event{
		ID:        eventID,
		TenantID:  tenantID,
		Status:    models.EventStatusConfirmed,
		StartDate: testDate(2026, 6, 1),
		StartTime: "10:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
		SupplyLines: []models.SupplyLine{
			{
				ID:           uuid.New(),
				SupplyID:     uuid.New(),
				Status:       models.SupplyLineAllocated,
				RequestedQty: 5,
				AllocatedQty: 5,
			},
		},
	}
	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(event, nil)

	service := newTestEventService(mockEvents, mockSupplies, new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	// A status patch skips the supply return; cancellation must go through
	// CancelEvent.
	cancelled := models.EventStatusCancelled
	_, err := service.UpdateEvent(context.Background(), tenantID, eventID, &UpdateEventInput{Status: &cancelled})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "status", validation.Field)
	require.Equal(t, models.EventStatusConfirmed, event.Status)
	require.Equal(t, models.SupplyLineAllocated, event.SupplyLines[0].Status)
	require.Equal(t, 5, event.SupplyLines[0].AllocatedQty)
	mockSupplies.AssertNotCalled(t, "IncrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockEvents.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateEventRejectsLineReplacementAfterAllocation(t *testing.T) {
	mockEvents := new(MockEventRepository)

	tenantID := uuid.New()
	eventID := uuid.New()

	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(&models.Event{
		ID:        eventID,
		TenantID:  tenantID,
		Status:    models.EventStatusConfirmed,
		StartDate: testDate(2026, 6, 1),
		StartTime: "10:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
		SupplyLines: []models.SupplyLine{
			{ID: uuid.New(), Status: models.SupplyLineAllocated, AllocatedQty: 5},
		},
	}, nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	lines := []SupplyLineInput{{SupplyID: uuid.New(), Quantity: 2}}
	_, err := service.UpdateEvent(context.Background(), tenantID, eventID, &UpdateEventInput{SupplyLines: &lines})

	var state *models.StateError
	require.ErrorAs(t, err, &state)
	mockEvents.AssertNotCalled(t, "DeleteLinesByEvent", mock.Anything, mock.Anything)
}

func TestCancelEventReturnsAllocatedStock(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockSupplies := new(MockSupplyRepository)
	mockPayments := new(MockPaymentRepository)

	tenantID := uuid.New()
	eventID := uuid.New()
	supplyID := uuid.New()
	actorID := uuid.New()

	event := &models.Event{
		ID:        eventID,
		TenantID:  tenantID,
		Status:    models.EventStatusConfirmed,
		StartDate: testDate(2026, 6, 1),
		StartTime: "10:00",
		EndDate:   testDate(2026, 6, 1),
		EndTime:   "12:00",
		SupplyLines: []models.SupplyLine{
			{
				ID:           uuid.New(),
				EventID:      eventID,
				SupplyID:     supplyID,
				TenantID:     tenantID,
				Status:       models.SupplyLineAllocated,
				RequestedQty: 3,
				AllocatedQty: 3,
			},
		},
	}

	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(event, nil)
	mockSupplies.On("IncrementStock", mock.Anything, tenantID, supplyID, 3).Return(true, nil)
	mockSupplies.On("AppendMovement", mock.Anything, mock.AnythingOfType("*models.StockMovement")).Return(nil)
	mockSupplies.On("GetByID", mock.Anything, tenantID, supplyID).Return(&models.Supply{
		ID:            supplyID,
		TenantID:      tenantID,
		StockQuantity: 3,
		Status:        models.SupplyStatusActive,
	}, nil)
	mockEvents.On("SaveLine", mock.Anything, mock.AnythingOfType("*models.SupplyLine")).Return(nil)
	mockPayments.On("SumNetCompleted", mock.Anything, tenantID, eventID).Return(0.0, nil)
	mockEvents.On("Save", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)

	service := newTestEventService(mockEvents, mockSupplies, new(MockClientRepository), new(MockResourceRepository), mockPayments)

	cancelled, err := service.CancelEvent(context.Background(), tenantID, eventID, actorID)

	require.NoError(t, err)
	require.Equal(t, models.EventStatusCancelled, cancelled.Status)
	require.Equal(t, models.SupplyLineCancelled, cancelled.SupplyLines[0].Status)
	require.Equal(t, 0, cancelled.SupplyLines[0].AllocatedQty)

	movement := mockSupplies.Calls[1].Arguments.Get(1).(*models.StockMovement)
	require.Equal(t, models.MovementReturn, movement.Kind)
	require.Equal(t, 3, movement.Delta)

	mockEvents.AssertExpectations(t)
	mockSupplies.AssertExpectations(t)
}

func TestArchiveEventKeepsAllocatedStock(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockSupplies := new(MockSupplyRepository)

	tenantID := uuid.New()
	eventID := uuid.New()
	actorID := uuid.New()

	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(&models.Event{
		ID:       eventID,
		TenantID: tenantID,
		Status:   models.EventStatusConfirmed,
		SupplyLines: []models.SupplyLine{
			{ID: uuid.New(), Status: models.SupplyLineAllocated, AllocatedQty: 2},
		},
	}, nil)
	mockEvents.On("Save", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)

	service := newTestEventService(mockEvents, mockSupplies, new(MockClientRepository), new(MockResourceRepository), new(MockPaymentRepository))

	archived, err := service.ArchiveEvent(context.Background(), tenantID, eventID, actorID)

	require.NoError(t, err)
	require.True(t, archived.IsArchived)
	require.NotNil(t, archived.ArchivedAt)
	require.Equal(t, actorID, *archived.ArchivedBy)
	// Archiving never touches the ledger
	mockSupplies.AssertNotCalled(t, "IncrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordPaymentDerivesSummary(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockPayments := new(MockPaymentRepository)

	tenantID := uuid.New()
	eventID := uuid.New()
	paymentID := uuid.New()

	event := &models.Event{
		ID:       eventID,
		TenantID: tenantID,
		Status:   models.EventStatusConfirmed,
		Total:    1000,
	}

	mockPayments.On("Upsert", mock.Anything, mock.AnythingOfType("*models.Payment")).Return(nil)
	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(event, nil)
	mockPayments.On("SumNetCompleted", mock.Anything, tenantID, eventID).Return(600.0, nil)
	mockEvents.On("Save", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)
	mockPayments.On("MarkApplied", mock.Anything, paymentID).Return(nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), mockPayments)

	err := service.RecordPayment(context.Background(), &PaymentMessage{
		PaymentID: paymentID,
		TenantID:  tenantID,
		EventID:   eventID,
		Type:      models.PaymentTypeIncome,
		Amount:    620,
		Fees:      20,
		Status:    models.PaymentStatusCompleted,
	})

	require.NoError(t, err)
	require.Equal(t, 600.00, event.PaidAmount)
	require.Equal(t, models.PaymentStatePartial, event.PaymentStatus)
	require.Equal(t, 400.00, event.AmountDue)

	upserted := mockPayments.Calls[0].Arguments.Get(1).(*models.Payment)
	require.Equal(t, 600.00, upserted.NetAmount)

	mockPayments.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestRecordPaymentSwallowsApplyFailure(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockPayments := new(MockPaymentRepository)

	tenantID := uuid.New()
	eventID := uuid.New()

	mockPayments.On("Upsert", mock.Anything, mock.AnythingOfType("*models.Payment")).Return(nil)
	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(nil, &models.NotFoundError{Entity: "event", ID: eventID})

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), mockPayments)

	// The payment is stored; summary derivation is retried by the worker.
	err := service.RecordPayment(context.Background(), &PaymentMessage{
		PaymentID: uuid.New(),
		TenantID:  tenantID,
		EventID:   eventID,
		Type:      models.PaymentTypeIncome,
		Amount:    100,
		Status:    models.PaymentStatusCompleted,
	})

	require.NoError(t, err)
	mockPayments.AssertNotCalled(t, "MarkApplied", mock.Anything, mock.Anything)
}

func TestApplyUnappliedPayments(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockPayments := new(MockPaymentRepository)

	tenantID := uuid.New()
	eventID := uuid.New()
	paymentID := uuid.New()

	event := &models.Event{ID: eventID, TenantID: tenantID, Total: 500}

	mockPayments.On("GetUnapplied", mock.Anything, 100).Return([]models.Payment{
		{ID: paymentID, TenantID: tenantID, EventID: eventID, NetAmount: 500},
	}, nil)
	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(event, nil)
	mockPayments.On("SumNetCompleted", mock.Anything, tenantID, eventID).Return(500.0, nil)
	mockEvents.On("Save", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)
	mockPayments.On("MarkApplied", mock.Anything, paymentID).Return(nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), mockPayments)

	err := service.ApplyUnappliedPayments(context.Background())

	require.NoError(t, err)
	require.Equal(t, models.PaymentStatePaid, event.PaymentStatus)
	mockPayments.AssertExpectations(t)
}

func TestApplyUnappliedPaymentsCountsFailedAttempts(t *testing.T) {
	mockEvents := new(MockEventRepository)
	mockPayments := new(MockPaymentRepository)

	tenantID := uuid.New()
	eventID := uuid.New()
	paymentID := uuid.New()

	// A payment against an event that does not exist can never apply; each
	// failed pass burns one retry so it eventually drops out of the set.
	mockPayments.On("GetUnapplied", mock.Anything, 100).Return([]models.Payment{
		{ID: paymentID, TenantID: tenantID, EventID: eventID, NetAmount: 100, ApplyAttempts: 3},
	}, nil)
	mockEvents.On("GetByID", mock.Anything, tenantID, eventID).Return(nil, &models.NotFoundError{Entity: "event", ID: eventID})
	mockPayments.On("IncrementApplyAttempts", mock.Anything, paymentID).Return(nil)

	service := newTestEventService(mockEvents, new(MockSupplyRepository), new(MockClientRepository), new(MockResourceRepository), mockPayments)

	err := service.ApplyUnappliedPayments(context.Background())

	require.NoError(t, err)
	mockPayments.AssertCalled(t, "IncrementApplyAttempts", mock.Anything, paymentID)
	mockPayments.AssertNotCalled(t, "MarkApplied", mock.Anything, mock.Anything)
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, validateTransition(models.EventStatusPending, models.EventStatusConfirmed))
	require.NoError(t, validateTransition(models.EventStatusConfirmed, models.EventStatusInProgress))
	require.NoError(t, validateTransition(models.EventStatusInProgress, models.EventStatusCompleted))
	require.NoError(t, validateTransition(models.EventStatusConfirmed, models.EventStatusCancelled))

	require.Error(t, validateTransition(models.EventStatusPending, models.EventStatusCompleted))
	require.Error(t, validateTransition(models.EventStatusCompleted, models.EventStatusConfirmed))
	require.Error(t, validateTransition(models.EventStatusCancelled, models.EventStatusPending))
}
