package services

import (
	"context"
	"encoding/json"
	"time"

	"example.com/venueops/services/booking/internal/billing"
	"example.com/venueops/services/booking/internal/cache"
	"example.com/venueops/services/booking/internal/metrics"
	"example.com/venueops/services/booking/internal/models"
	"example.com/venueops/services/booking/internal/repositories"
	"example.com/venueops/services/booking/internal/scheduling"
	"example.com/venueops/services/booking/internal/search"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// EventRepository is the event persistence surface the services depend on
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error)
	Save(ctx context.Context, event *models.Event) error
	FindOverlapCandidates(ctx context.Context, tenantID uuid.UUID, ref models.ResourceRef, startDate, endDate time.Time) ([]models.Event, error)
	CreateLines(ctx context.Context, lines []models.SupplyLine) error
	SaveLine(ctx context.Context, line *models.SupplyLine) error
	DeleteLinesByEvent(ctx context.Context, eventID uuid.UUID) error
}

// SupplyRepository is the stock ledger surface the services depend on
type SupplyRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Supply, error)
	DecrementStock(ctx context.Context, tenantID, id uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, tenantID, id uuid.UUID, qty int) (bool, error)
	AppendMovement(ctx context.Context, movement *models.StockMovement) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.SupplyStatus) error
}

// ClientRepository resolves booking customers
type ClientRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error)
}

// ResourceRepository resolves bookable resources and locks booking scopes
type ResourceRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Resource, error)
	LockForBooking(ctx context.Context, tenantID uuid.UUID, ref models.ResourceRef) error
}

// PaymentRepository is the payment read-model surface
type PaymentRepository interface {
	Upsert(ctx context.Context, payment *models.Payment) error
	SumNetCompleted(ctx context.Context, tenantID, eventID uuid.UUID) (float64, error)
	GetUnapplied(ctx context.Context, limit int) ([]models.Payment, error)
	MarkApplied(ctx context.Context, id uuid.UUID) error
	IncrementApplyAttempts(ctx context.Context, id uuid.UUID) error
}

// EventIndexer pushes events into the search index
type EventIndexer interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	SearchEvents(ctx context.Context, tenantID string, text string, size int) ([]map[string]interface{}, error)
}

// EventService orchestrates the booking aggregate: validation, the collision
// gate, pricing, payment summaries and persistence run as one explicit
// pipeline per operation.
type EventService struct {
	events    EventRepository
	supplies  SupplyRepository
	clients   ClientRepository
	resources ResourceRepository
	payments  PaymentRepository
	tx        repositories.TxRunner
	cache     *cache.RedisCache
	search    EventIndexer
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewEventService creates a new event service
func NewEventService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *EventService {
	var indexer EventIndexer
	if elasticClient != nil {
		indexer = elasticClient
	}
	return &EventService{
		events:    repositories.NewEventRepository(db, readOnlyDB),
		supplies:  repositories.NewSupplyRepository(db, readOnlyDB),
		clients:   repositories.NewClientRepository(db, readOnlyDB),
		resources: repositories.NewResourceRepository(db, readOnlyDB),
		payments:  repositories.NewPaymentRepository(db, readOnlyDB),
		tx:        repositories.NewTxRunner(db),
		cache:     redisCache,
		search:    indexer,
		metrics:   metricsCollector,
		tracer:    tracer,
	}
}

// SupplyLineInput requests a quantity of one supply for an event
type SupplyLineInput struct {
	SupplyID uuid.UUID `json:"supply_id"`
	Quantity int       `json:"quantity"`
}

// CreateEventInput carries everything needed to book an event
type CreateEventInput struct {
	ClientID     uuid.UUID            `json:"client_id"`
	ResourceKind models.ResourceKind  `json:"resource_kind"`
	ResourceID   *uuid.UUID           `json:"resource_id"`
	Title        string               `json:"title"`
	Notes        string               `json:"notes"`
	StartDate    time.Time            `json:"start_date"`
	StartTime    string               `json:"start_time"`
	EndDate      time.Time            `json:"end_date"`
	EndTime      string               `json:"end_time"`
	BasePrice    float64              `json:"base_price"`
	Services     []models.ServiceItem `json:"services"`
	Discount     float64              `json:"discount"`
	DiscountKind models.DiscountKind  `json:"discount_kind"`
	TaxRate      float64              `json:"tax_rate"`
	SupplyLines  []SupplyLineInput    `json:"supply_lines"`
}

func (in *CreateEventInput) resourceRef() (models.ResourceRef, error) {
	switch in.ResourceKind {
	case "", models.ResourceKindNone:
		if in.ResourceID != nil {
			return models.ResourceRef{}, models.NewValidationError("resource_kind", "required when resource_id is set")
		}
		return models.NoResource(), nil
	case models.ResourceKindRoom, models.ResourceKindVehicle:
		if in.ResourceID == nil {
			return models.ResourceRef{}, models.NewValidationError("resource_id", "required for a scoped booking")
		}
		return models.ResourceRef{Kind: in.ResourceKind, ID: in.ResourceID}, nil
	default:
		return models.ResourceRef{}, models.NewValidationError("resource_kind", "must be none, room or vehicle")
	}
}

// CreateEvent books a new event. Supply lines are created pending; allocation
// is a separate explicit operation.
func (s *EventService) CreateEvent(ctx context.Context, tenantID uuid.UUID, input *CreateEventInput) (*models.Event, error) {
	txn := s.tracer.StartTransaction("create-event")
	defer s.tracer.EndTransaction(txn)

	if input.Title == "" {
		return nil, models.NewValidationError("title", "is required")
	}
	if input.ClientID == uuid.Nil {
		return nil, models.NewValidationError("client_id", "is required")
	}
	if input.Discount < 0 {
		return nil, models.NewValidationError("discount", "must not be negative")
	}
	if input.TaxRate < 0 {
		return nil, models.NewValidationError("tax_rate", "must not be negative")
	}

	ref, err := input.resourceRef()
	if err != nil {
		return nil, err
	}

	window, err := scheduling.NewWindow(input.StartDate, input.StartTime, input.EndDate, input.EndTime)
	if err != nil {
		return nil, err
	}

	if _, err := s.getClient(ctx, tenantID, input.ClientID); err != nil {
		return nil, err
	}
	if ref.Scoped() {
		resource, err := s.getResource(ctx, tenantID, *ref.ID)
		if err != nil {
			return nil, err
		}
		if resource.Kind != ref.Kind {
			return nil, models.NewValidationError("resource_kind", "does not match the referenced resource")
		}
	}

	discountKind := input.DiscountKind
	if discountKind == "" {
		discountKind = models.DiscountKindFixed
	}

	event := &models.Event{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ClientID:     input.ClientID,
		ResourceKind: ref.Kind,
		ResourceID:   ref.ID,
		Title:        input.Title,
		Notes:        input.Notes,
		StartDate:    input.StartDate,
		StartTime:    input.StartTime,
		EndDate:      input.EndDate,
		EndTime:      input.EndTime,
		Status:       models.EventStatusPending,
		BasePrice:    input.BasePrice,
		Discount:     input.Discount,
		DiscountKind: discountKind,
		TaxRate:      input.TaxRate,
	}
	if err := event.SetServiceItems(input.Services); err != nil {
		return nil, err
	}

	lines, err := s.buildSupplyLines(ctx, tenantID, event.ID, input.SupplyLines)
	if err != nil {
		return nil, err
	}
	event.SupplyLines = lines

	if err := applyPricing(event); err != nil {
		return nil, err
	}
	applySummary(event, 0)

	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		// The scope lock serializes the availability check with the insert.
		if err := s.resources.LockForBooking(txCtx, tenantID, ref); err != nil {
			return err
		}
		candidates, err := s.events.FindOverlapCandidates(txCtx, tenantID, ref, event.StartDate, event.EndDate)
		if err != nil {
			return err
		}
		if conflict := scheduling.FirstConflict(window, candidates, uuid.Nil); conflict != nil {
			return conflict
		}
		return s.events.Create(txCtx, event)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.recordConflict(err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsCreated)
	s.indexEvent(ctx, event)

	log.Info().
		Str("event_id", event.ID.String()).
		Str("tenant_id", tenantID.String()).
		Str("status", string(event.Status)).
		Msg("Event created successfully")

	return event, nil
}

// UpdateEventInput patches an event; nil fields are left untouched.
// Replacing SupplyLines is only allowed while no line is allocated.
type UpdateEventInput struct {
	Title        *string               `json:"title"`
	Notes        *string               `json:"notes"`
	ClientID     *uuid.UUID            `json:"client_id"`
	ResourceKind *models.ResourceKind  `json:"resource_kind"`
	ResourceID   *uuid.UUID            `json:"resource_id"`
	StartDate    *time.Time            `json:"start_date"`
	StartTime    *string               `json:"start_time"`
	EndDate      *time.Time            `json:"end_date"`
	EndTime      *string               `json:"end_time"`
	Status       *models.EventStatus   `json:"status"`
	BasePrice    *float64              `json:"base_price"`
	Services     *[]models.ServiceItem `json:"services"`
	Discount     *float64              `json:"discount"`
	DiscountKind *models.DiscountKind  `json:"discount_kind"`
	TaxRate      *float64              `json:"tax_rate"`
	SupplyLines  *[]SupplyLineInput    `json:"supply_lines"`
}

// UpdateEvent applies a patch to an event. The collision gate re-runs only
// when timing or the resource reference changed; pricing re-runs whenever a
// priced field changed.
func (s *EventService) UpdateEvent(ctx context.Context, tenantID, eventID uuid.UUID, patch *UpdateEventInput) (*models.Event, error) {
	txn := s.tracer.StartTransaction("update-event")
	defer s.tracer.EndTransaction(txn)

	var updated *models.Event
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}
		if event.Status == models.EventStatusCancelled || event.Status == models.EventStatusCompleted {
			return &models.StateError{Entity: "event", From: string(event.Status), To: "updated"}
		}

		timingChanged := false
		scopeChanged := false
		pricedChanged := false

		if patch.Title != nil {
			event.Title = *patch.Title
		}
		if patch.Notes != nil {
			event.Notes = *patch.Notes
		}
		if patch.ClientID != nil && *patch.ClientID != event.ClientID {
			if _, err := s.getClient(txCtx, tenantID, *patch.ClientID); err != nil {
				return err
			}
			event.ClientID = *patch.ClientID
		}
		if patch.Status != nil && *patch.Status != event.Status {
			// Cancellation returns allocated supplies to stock, which a status
			// patch would skip. It has its own operation.
			if *patch.Status == models.EventStatusCancelled {
				return models.NewValidationError("status", "cancellation must go through the cancel operation")
			}
			if err := validateTransition(event.Status, *patch.Status); err != nil {
				return err
			}
			event.Status = *patch.Status
		}

		if patch.ResourceKind != nil || patch.ResourceID != nil {
			ref, err := patchedResourceRef(event, patch)
			if err != nil {
				return err
			}
			if !ref.SameScope(event.ResourceRef()) {
				scopeChanged = true
			}
			if ref.Scoped() {
				resource, err := s.getResource(txCtx, tenantID, *ref.ID)
				if err != nil {
					return err
				}
				if resource.Kind != ref.Kind {
					return models.NewValidationError("resource_kind", "does not match the referenced resource")
				}
			}
			event.ResourceKind = ref.Kind
			event.ResourceID = ref.ID
		}

		if patch.StartDate != nil {
			event.StartDate = *patch.StartDate
			timingChanged = true
		}
		if patch.StartTime != nil {
			event.StartTime = *patch.StartTime
			timingChanged = true
		}
		if patch.EndDate != nil {
			event.EndDate = *patch.EndDate
			timingChanged = true
		}
		if patch.EndTime != nil {
			event.EndTime = *patch.EndTime
			timingChanged = true
		}

		if patch.BasePrice != nil {
			event.BasePrice = *patch.BasePrice
			pricedChanged = true
		}
		if patch.Services != nil {
			if err := event.SetServiceItems(*patch.Services); err != nil {
				return err
			}
			pricedChanged = true
		}
		if patch.Discount != nil {
			if *patch.Discount < 0 {
				return models.NewValidationError("discount", "must not be negative")
			}
			event.Discount = *patch.Discount
			pricedChanged = true
		}
		if patch.DiscountKind != nil {
			event.DiscountKind = *patch.DiscountKind
			pricedChanged = true
		}
		if patch.TaxRate != nil {
			if *patch.TaxRate < 0 {
				return models.NewValidationError("tax_rate", "must not be negative")
			}
			event.TaxRate = *patch.TaxRate
			pricedChanged = true
		}

		// The window is re-validated even when only one of the four fields
		// moved.
		window, err := scheduling.EventWindow(event)
		if err != nil {
			return err
		}

		if timingChanged || scopeChanged {
			ref := event.ResourceRef()
			if err := s.resources.LockForBooking(txCtx, tenantID, ref); err != nil {
				return err
			}
			candidates, err := s.events.FindOverlapCandidates(txCtx, tenantID, ref, event.StartDate, event.EndDate)
			if err != nil {
				return err
			}
			if conflict := scheduling.FirstConflict(window, candidates, event.ID); conflict != nil {
				return conflict
			}
		}

		if patch.SupplyLines != nil {
			for i := range event.SupplyLines {
				st := event.SupplyLines[i].Status
				if st == models.SupplyLineAllocated || st == models.SupplyLineDelivered {
					return &models.StateError{Entity: "supply_line", From: string(st), To: "replaced"}
				}
			}
			if err := s.events.DeleteLinesByEvent(txCtx, event.ID); err != nil {
				return err
			}
			lines, err := s.buildSupplyLines(txCtx, tenantID, event.ID, *patch.SupplyLines)
			if err != nil {
				return err
			}
			if err := s.events.CreateLines(txCtx, lines); err != nil {
				return err
			}
			event.SupplyLines = lines
			pricedChanged = true
		}

		if pricedChanged {
			if err := applyPricing(event); err != nil {
				return err
			}
			paid, err := s.payments.SumNetCompleted(txCtx, tenantID, event.ID)
			if err != nil {
				return err
			}
			applySummary(event, paid)
		}

		if err := s.events.Save(txCtx, event); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.recordConflict(err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsUpdated)
	s.indexEvent(ctx, updated)

	return updated, nil
}

// CancelEvent cancels a non-terminal event and returns any allocated or
// delivered supplies to stock in the same transaction. Payments are not
// auto-refunded.
func (s *EventService) CancelEvent(ctx context.Context, tenantID, eventID, actorID uuid.UUID) (*models.Event, error) {
	txn := s.tracer.StartTransaction("cancel-event")
	defer s.tracer.EndTransaction(txn)

	var cancelled *models.Event
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}
		if event.Status == models.EventStatusCancelled || event.Status == models.EventStatusCompleted {
			return &models.StateError{Entity: "event", From: string(event.Status), To: string(models.EventStatusCancelled)}
		}

		if err := returnSupplyLines(txCtx, s.supplies, s.events, event, actorID); err != nil {
			return err
		}

		event.Status = models.EventStatusCancelled
		if err := applyPricing(event); err != nil {
			return err
		}
		paid, err := s.payments.SumNetCompleted(txCtx, tenantID, event.ID)
		if err != nil {
			return err
		}
		applySummary(event, paid)

		if err := s.events.Save(txCtx, event); err != nil {
			return err
		}
		cancelled = event
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsCancelled)
	s.indexEvent(ctx, cancelled)
	if s.cache != nil {
		// Cancellation returned stock; cached supply reads are stale.
		for i := range cancelled.SupplyLines {
			if err := s.cache.Delete(ctx, cache.GetSupplyCacheKey(tenantID, cancelled.SupplyLines[i].SupplyID)); err != nil {
				log.Debug().Err(err).Msg("Failed to invalidate supply cache")
			}
		}
	}

	log.Info().
		Str("event_id", eventID.String()).
		Str("actor_id", actorID.String()).
		Msg("Event cancelled")

	return cancelled, nil
}

// ArchiveEvent soft-deletes an event: it leaves default listings and the
// collision candidate set. Allocated stock is deliberately not returned; the
// condition is logged so operators can resolve it.
func (s *EventService) ArchiveEvent(ctx context.Context, tenantID, eventID, actorID uuid.UUID) (*models.Event, error) {
	txn := s.tracer.StartTransaction("archive-event")
	defer s.tracer.EndTransaction(txn)

	var archived *models.Event
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}
		if event.IsArchived {
			return &models.StateError{Entity: "event", From: "archived", To: "archived"}
		}

		for i := range event.SupplyLines {
			st := event.SupplyLines[i].Status
			if st == models.SupplyLineAllocated || st == models.SupplyLineDelivered {
				log.Warn().
					Str("event_id", event.ID.String()).
					Str("supply_id", event.SupplyLines[i].SupplyID.String()).
					Int("allocated_qty", event.SupplyLines[i].AllocatedQty).
					Msg("Archiving event with allocated supplies; stock stays allocated")
			}
		}

		now := time.Now()
		event.IsArchived = true
		event.ArchivedAt = &now
		event.ArchivedBy = &actorID

		if err := s.events.Save(txCtx, event); err != nil {
			return err
		}
		archived = event
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsArchived)
	s.indexEvent(ctx, archived)

	return archived, nil
}

// GetEvent fetches an event within a tenant
func (s *EventService) GetEvent(ctx context.Context, tenantID, eventID uuid.UUID) (*models.Event, error) {
	return s.events.GetByID(ctx, tenantID, eventID)
}

// SearchEvents runs an operator text search over the event index
func (s *EventService) SearchEvents(ctx context.Context, tenantID uuid.UUID, text string, size int) ([]map[string]interface{}, error) {
	if s.search == nil {
		return nil, errors.New("search is not configured")
	}
	return s.search.SearchEvents(ctx, tenantID.String(), text, size)
}

func (s *EventService) buildSupplyLines(ctx context.Context, tenantID, eventID uuid.UUID, inputs []SupplyLineInput) ([]models.SupplyLine, error) {
	lines := make([]models.SupplyLine, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, models.NewValidationError("quantity", "must be positive")
		}
		supply, err := s.supplies.GetByID(ctx, tenantID, in.SupplyID)
		if err != nil {
			return nil, err
		}
		if supply.Status == models.SupplyStatusDiscontinued {
			return nil, models.NewValidationError("supply_id", "supply is discontinued")
		}
		line := models.SupplyLine{
			ID:            uuid.New(),
			EventID:       eventID,
			SupplyID:      supply.ID,
			TenantID:      tenantID,
			Name:          supply.Name,
			Unit:          supply.Unit,
			Category:      supply.Category,
			PricingKind:   supply.PricingKind,
			RequestedQty:  in.Quantity,
			CostPerUnit:   supply.CostPerUnit,
			ChargePerUnit: supply.ChargePerUnit,
			Status:        models.SupplyLinePending,
		}
		line.TotalCost, line.TotalCharge = billing.LineTotals(&line)
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *EventService) getClient(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	if s.cache != nil {
		var client models.Client
		if err := s.cache.Get(ctx, cache.GetClientCacheKey(tenantID, id), &client); err == nil {
			return &client, nil
		}
	}
	client, err := s.clients.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.GetClientCacheKey(tenantID, id), client, 5*time.Minute); err != nil {
			log.Debug().Err(err).Msg("Failed to cache client")
		}
	}
	return client, nil
}

func (s *EventService) getResource(ctx context.Context, tenantID, id uuid.UUID) (*models.Resource, error) {
	if s.cache != nil {
		var resource models.Resource
		if err := s.cache.Get(ctx, cache.GetResourceCacheKey(tenantID, id), &resource); err == nil {
			return &resource, nil
		}
	}
	resource, err := s.resources.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.GetResourceCacheKey(tenantID, id), resource, 5*time.Minute); err != nil {
			log.Debug().Err(err).Msg("Failed to cache resource")
		}
	}
	return resource, nil
}

func (s *EventService) indexEvent(ctx context.Context, event *models.Event) {
	if s.search == nil || event == nil {
		return
	}
	if err := s.search.IndexEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("Failed to index event")
	}
}

func (s *EventService) recordConflict(err error) {
	var conflict *models.SlotConflictError
	if errors.As(err, &conflict) {
		s.metrics.IncrementCounter(metrics.CounterSlotConflicts)
	}
}

func patchedResourceRef(event *models.Event, patch *UpdateEventInput) (models.ResourceRef, error) {
	kind := event.ResourceKind
	id := event.ResourceID
	if patch.ResourceKind != nil {
		kind = *patch.ResourceKind
	}
	if patch.ResourceID != nil {
		id = patch.ResourceID
	}
	switch kind {
	case "", models.ResourceKindNone:
		return models.NoResource(), nil
	case models.ResourceKindRoom, models.ResourceKindVehicle:
		if id == nil {
			return models.ResourceRef{}, models.NewValidationError("resource_id", "required for a scoped booking")
		}
		return models.ResourceRef{Kind: kind, ID: id}, nil
	default:
		return models.ResourceRef{}, models.NewValidationError("resource_kind", "must be none, room or vehicle")
	}
}

// validateTransition guards the event status machine. Cancellation is
// reachable from any non-terminal state, but only through CancelEvent; a
// status patch is refused before this table is consulted.
func validateTransition(from, to models.EventStatus) error {
	allowed := map[models.EventStatus][]models.EventStatus{
		models.EventStatusPending:    {models.EventStatusConfirmed, models.EventStatusCancelled},
		models.EventStatusConfirmed:  {models.EventStatusInProgress, models.EventStatusCancelled},
		models.EventStatusInProgress: {models.EventStatusCompleted, models.EventStatusCancelled},
	}
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return &models.StateError{Entity: "event", From: string(from), To: string(to)}
}

// PaymentMessage is the payment lifecycle payload the payments collaborator
// publishes, over HTTP or the Service Bus queue.
type PaymentMessage struct {
	PaymentID      uuid.UUID          `json:"payment_id"`
	TenantID       uuid.UUID          `json:"tenant_id"`
	EventID        uuid.UUID          `json:"event_id"`
	Type           models.PaymentType `json:"type"`
	Amount         float64            `json:"amount"`
	Fees           float64            `json:"fees"`
	RefundedAmount float64            `json:"refunded_amount"`
	Status         string             `json:"status"`
	IsArchived     bool               `json:"is_archived"`
}

// RecordPayment stores a payment lifecycle message and re-derives the
// affected event's payment summary. Failures after the upsert leave the
// payment unapplied for the worker to retry.
func (s *EventService) RecordPayment(ctx context.Context, msg *PaymentMessage) error {
	txn := s.tracer.StartTransaction("record-payment")
	defer s.tracer.EndTransaction(txn)

	if msg.PaymentID == uuid.Nil {
		return models.NewValidationError("payment_id", "is required")
	}
	if msg.TenantID == uuid.Nil || msg.EventID == uuid.Nil {
		return models.NewValidationError("event_id", "tenant_id and event_id are required")
	}

	payment := &models.Payment{
		ID:             msg.PaymentID,
		TenantID:       msg.TenantID,
		EventID:        msg.EventID,
		Type:           msg.Type,
		Amount:         msg.Amount,
		Fees:           msg.Fees,
		RefundedAmount: msg.RefundedAmount,
		Status:         msg.Status,
		IsArchived:     msg.IsArchived,
	}
	payment.NetAmount = billing.NetAmount(payment)

	if err := s.payments.Upsert(ctx, payment); err != nil {
		s.tracer.RecordError(txn, err)
		return err
	}

	if err := s.applyPayment(ctx, payment); err != nil {
		// The payment is stored; the fallback job re-derives the summary.
		log.Warn().
			Err(err).
			Str("payment_id", payment.ID.String()).
			Str("event_id", payment.EventID.String()).
			Msg("Failed to apply payment immediately, worker will retry")
		s.tracer.RecordError(txn, err)
		return nil
	}

	s.metrics.IncrementCounter(metrics.CounterPaymentsApplied)
	return nil
}

// OnPaymentChanged recomputes the payment summary of an event from the
// payment read-model.
func (s *EventService) OnPaymentChanged(ctx context.Context, tenantID, eventID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}
		paid, err := s.payments.SumNetCompleted(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}
		applySummary(event, paid)
		return s.events.Save(txCtx, event)
	})
}

func (s *EventService) applyPayment(ctx context.Context, payment *models.Payment) error {
	if err := s.OnPaymentChanged(ctx, payment.TenantID, payment.EventID); err != nil {
		return err
	}
	return s.payments.MarkApplied(ctx, payment.ID)
}

// ProcessPaymentMessage handles one payment lifecycle message from the
// Service Bus queue.
func (s *EventService) ProcessPaymentMessage(ctx context.Context, message *azservicebus.ReceivedMessage, txn *newrelic.Transaction) error {
	var msg PaymentMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal payment message")
	}

	span := s.tracer.StartSpan("record-payment", txn)
	err := s.RecordPayment(ctx, &msg)
	span.End()
	if err != nil {
		return errors.Wrap(err, "failed to record payment")
	}

	log.Info().
		Str("payment_id", msg.PaymentID.String()).
		Str("event_id", msg.EventID.String()).
		Msg("Payment message processed")

	return nil
}

// ApplyUnappliedPayments re-derives summaries for payments whose immediate
// application failed. Runs as the worker's fallback job.
func (s *EventService) ApplyUnappliedPayments(ctx context.Context) error {
	txn := s.tracer.StartTransaction("apply-unapplied-payments")
	defer s.tracer.EndTransaction(txn)

	payments, err := s.payments.GetUnapplied(ctx, 100)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to get unapplied payments")
	}

	if len(payments) == 0 {
		return nil
	}

	log.Info().Msgf("Found %d unapplied payments for reconciliation", len(payments))

	for i := range payments {
		p := &payments[i]
		if err := s.applyPayment(ctx, p); err != nil {
			log.Error().
				Err(err).
				Str("payment_id", p.ID.String()).
				Int("apply_attempts", p.ApplyAttempts+1).
				Msg("Failed to apply payment during reconciliation")
			s.tracer.RecordError(txn, err)
			if incErr := s.payments.IncrementApplyAttempts(ctx, p.ID); incErr != nil {
				log.Error().Err(incErr).Str("payment_id", p.ID.String()).Msg("Failed to count apply attempt")
			} else if p.ApplyAttempts+1 >= repositories.MaxApplyAttempts {
				log.Error().
					Str("payment_id", p.ID.String()).
					Str("event_id", p.EventID.String()).
					Msg("Payment exhausted its apply retries, dropping it from reconciliation")
			}
			continue
		}
		s.metrics.IncrementCounter(metrics.CounterPaymentsReconcile)
	}

	return nil
}
