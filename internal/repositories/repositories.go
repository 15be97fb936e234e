package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/venueops/services/booking/internal/models"
)

// EventRepository provides access to event data
type EventRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) *EventRepository {
	return &EventRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create persists a new event together with its supply lines
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	return writer(ctx, r.db).Create(event).Error
}

// GetByID gets an event by id within a tenant, supply lines included
func (r *EventRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := reader(ctx, r.readOnlyDB).
		Preload("SupplyLines").
		Where("tenant_id = ?", tenantID).
		First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "event", ID: id}
		}
		return nil, errors.Wrap(err, "failed to get event by id")
	}
	return &event, nil
}

// Save updates the scalar columns of an event
func (r *EventRepository) Save(ctx context.Context, event *models.Event) error {
	err := writer(ctx, r.db).
		Omit("SupplyLines").
		Save(event).Error
	if err != nil {
		return errors.Wrap(err, "failed to save event")
	}
	return nil
}

// FindOverlapCandidates returns the non-cancelled, non-archived events of a
// tenant that share the resource reference and whose coarse [start_date,
// end_date] range intersects the proposed one. Precise instant overlap is
// decided by the caller.
func (r *EventRepository) FindOverlapCandidates(
	ctx context.Context,
	tenantID uuid.UUID,
	ref models.ResourceRef,
	startDate, endDate time.Time,
) ([]models.Event, error) {
	q := reader(ctx, r.readOnlyDB).
		Where("tenant_id = ?", tenantID).
		Where("status <> ?", models.EventStatusCancelled).
		Where("is_archived = ?", false).
		Where("start_date <= ? AND end_date >= ?", endDate, startDate)

	if ref.Scoped() {
		q = q.Where("resource_kind = ? AND resource_id = ?", ref.Kind, *ref.ID)
	} else {
		// Unscoped bookings share one tenant-wide calendar.
		q = q.Where("resource_id IS NULL")
	}

	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query overlap candidates")
	}
	return events, nil
}

// CreateLines inserts supply lines
func (r *EventRepository) CreateLines(ctx context.Context, lines []models.SupplyLine) error {
	if len(lines) == 0 {
		return nil
	}
	return writer(ctx, r.db).Create(&lines).Error
}

// SaveLine updates one supply line
func (r *EventRepository) SaveLine(ctx context.Context, line *models.SupplyLine) error {
	return writer(ctx, r.db).Save(line).Error
}

// DeleteLinesByEvent removes the supply lines of an event; only valid while
// none of them is allocated
func (r *EventRepository) DeleteLinesByEvent(ctx context.Context, eventID uuid.UUID) error {
	return writer(ctx, r.db).
		Where("event_id = ?", eventID).
		Delete(&models.SupplyLine{}).Error
}

// SupplyRepository provides access to supply and stock ledger data
type SupplyRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSupplyRepository creates a new supply repository
func NewSupplyRepository(db *gorm.DB, readOnlyDB *gorm.DB) *SupplyRepository {
	return &SupplyRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets a supply by id within a tenant
func (r *SupplyRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Supply, error) {
	var supply models.Supply
	err := reader(ctx, r.readOnlyDB).
		Where("tenant_id = ?", tenantID).
		First(&supply, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "supply", ID: id}
		}
		return nil, errors.Wrap(err, "failed to get supply by id")
	}
	return &supply, nil
}

// DecrementStock decrements stock by qty only if the current quantity covers
// it: one conditional update, so concurrent allocations cannot oversell.
// RowsAffected == 0 means insufficient stock (or a vanished supply).
func (r *SupplyRepository) DecrementStock(ctx context.Context, tenantID, id uuid.UUID, qty int) (bool, error) {
	result := writer(ctx, r.db).
		Model(&models.Supply{}).
		Where("id = ? AND tenant_id = ? AND stock_quantity >= ?", id, tenantID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to decrement stock")
	}
	return result.RowsAffected > 0, nil
}

// IncrementStock adds qty back to a supply. Increments are always safe;
// RowsAffected == 0 only when the supply no longer exists.
func (r *SupplyRepository) IncrementStock(ctx context.Context, tenantID, id uuid.UUID, qty int) (bool, error) {
	result := writer(ctx, r.db).
		Model(&models.Supply{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to increment stock")
	}
	return result.RowsAffected > 0, nil
}

// AppendMovement records one stock ledger entry
func (r *SupplyRepository) AppendMovement(ctx context.Context, movement *models.StockMovement) error {
	if err := writer(ctx, r.db).Create(movement).Error; err != nil {
		return errors.Wrap(err, "failed to append stock movement")
	}
	return nil
}

// UpdateStatus stores a derived supply status
func (r *SupplyRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.SupplyStatus) error {
	err := writer(ctx, r.db).
		Model(&models.Supply{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("status", status).Error
	if err != nil {
		return errors.Wrap(err, "failed to update supply status")
	}
	return nil
}

// ClientRepository provides access to client data
type ClientRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ClientRepository {
	return &ClientRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets a client by id within a tenant
func (r *ClientRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	err := reader(ctx, r.readOnlyDB).
		Where("tenant_id = ?", tenantID).
		First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "client", ID: id}
		}
		return nil, errors.Wrap(err, "failed to get client by id")
	}
	return &client, nil
}

// ResourceRepository provides access to bookable resources
type ResourceRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ResourceRepository {
	return &ResourceRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets a resource by id within a tenant
func (r *ResourceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	err := reader(ctx, r.readOnlyDB).
		Where("tenant_id = ?", tenantID).
		First(&resource, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "resource", ID: id}
		}
		return nil, errors.Wrap(err, "failed to get resource by id")
	}
	return &resource, nil
}

// LockForBooking takes a row lock on the booking scope for the duration of
// the surrounding transaction: the resource row for scoped bookings, the
// tenant row for unscoped ones. Serializes the availability check with the
// write that follows it.
func (r *ResourceRepository) LockForBooking(ctx context.Context, tenantID uuid.UUID, ref models.ResourceRef) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return errors.New("LockForBooking requires a transaction")
	}

	if ref.Scoped() {
		var resource models.Resource
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).
			First(&resource, "id = ?", *ref.ID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &models.NotFoundError{Entity: "resource", ID: *ref.ID}
			}
			return errors.Wrap(err, "failed to lock resource")
		}
		if resource.Kind != ref.Kind {
			return models.NewValidationError("resource_kind", "does not match the referenced resource")
		}
		return nil
	}

	var tenant models.Tenant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tenant, "id = ?", tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.NotFoundError{Entity: "tenant", ID: tenantID}
		}
		return errors.Wrap(err, "failed to lock tenant")
	}
	return nil
}

// PaymentRepository provides access to the payment read-model
type PaymentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Upsert stores a payment lifecycle message, replacing any prior state of the
// same payment id
func (r *PaymentRepository) Upsert(ctx context.Context, payment *models.Payment) error {
	err := writer(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "amount", "fees", "refunded_amount", "net_amount",
				"status", "is_archived", "is_applied", "apply_attempts", "updated_at",
			}),
		}).
		Create(payment).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert payment")
	}
	return nil
}

// SumNetCompleted recomputes the paid amount of an event from scratch: the
// sum of net amounts over completed, non-archived, income payments.
func (r *PaymentRepository) SumNetCompleted(ctx context.Context, tenantID, eventID uuid.UUID) (float64, error) {
	var total float64
	err := reader(ctx, r.readOnlyDB).
		Model(&models.Payment{}).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Where("type = ? AND status = ? AND is_archived = ?",
			models.PaymentTypeIncome, models.PaymentStatusCompleted, false).
		Select("COALESCE(SUM(net_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum completed payments")
	}
	return total, nil
}

// MaxApplyAttempts caps fallback retries per payment. A payment that keeps
// failing (a bogus or out-of-tenant event id will never resolve) drops out of
// the retry set instead of growing the worker's backlog forever.
const MaxApplyAttempts = 10

// GetUnapplied gets payments whose event summary may not reflect them yet and
// that still have fallback retries left
func (r *PaymentRepository) GetUnapplied(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := reader(ctx, r.readOnlyDB).
		Where("is_applied = ?", false).
		Where("apply_attempts < ?", MaxApplyAttempts).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get unapplied payments")
	}
	return payments, nil
}

// IncrementApplyAttempts counts one failed fallback application
func (r *PaymentRepository) IncrementApplyAttempts(ctx context.Context, id uuid.UUID) error {
	err := writer(ctx, r.db).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("apply_attempts", gorm.Expr("apply_attempts + 1")).Error
	if err != nil {
		return errors.Wrap(err, "failed to increment apply attempts")
	}
	return nil
}

// MarkApplied marks a payment as reflected in its event's summary
func (r *PaymentRepository) MarkApplied(ctx context.Context, id uuid.UUID) error {
	result := writer(ctx, r.db).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("is_applied", true)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to mark payment as applied")
	}
	if result.RowsAffected == 0 {
		return errors.New("no payment updated")
	}
	return nil
}
