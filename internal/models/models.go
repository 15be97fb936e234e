package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// EventStatus is the lifecycle state of a booked event.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusConfirmed  EventStatus = "confirmed"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// ResourceKind tags what an event is booked against. Unscoped ("solo")
// bookings carry KindNone and share one tenant-wide calendar.
type ResourceKind string

const (
	ResourceKindNone    ResourceKind = "none"
	ResourceKindRoom    ResourceKind = "room"
	ResourceKindVehicle ResourceKind = "vehicle"
)

// ResourceRef is the tagged reference an event books. ID is nil exactly
// when Kind is ResourceKindNone.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   *uuid.UUID   `json:"id,omitempty"`
}

// NoResource returns the unscoped reference.
func NoResource() ResourceRef {
	return ResourceRef{Kind: ResourceKindNone}
}

// Scoped reports whether the reference points at a physical resource.
func (r ResourceRef) Scoped() bool {
	return r.Kind != ResourceKindNone && r.ID != nil
}

// SameScope reports whether two references compete for the same calendar.
func (r ResourceRef) SameScope(o ResourceRef) bool {
	if r.Kind != o.Kind {
		return false
	}
	if !r.Scoped() {
		return !o.Scoped()
	}
	return o.ID != nil && *r.ID == *o.ID
}

// DiscountKind selects how Event.Discount is interpreted.
type DiscountKind string

const (
	DiscountKindFixed   DiscountKind = "fixed"
	DiscountKindPercent DiscountKind = "percent"
)

// PaymentState is the derived payment status of an event.
type PaymentState string

const (
	PaymentStateUnpaid  PaymentState = "unpaid"
	PaymentStatePartial PaymentState = "partial"
	PaymentStatePaid    PaymentState = "paid"
)

// SupplyPricingKind controls whether a supply contributes to the charge.
type SupplyPricingKind string

const (
	SupplyPricingIncluded   SupplyPricingKind = "included"
	SupplyPricingChargeable SupplyPricingKind = "chargeable"
	SupplyPricingOptional   SupplyPricingKind = "optional"
)

// SupplyStatus is the availability state of a supply.
type SupplyStatus string

const (
	SupplyStatusActive       SupplyStatus = "active"
	SupplyStatusInactive     SupplyStatus = "inactive"
	SupplyStatusDiscontinued SupplyStatus = "discontinued"
	SupplyStatusOutOfStock   SupplyStatus = "out_of_stock"
)

// SupplyLineStatus is the allocation state of one supply line.
type SupplyLineStatus string

const (
	SupplyLinePending   SupplyLineStatus = "pending"
	SupplyLineAllocated SupplyLineStatus = "allocated"
	SupplyLineDelivered SupplyLineStatus = "delivered"
	SupplyLineCancelled SupplyLineStatus = "cancelled"
)

// MovementKind classifies a stock ledger entry.
type MovementKind string

const (
	MovementPurchase   MovementKind = "purchase"
	MovementUsage      MovementKind = "usage"
	MovementAdjustment MovementKind = "adjustment"
	MovementReturn     MovementKind = "return"
	MovementWaste      MovementKind = "waste"
)

// PaymentType distinguishes money in from money out.
type PaymentType string

const (
	PaymentTypeIncome  PaymentType = "income"
	PaymentTypeExpense PaymentType = "expense"
)

// PaymentStatusCompleted is the only payment status that contributes to the
// paid amount of an event.
const PaymentStatusCompleted = "completed"

// Tenant represents an owning business whose data is isolated from all others
type Tenant struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
}

// Client represents a booking customer within a tenant
type Client struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Tenant    Tenant         `gorm:"foreignKey:TenantID" json:"-"`
}

// Resource represents a bookable unit (room or vehicle)
type Resource struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Kind      ResourceKind   `gorm:"type:varchar(16);not null" json:"kind"`
	Name      string         `gorm:"not null" json:"name"`
	Capacity  int            `gorm:"not null;default:0" json:"capacity"`
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	Tenant    Tenant         `gorm:"foreignKey:TenantID" json:"-"`
}

// ServiceItem is one additional service line priced into an event. The list
// is stored on the event as a JSON column.
type ServiceItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Event is the booking aggregate root. Start/end are kept as separate date
// and time-of-day fields; overlap checks combine them into instants.
type Event struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ClientID     uuid.UUID      `gorm:"type:uuid;not null" json:"client_id"`
	ResourceKind ResourceKind   `gorm:"type:varchar(16);not null;default:'none'" json:"resource_kind"`
	ResourceID   *uuid.UUID     `gorm:"type:uuid;index" json:"resource_id"`
	Title        string         `gorm:"not null" json:"title"`
	Notes        string         `json:"notes"`

	StartDate time.Time `gorm:"type:date;not null;index" json:"start_date"`
	StartTime string    `gorm:"type:varchar(5);not null" json:"start_time"`
	EndDate   time.Time `gorm:"type:date;not null;index" json:"end_date"`
	EndTime   string    `gorm:"type:varchar(5);not null" json:"end_time"`

	Status     EventStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	IsArchived bool        `gorm:"not null;default:false;index" json:"is_archived"`
	ArchivedAt *time.Time  `json:"archived_at"`
	ArchivedBy *uuid.UUID  `gorm:"type:uuid" json:"archived_by"`

	// Pricing snapshot
	BasePrice          float64      `gorm:"not null;default:0" json:"base_price"`
	AdditionalServices []byte       `gorm:"type:jsonb" json:"additional_services"`
	Discount           float64      `gorm:"not null;default:0" json:"discount"`
	DiscountKind       DiscountKind `gorm:"type:varchar(16);not null;default:'fixed'" json:"discount_kind"`
	TaxRate            float64      `gorm:"not null;default:0" json:"tax_rate"`
	Subtotal           float64      `gorm:"not null;default:0" json:"subtotal"`
	DiscountAmount     float64      `gorm:"not null;default:0" json:"discount_amount"`
	TaxAmount          float64      `gorm:"not null;default:0" json:"tax_amount"`
	Total              float64      `gorm:"not null;default:0" json:"total"`

	// Payment summary
	PaidAmount    float64      `gorm:"not null;default:0" json:"paid_amount"`
	PaymentStatus PaymentState `gorm:"type:varchar(16);not null;default:'unpaid'" json:"payment_status"`
	AmountDue     float64      `gorm:"not null;default:0" json:"amount_due"`

	SupplyLines []SupplyLine `gorm:"foreignKey:EventID" json:"supply_lines"`
	Client      Client       `gorm:"foreignKey:ClientID" json:"-"`
	Tenant      Tenant       `gorm:"foreignKey:TenantID" json:"-"`
}

// ResourceRef returns the tagged resource reference of the event.
func (e *Event) ResourceRef() ResourceRef {
	if e.ResourceID == nil || e.ResourceKind == ResourceKindNone {
		return NoResource()
	}
	return ResourceRef{Kind: e.ResourceKind, ID: e.ResourceID}
}

// ServiceItems decodes the additional services JSON column.
func (e *Event) ServiceItems() ([]ServiceItem, error) {
	if len(e.AdditionalServices) == 0 {
		return nil, nil
	}
	var items []ServiceItem
	if err := json.Unmarshal(e.AdditionalServices, &items); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal additional services")
	}
	return items, nil
}

// SetServiceItems encodes the additional services JSON column.
func (e *Event) SetServiceItems(items []ServiceItem) error {
	if len(items) == 0 {
		e.AdditionalServices = nil
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "failed to marshal additional services")
	}
	e.AdditionalServices = data
	return nil
}

// Supply is an inventory item whose current quantity is the stock ledger head
type Supply struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"-"`
	TenantID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name          string            `gorm:"not null" json:"name"`
	Unit          string            `gorm:"not null" json:"unit"`
	Category      string            `json:"category"`
	StockQuantity int               `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	MinThreshold  int               `gorm:"not null;default:0" json:"min_threshold"`
	MaxThreshold  int               `gorm:"not null;default:0" json:"max_threshold"`
	CostPerUnit   float64           `gorm:"not null;default:0" json:"cost_per_unit"`
	ChargePerUnit float64           `gorm:"not null;default:0" json:"charge_per_unit"`
	PricingKind   SupplyPricingKind `gorm:"type:varchar(16);not null;default:'included'" json:"pricing_kind"`
	Status        SupplyStatus      `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	Movements     []StockMovement   `gorm:"foreignKey:SupplyID" json:"-"`
	Tenant        Tenant            `gorm:"foreignKey:TenantID" json:"-"`
}

// DeriveStatus maps the stock level onto the supply status. Manual
// inactive/discontinued states are sticky.
func (s *Supply) DeriveStatus() SupplyStatus {
	if s.Status == SupplyStatusInactive || s.Status == SupplyStatusDiscontinued {
		return s.Status
	}
	if s.StockQuantity <= 0 {
		return SupplyStatusOutOfStock
	}
	return SupplyStatusActive
}

// StockMovement is one append-only entry of the stock ledger
type StockMovement struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	TenantID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	SupplyID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"supply_id"`
	Date      time.Time    `gorm:"not null" json:"date"`
	Delta     int          `gorm:"not null" json:"delta"`
	Kind      MovementKind `gorm:"type:varchar(16);not null" json:"kind"`
	Reference string       `json:"reference"`
	ActorID   *uuid.UUID   `gorm:"type:uuid" json:"actor_id"`
	Supply    Supply       `gorm:"foreignKey:SupplyID" json:"-"`
}

// SupplyLine is one requested/allocated inventory item on an event. Name,
// unit, category and per-unit prices are frozen at request time so later
// supply edits don't rewrite historical events.
type SupplyLine struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	EventID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"event_id"`
	SupplyID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"supply_id"`
	TenantID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name        string            `gorm:"not null" json:"name"`
	Unit        string            `gorm:"not null" json:"unit"`
	Category    string            `json:"category"`
	PricingKind SupplyPricingKind `gorm:"type:varchar(16);not null" json:"pricing_kind"`

	RequestedQty  int     `gorm:"not null;default:0" json:"requested_qty"`
	AllocatedQty  int     `gorm:"not null;default:0" json:"allocated_qty"`
	CostPerUnit   float64 `gorm:"not null;default:0" json:"cost_per_unit"`
	ChargePerUnit float64 `gorm:"not null;default:0" json:"charge_per_unit"`
	TotalCost     float64 `gorm:"not null;default:0" json:"total_cost"`
	TotalCharge   float64 `gorm:"not null;default:0" json:"total_charge"`

	Status      SupplyLineStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	AllocatedAt *time.Time       `json:"allocated_at"`
	AllocatedBy *uuid.UUID       `gorm:"type:uuid" json:"allocated_by"`
	DeliveredAt *time.Time       `json:"delivered_at"`
	DeliveredBy *uuid.UUID       `gorm:"type:uuid" json:"delivered_by"`
}

// EffectiveQty is the quantity pricing runs on: allocated once allocation has
// happened, requested before.
func (l *SupplyLine) EffectiveQty() int {
	switch l.Status {
	case SupplyLineAllocated, SupplyLineDelivered:
		return l.AllocatedQty
	case SupplyLineCancelled:
		return 0
	default:
		return l.RequestedQty
	}
}

// Payment is the read-model of the payments collaborator. The booking core
// consumes payments, it never owns their lifecycle.
type Payment struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	TenantID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"tenant_id"`
	EventID        uuid.UUID   `gorm:"type:uuid;not null;index" json:"event_id"`
	Type           PaymentType `gorm:"type:varchar(16);not null" json:"type"`
	Amount         float64     `gorm:"not null;default:0" json:"amount"`
	Fees           float64     `gorm:"not null;default:0" json:"fees"`
	RefundedAmount float64     `gorm:"not null;default:0" json:"refunded_amount"`
	NetAmount      float64     `gorm:"not null;default:0" json:"net_amount"`
	Status         string      `gorm:"type:varchar(16);not null" json:"status"`
	IsArchived     bool        `gorm:"not null;default:false" json:"is_archived"`
	// IsApplied flips once the event's payment summary reflects this row;
	// the worker retries unapplied payments as a fallback, giving up after
	// ApplyAttempts reaches the retry cap.
	IsApplied     bool  `gorm:"not null;default:false;index" json:"is_applied"`
	ApplyAttempts int   `gorm:"not null;default:0" json:"apply_attempts"`
	Event         Event `gorm:"foreignKey:EventID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&Tenant{},
		&Client{},
		&Resource{},
		&Event{},
		&Supply{},
		&StockMovement{},
		&SupplyLine{},
		&Payment{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
