package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTimeRange is returned when a proposed booking window ends at or
// before its start.
var ErrInvalidTimeRange = errors.New("end must be after start")

// ValidationError reports malformed input the caller can correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for one field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// SlotConflictError reports a double-booking attempt. It names the
// conflicting event so operators can resolve it; the conflicting event always
// belongs to the caller's tenant.
type SlotConflictError struct {
	EventID uuid.UUID
	Start   time.Time
	End     time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot conflict with event %s (%s - %s)",
		e.EventID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// InsufficientStockError reports an allocation attempt exceeding the current
// stock of one supply.
type InsufficientStockError struct {
	SupplyID  uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for supply %q (%s): requested %d, available %d",
		e.Name, e.SupplyID, e.Requested, e.Available)
}

// NotFoundError reports a referenced entity that is absent or outside the
// caller's tenant. The two cases are deliberately indistinguishable.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StateError reports an operation invalid for the current lifecycle state.
type StateError struct {
	Entity string
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

// IsBusinessError reports whether err belongs to the business-rule taxonomy,
// as opposed to an unexpected storage-layer failure.
func IsBusinessError(err error) bool {
	var (
		ve *ValidationError
		ce *SlotConflictError
		se *InsufficientStockError
		ne *NotFoundError
		te *StateError
	)
	return errors.Is(err, ErrInvalidTimeRange) ||
		errors.As(err, &ve) ||
		errors.As(err, &ce) ||
		errors.As(err, &se) ||
		errors.As(err, &ne) ||
		errors.As(err, &te)
}
