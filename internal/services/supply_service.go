package services

import (
	"context"
	"time"

	"example.com/venueops/services/booking/internal/billing"
	"example.com/venueops/services/booking/internal/cache"
	"example.com/venueops/services/booking/internal/metrics"
	"example.com/venueops/services/booking/internal/models"
	"example.com/venueops/services/booking/internal/repositories"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SupplyService is the supply allocator: it moves supply lines through their
// lifecycle and is the only writer of the stock ledger.
type SupplyService struct {
	events   EventRepository
	supplies SupplyRepository
	payments PaymentRepository
	tx       repositories.TxRunner
	cache    *cache.RedisCache
	metrics  *metrics.Metrics
	tracer   tracing.Tracer
}

// NewSupplyService creates a new supply service
func NewSupplyService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	redisCache *cache.RedisCache,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *SupplyService {
	return &SupplyService{
		events:   repositories.NewEventRepository(db, readOnlyDB),
		supplies: repositories.NewSupplyRepository(db, readOnlyDB),
		payments: repositories.NewPaymentRepository(db, readOnlyDB),
		tx:       repositories.NewTxRunner(db),
		cache:    redisCache,
		metrics:  metricsCollector,
		tracer:   tracer,
	}
}

// Allocate allocates every pending supply line of an event against the stock
// ledger. All-or-nothing: one short-falling supply rolls the whole operation
// back and stock is untouched.
func (s *SupplyService) Allocate(ctx context.Context, tenantID, eventID, actorID uuid.UUID) (*models.Event, error) {
	txn := s.tracer.StartTransaction("allocate-supplies")
	defer s.tracer.EndTransaction(txn)

	var allocated *models.Event
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}
		if event.Status == models.EventStatusCancelled {
			return &models.StateError{Entity: "event", From: string(event.Status), To: "allocated"}
		}
		if len(event.SupplyLines) == 0 {
			return models.NewValidationError("supply_lines", "event has no supply lines")
		}

		pending := 0
		now := time.Now()
		for i := range event.SupplyLines {
			line := &event.SupplyLines[i]
			if line.Status != models.SupplyLinePending || line.RequestedQty <= 0 {
				continue
			}
			pending++

			ok, err := s.supplies.DecrementStock(txCtx, tenantID, line.SupplyID, line.RequestedQty)
			if err != nil {
				return err
			}
			if !ok {
				// Conditional update failed: report the shortfall.
				supply, err := s.supplies.GetByID(txCtx, tenantID, line.SupplyID)
				if err != nil {
					return err
				}
				return &models.InsufficientStockError{
					SupplyID:  supply.ID,
					Name:      supply.Name,
					Requested: line.RequestedQty,
					Available: supply.StockQuantity,
				}
			}

			movement := &models.StockMovement{
				ID:        uuid.New(),
				TenantID:  tenantID,
				SupplyID:  line.SupplyID,
				Date:      now,
				Delta:     -line.RequestedQty,
				Kind:      models.MovementUsage,
				Reference: event.ID.String(),
				ActorID:   &actorID,
			}
			if err := s.supplies.AppendMovement(txCtx, movement); err != nil {
				return err
			}
			if err := refreshSupplyStatus(txCtx, s.supplies, tenantID, line.SupplyID); err != nil {
				return err
			}

			line.Status = models.SupplyLineAllocated
			line.AllocatedQty = line.RequestedQty
			line.AllocatedAt = &now
			line.AllocatedBy = &actorID
			line.TotalCost, line.TotalCharge = billing.LineTotals(line)
			if err := s.events.SaveLine(txCtx, line); err != nil {
				return err
			}
		}

		if pending == 0 {
			return &models.StateError{Entity: "supply_line", From: string(models.SupplyLineAllocated), To: string(models.SupplyLineAllocated)}
		}

		// Allocated quantities are now the authoritative pricing input.
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
		allocated = event
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.recordStockDenied(err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterAllocations)
	s.invalidateSupplies(ctx, tenantID, allocated.SupplyLines)

	log.Info().
		Str("event_id", eventID.String()).
		Str("actor_id", actorID.String()).
		Msg("Supplies allocated")

	return allocated, nil
}

// Return puts every allocated or delivered line of an event back into stock
func (s *SupplyService) Return(ctx context.Context, tenantID, eventID, actorID uuid.UUID) (*models.Event, error) {
	txn := s.tracer.StartTransaction("return-supplies")
	defer s.tracer.EndTransaction(txn)

	var returned *models.Event
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}

		if err := returnSupplyLines(txCtx, s.supplies, s.events, event, actorID); err != nil {
			return err
		}

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
		returned = event
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterReturns)
	s.invalidateSupplies(ctx, tenantID, returned.SupplyLines)
	return returned, nil
}

// MarkDelivered moves every allocated line to delivered. No stock effect.
func (s *SupplyService) MarkDelivered(ctx context.Context, tenantID, eventID, actorID uuid.UUID) (*models.Event, error) {
	txn := s.tracer.StartTransaction("mark-supplies-delivered")
	defer s.tracer.EndTransaction(txn)

	var delivered *models.Event
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, tenantID, eventID)
		if err != nil {
			return err
		}

		marked := 0
		now := time.Now()
		for i := range event.SupplyLines {
			line := &event.SupplyLines[i]
			if line.Status != models.SupplyLineAllocated {
				continue
			}
			line.Status = models.SupplyLineDelivered
			line.DeliveredAt = &now
			line.DeliveredBy = &actorID
			if err := s.events.SaveLine(txCtx, line); err != nil {
				return err
			}
			marked++
		}
		if marked == 0 {
			return &models.StateError{Entity: "supply_line", From: string(models.SupplyLinePending), To: string(models.SupplyLineDelivered)}
		}

		delivered = event
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Str("event_id", eventID.String()).
		Str("actor_id", actorID.String()).
		Msg("Supplies marked delivered")

	return delivered, nil
}

// AdjustStock applies an operator stock movement (purchase, adjustment or
// waste) through the ledger. Negative deltas are CAS-guarded so an
// adjustment can never push stock below zero.
func (s *SupplyService) AdjustStock(ctx context.Context, tenantID, supplyID uuid.UUID, delta int, kind models.MovementKind, reference string, actorID uuid.UUID) (*models.Supply, error) {
	txn := s.tracer.StartTransaction("adjust-stock")
	defer s.tracer.EndTransaction(txn)

	switch kind {
	case models.MovementPurchase, models.MovementAdjustment, models.MovementWaste:
	default:
		return nil, models.NewValidationError("kind", "must be purchase, adjustment or waste")
	}
	if delta == 0 {
		return nil, models.NewValidationError("delta", "must not be zero")
	}
	if kind == models.MovementPurchase && delta < 0 {
		return nil, models.NewValidationError("delta", "must be positive for a purchase")
	}
	if kind == models.MovementWaste && delta > 0 {
		return nil, models.NewValidationError("delta", "must be negative for waste")
	}

	var updated *models.Supply
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if delta < 0 {
			ok, err := s.supplies.DecrementStock(txCtx, tenantID, supplyID, -delta)
			if err != nil {
				return err
			}
			if !ok {
				supply, err := s.supplies.GetByID(txCtx, tenantID, supplyID)
				if err != nil {
					return err
				}
				return &models.InsufficientStockError{
					SupplyID:  supply.ID,
					Name:      supply.Name,
					Requested: -delta,
					Available: supply.StockQuantity,
				}
			}
		} else {
			ok, err := s.supplies.IncrementStock(txCtx, tenantID, supplyID, delta)
			if err != nil {
				return err
			}
			if !ok {
				return &models.NotFoundError{Entity: "supply", ID: supplyID}
			}
		}

		movement := &models.StockMovement{
			ID:        uuid.New(),
			TenantID:  tenantID,
			SupplyID:  supplyID,
			Date:      time.Now(),
			Delta:     delta,
			Kind:      kind,
			Reference: reference,
			ActorID:   &actorID,
		}
		if err := s.supplies.AppendMovement(txCtx, movement); err != nil {
			return err
		}
		if err := refreshSupplyStatus(txCtx, s.supplies, tenantID, supplyID); err != nil {
			return err
		}

		supply, err := s.supplies.GetByID(txCtx, tenantID, supplyID)
		if err != nil {
			return err
		}
		updated = supply
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.recordStockDenied(err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.GetSupplyCacheKey(tenantID, supplyID)); err != nil {
			log.Debug().Err(err).Msg("Failed to invalidate supply cache")
		}
	}

	return updated, nil
}

// GetSupply fetches a supply within a tenant, read-through cached
func (s *SupplyService) GetSupply(ctx context.Context, tenantID, supplyID uuid.UUID) (*models.Supply, error) {
	if s.cache != nil {
		var supply models.Supply
		if err := s.cache.Get(ctx, cache.GetSupplyCacheKey(tenantID, supplyID), &supply); err == nil {
			return &supply, nil
		}
	}
	supply, err := s.supplies.GetByID(ctx, tenantID, supplyID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.GetSupplyCacheKey(tenantID, supplyID), supply, time.Minute); err != nil {
			log.Debug().Err(err).Msg("Failed to cache supply")
		}
	}
	return supply, nil
}

// invalidateSupplies drops the cached reads of every supply an operation
// touched, so GetSupply never serves pre-mutation stock for a cache TTL.
func (s *SupplyService) invalidateSupplies(ctx context.Context, tenantID uuid.UUID, lines []models.SupplyLine) {
	if s.cache == nil {
		return
	}
	for i := range lines {
		if err := s.cache.Delete(ctx, cache.GetSupplyCacheKey(tenantID, lines[i].SupplyID)); err != nil {
			log.Debug().Err(err).Msg("Failed to invalidate supply cache")
		}
	}
}

func (s *SupplyService) recordStockDenied(err error) {
	var insufficient *models.InsufficientStockError
	if errors.As(err, &insufficient) {
		s.metrics.IncrementCounter(metrics.CounterStockDenied)
	}
}
