package services

import (
	"context"
	"time"

	"example.com/venueops/services/booking/internal/billing"
	"example.com/venueops/services/booking/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// applyPricing recomputes the pricing snapshot of an event from its current
// priced fields and supply lines.
func applyPricing(event *models.Event) error {
	items, err := event.ServiceItems()
	if err != nil {
		return err
	}
	quote := billing.Compute(event.BasePrice, items, event.SupplyLines,
		event.Discount, event.DiscountKind, event.TaxRate)
	event.Subtotal = quote.Subtotal
	event.DiscountAmount = quote.DiscountAmount
	event.TaxAmount = quote.TaxAmount
	event.Total = quote.Total
	return nil
}

// applySummary re-derives the payment summary from the current total and the
// recomputed paid amount.
func applySummary(event *models.Event, paidAmount float64) {
	summary := billing.Derive(event.Total, paidAmount)
	event.PaidAmount = summary.PaidAmount
	event.PaymentStatus = summary.Status
	event.AmountDue = summary.AmountDue
}

// returnSupplyLines puts every allocated or delivered line of an event back
// into stock: increment, return movement, line cancelled. A vanished supply
// is logged and skipped; the line is still cancelled since the stock it held
// no longer exists.
func returnSupplyLines(ctx context.Context, supplies SupplyRepository, events EventRepository, event *models.Event, actorID uuid.UUID) error {
	now := time.Now()
	for i := range event.SupplyLines {
		line := &event.SupplyLines[i]
		if line.Status != models.SupplyLineAllocated && line.Status != models.SupplyLineDelivered {
			continue
		}

		qty := line.AllocatedQty
		if qty > 0 {
			ok, err := supplies.IncrementStock(ctx, event.TenantID, line.SupplyID, qty)
			if err != nil {
				return err
			}
			if !ok {
				log.Warn().
					Str("event_id", event.ID.String()).
					Str("supply_id", line.SupplyID.String()).
					Int("quantity", qty).
					Msg("Supply no longer exists, skipping stock return")
			} else {
				movement := &models.StockMovement{
					ID:        uuid.New(),
					TenantID:  event.TenantID,
					SupplyID:  line.SupplyID,
					Date:      now,
					Delta:     qty,
					Kind:      models.MovementReturn,
					Reference: event.ID.String(),
					ActorID:   &actorID,
				}
				if err := supplies.AppendMovement(ctx, movement); err != nil {
					return err
				}
				if err := refreshSupplyStatus(ctx, supplies, event.TenantID, line.SupplyID); err != nil {
					return err
				}
			}
		}

		line.Status = models.SupplyLineCancelled
		line.AllocatedQty = 0
		line.TotalCost, line.TotalCharge = billing.LineTotals(line)
		if err := events.SaveLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// refreshSupplyStatus re-derives a supply's status from its stock level after
// a mutation.
func refreshSupplyStatus(ctx context.Context, supplies SupplyRepository, tenantID, supplyID uuid.UUID) error {
	supply, err := supplies.GetByID(ctx, tenantID, supplyID)
	if err != nil {
		return err
	}
	derived := supply.DeriveStatus()
	if derived == supply.Status {
		return nil
	}
	return supplies.UpdateStatus(ctx, tenantID, supplyID, derived)
}
