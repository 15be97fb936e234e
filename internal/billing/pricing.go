// Package billing holds the pure pricing calculator and the payment status
// deriver. Both are deterministic functions of their inputs; the event
// aggregate re-runs them on every change to a priced field.
package billing

import (
	"math"

	"example.com/venueops/services/booking/internal/models"
)

// Round2 rounds a monetary value to 2 decimal places, the precision every
// stored amount carries.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Quote is the computed pricing snapshot of an event.
type Quote struct {
	ServicesTotal  float64
	SuppliesCharge float64
	SuppliesCost   float64
	Subtotal       float64
	DiscountAmount float64
	TaxableAmount  float64
	TaxAmount      float64
	Total          float64
}

// Compute derives a quote from the priced inputs. Only chargeable supply
// lines contribute to the charge; included lines still accrue cost for margin
// reporting. Re-invoking with unchanged inputs yields an identical quote.
func Compute(
	basePrice float64,
	services []models.ServiceItem,
	lines []models.SupplyLine,
	discount float64,
	discountKind models.DiscountKind,
	taxRate float64,
) Quote {
	var q Quote

	for _, svc := range services {
		q.ServicesTotal += svc.Price
	}
	q.ServicesTotal = Round2(q.ServicesTotal)

	for i := range lines {
		qty := lines[i].EffectiveQty()
		if qty <= 0 {
			continue
		}
		q.SuppliesCost += float64(qty) * lines[i].CostPerUnit
		if lines[i].PricingKind == models.SupplyPricingChargeable {
			q.SuppliesCharge += float64(qty) * lines[i].ChargePerUnit
		}
	}
	q.SuppliesCost = Round2(q.SuppliesCost)
	q.SuppliesCharge = Round2(q.SuppliesCharge)

	q.Subtotal = Round2(basePrice + q.ServicesTotal + q.SuppliesCharge)

	switch discountKind {
	case models.DiscountKindPercent:
		q.DiscountAmount = Round2(q.Subtotal * discount / 100)
	default:
		q.DiscountAmount = Round2(discount)
	}

	q.TaxableAmount = Round2(math.Max(0, q.Subtotal-q.DiscountAmount))
	q.TaxAmount = Round2(q.TaxableAmount * taxRate / 100)
	q.Total = Round2(q.TaxableAmount + q.TaxAmount)

	return q
}

// LineTotals returns the frozen per-line cost and charge totals. Charge is
// zero for non-chargeable lines.
func LineTotals(l *models.SupplyLine) (cost, charge float64) {
	qty := l.EffectiveQty()
	if qty <= 0 {
		return 0, 0
	}
	cost = Round2(float64(qty) * l.CostPerUnit)
	if l.PricingKind == models.SupplyPricingChargeable {
		charge = Round2(float64(qty) * l.ChargePerUnit)
	}
	return cost, charge
}
