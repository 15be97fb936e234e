package billing

import (
	"testing"

	"example.com/venueops/services/booking/internal/models"

	"github.com/stretchr/testify/require"
)

func TestComputePercentDiscountWithTax(t *testing.T) {
	services := []models.ServiceItem{
		{Name: "Sound system", Price: 200},
	}

	q := Compute(1000, services, nil, 10, models.DiscountKindPercent, 19)

	require.Equal(t, 1200.00, q.Subtotal)
	require.Equal(t, 120.00, q.DiscountAmount)
	require.Equal(t, 1080.00, q.TaxableAmount)
	require.Equal(t, 205.20, q.TaxAmount)
	require.Equal(t, 1285.20, q.Total)
}

func TestComputeFixedDiscount(t *testing.T) {
	q := Compute(500, nil, nil, 50, models.DiscountKindFixed, 0)

	require.Equal(t, 500.00, q.Subtotal)
	require.Equal(t, 50.00, q.DiscountAmount)
	require.Equal(t, 450.00, q.TaxableAmount)
	require.Equal(t, 0.00, q.TaxAmount)
	require.Equal(t, 450.00, q.Total)
}

func TestComputeChargeableSupplyLines(t *testing.T) {
	lines := []models.SupplyLine{
		{
			PricingKind:   models.SupplyPricingChargeable,
			Status:        models.SupplyLinePending,
			RequestedQty:  10,
			CostPerUnit:   2.50,
			ChargePerUnit: 5.00,
		},
		{
			// Included lines accrue cost but never charge
			PricingKind:   models.SupplyPricingIncluded,
			Status:        models.SupplyLinePending,
			RequestedQty:  4,
			CostPerUnit:   3.00,
			ChargePerUnit: 6.00,
		},
	}

	q := Compute(100, nil, lines, 0, models.DiscountKindFixed, 0)

	require.Equal(t, 50.00, q.SuppliesCharge)
	require.Equal(t, 37.00, q.SuppliesCost)
	require.Equal(t, 150.00, q.Subtotal)
	require.Equal(t, 150.00, q.Total)
}

func TestComputeAllocatedQtyWinsOverRequested(t *testing.T) {
	lines := []models.SupplyLine{
		{
			PricingKind:   models.SupplyPricingChargeable,
			Status:        models.SupplyLineAllocated,
			RequestedQty:  10,
			AllocatedQty:  8,
			ChargePerUnit: 5.00,
		},
	}

	q := Compute(0, nil, lines, 0, models.DiscountKindFixed, 0)

	require.Equal(t, 40.00, q.SuppliesCharge)
	require.Equal(t, 40.00, q.Total)
}

func TestComputeCancelledLinesContributeNothing(t *testing.T) {
	lines := []models.SupplyLine{
		{
			PricingKind:   models.SupplyPricingChargeable,
			Status:        models.SupplyLineCancelled,
			RequestedQty:  10,
			CostPerUnit:   2.00,
			ChargePerUnit: 5.00,
		},
	}

	q := Compute(100, nil, lines, 0, models.DiscountKindFixed, 0)

	require.Equal(t, 0.00, q.SuppliesCharge)
	require.Equal(t, 0.00, q.SuppliesCost)
	require.Equal(t, 100.00, q.Total)
}

func TestComputeDiscountLargerThanSubtotal(t *testing.T) {
	q := Compute(100, nil, nil, 150, models.DiscountKindFixed, 19)

	require.Equal(t, 0.00, q.TaxableAmount)
	require.Equal(t, 0.00, q.TaxAmount)
	require.Equal(t, 0.00, q.Total)
}

func TestComputeIsDeterministic(t *testing.T) {
	services := []models.ServiceItem{{Name: "Catering", Price: 333.33}}

	first := Compute(999.99, services, nil, 7.5, models.DiscountKindPercent, 16)
	second := Compute(999.99, services, nil, 7.5, models.DiscountKindPercent, 16)

	require.Equal(t, first, second)
}

func TestLineTotals(t *testing.T) {
	chargeable := &models.SupplyLine{
		PricingKind:   models.SupplyPricingChargeable,
		Status:        models.SupplyLineAllocated,
		AllocatedQty:  3,
		CostPerUnit:   1.10,
		ChargePerUnit: 2.25,
	}
	cost, charge := LineTotals(chargeable)
	require.Equal(t, 3.30, cost)
	require.Equal(t, 6.75, charge)

	included := &models.SupplyLine{
		PricingKind:   models.SupplyPricingIncluded,
		Status:        models.SupplyLinePending,
		RequestedQty:  2,
		CostPerUnit:   4.00,
		ChargePerUnit: 8.00,
	}
	cost, charge = LineTotals(included)
	require.Equal(t, 8.00, cost)
	require.Equal(t, 0.00, charge)
}

func TestRound2(t *testing.T) {
	require.Equal(t, 1.23, Round2(1.2349))
	require.Equal(t, 1.24, Round2(1.236))
	require.Equal(t, -1.23, Round2(-1.2349))
}
