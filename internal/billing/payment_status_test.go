package billing

import (
	"testing"

	"example.com/venueops/services/booking/internal/models"

	"github.com/stretchr/testify/require"
)

func TestDerivePartialThenPaid(t *testing.T) {
	partial := Derive(1000, 600)
	require.Equal(t, models.PaymentStatePartial, partial.Status)
	require.Equal(t, 600.00, partial.PaidAmount)
	require.Equal(t, 400.00, partial.AmountDue)

	paid := Derive(1000, 1000)
	require.Equal(t, models.PaymentStatePaid, paid.Status)
	require.Equal(t, 0.00, paid.AmountDue)
}

func TestDeriveZeroTotalIsNeverPaid(t *testing.T) {
	s := Derive(0, 0)
	require.Equal(t, models.PaymentStateUnpaid, s.Status)
	require.Equal(t, 0.00, s.AmountDue)
}

func TestDeriveOverpayment(t *testing.T) {
	s := Derive(500, 700)
	require.Equal(t, models.PaymentStatePaid, s.Status)
	require.Equal(t, 700.00, s.PaidAmount)
	require.Equal(t, 0.00, s.AmountDue)
}

func TestDeriveUnpaid(t *testing.T) {
	s := Derive(250, 0)
	require.Equal(t, models.PaymentStateUnpaid, s.Status)
	require.Equal(t, 250.00, s.AmountDue)
}

func TestNetAmount(t *testing.T) {
	payment := &models.Payment{
		Type:           models.PaymentTypeIncome,
		Status:         models.PaymentStatusCompleted,
		Amount:         500,
		Fees:           15,
		RefundedAmount: 100,
	}
	require.Equal(t, 385.00, NetAmount(payment))
}

func TestNetAmountExcludesNonContributors(t *testing.T) {
	pending := &models.Payment{
		Type:   models.PaymentTypeIncome,
		Status: "pending",
		Amount: 500,
	}
	require.Equal(t, 0.00, NetAmount(pending))

	expense := &models.Payment{
		Type:   models.PaymentTypeExpense,
		Status: models.PaymentStatusCompleted,
		Amount: 500,
	}
	require.Equal(t, 0.00, NetAmount(expense))

	archived := &models.Payment{
		Type:       models.PaymentTypeIncome,
		Status:     models.PaymentStatusCompleted,
		Amount:     500,
		IsArchived: true,
	}
	require.Equal(t, 0.00, NetAmount(archived))
}
