package billing

import (
	"math"

	"example.com/venueops/services/booking/internal/models"
)

// Summary is the derived payment view of an event.
type Summary struct {
	PaidAmount float64
	Status     models.PaymentState
	AmountDue  float64
}

// Derive maps (total, paid) onto a payment summary. Paid requires a positive
// total fully covered; anything between zero and the total is partial.
func Derive(total, paidAmount float64) Summary {
	paid := Round2(paidAmount)
	status := models.PaymentStateUnpaid
	switch {
	case total > 0 && paid >= total:
		status = models.PaymentStatePaid
	case paid > 0 && paid < total:
		status = models.PaymentStatePartial
	}
	return Summary{
		PaidAmount: paid,
		Status:     status,
		AmountDue:  Round2(math.Max(0, total-paid)),
	}
}

// NetAmount is the contribution of one payment to the paid total: amount
// minus fees minus refunds. Only completed, non-archived income payments
// count; everything else contributes zero.
func NetAmount(p *models.Payment) float64 {
	if p.Type != models.PaymentTypeIncome || p.Status != models.PaymentStatusCompleted || p.IsArchived {
		return 0
	}
	return Round2(p.Amount - p.Fees - p.RefundedAmount)
}
