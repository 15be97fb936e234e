package handlers

import (
	"net/http"

	"example.com/venueops/services/booking/internal/services"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PaymentHandler receives payment lifecycle webhooks from the payments
// collaborator
type PaymentHandler struct {
	eventService *services.EventService
	tracer       tracing.Tracer
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(eventService *services.EventService, tracer tracing.Tracer) *PaymentHandler {
	return &PaymentHandler{
		eventService: eventService,
		tracer:       tracer,
	}
}

// HandlePaymentChanged records a payment lifecycle message and re-derives
// the affected event's payment summary
func (h *PaymentHandler) HandlePaymentChanged(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-payment-changed")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var msg services.PaymentMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The header tenant wins over whatever the payload claims.
	msg.TenantID = tenant

	h.tracer.AddAttribute(txn, "payment_id", msg.PaymentID.String())
	h.tracer.AddAttribute(txn, "event_id", msg.EventID.String())

	if err := h.eventService.RecordPayment(c.Request.Context(), &msg); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// RegisterRoutes registers the handler's routes
func (h *PaymentHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/payments", h.HandlePaymentChanged)
}
