package handlers

import (
	"net/http"

	"example.com/venueops/services/booking/internal/models"
	"example.com/venueops/services/booking/internal/services"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/gin-gonic/gin"
)

// SupplyHandler handles supply allocation and stock ledger HTTP requests
type SupplyHandler struct {
	supplyService *services.SupplyService
	tracer        tracing.Tracer
}

// NewSupplyHandler creates a new supply handler
func NewSupplyHandler(supplyService *services.SupplyService, tracer tracing.Tracer) *SupplyHandler {
	return &SupplyHandler{
		supplyService: supplyService,
		tracer:        tracer,
	}
}

// HandleAllocate allocates the pending supply lines of an event
func (h *SupplyHandler) HandleAllocate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-allocate-supplies")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := h.supplyService.Allocate(c.Request.Context(), tenant, eventID, actor)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// HandleReturn returns the allocated supply lines of an event to stock
func (h *SupplyHandler) HandleReturn(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-return-supplies")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := h.supplyService.Return(c.Request.Context(), tenant, eventID, actor)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// HandleMarkDelivered marks the allocated supply lines of an event delivered
func (h *SupplyHandler) HandleMarkDelivered(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-deliver-supplies")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := h.supplyService.MarkDelivered(c.Request.Context(), tenant, eventID, actor)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// StockAdjustmentRequest is an operator stock movement
type StockAdjustmentRequest struct {
	Delta     int                 `json:"delta" binding:"required"`
	Kind      models.MovementKind `json:"kind" binding:"required"`
	Reference string              `json:"reference"`
}

// HandleAdjustStock applies a purchase, adjustment or waste movement
func (h *SupplyHandler) HandleAdjustStock(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-adjust-stock")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	supplyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	supply, err := h.supplyService.AdjustStock(c.Request.Context(), tenant, supplyID, req.Delta, req.Kind, req.Reference, actor)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, supply)
}

// HandleGetSupply fetches one supply
func (h *SupplyHandler) HandleGetSupply(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	supplyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	supply, err := h.supplyService.GetSupply(c.Request.Context(), tenant, supplyID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, supply)
}

// RegisterRoutes registers the handler's routes
func (h *SupplyHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/events/:id/supplies/allocate", h.HandleAllocate)
	v1.POST("/events/:id/supplies/return", h.HandleReturn)
	v1.POST("/events/:id/supplies/deliver", h.HandleMarkDelivered)
	v1.GET("/supplies/:id", h.HandleGetSupply)
	v1.POST("/supplies/:id/adjustments", h.HandleAdjustStock)
}
