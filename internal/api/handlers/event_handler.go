package handlers

import (
	"net/http"
	"strconv"

	"example.com/venueops/services/booking/internal/services"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	eventService *services.EventService
	tracer       tracing.Tracer
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService, tracer tracing.Tracer) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		tracer:       tracer,
	}
}

// HandleCreateEvent books a new event
func (h *EventHandler) HandleCreateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-event")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var input services.CreateEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "tenant_id", tenant.String())
	h.tracer.AddAttribute(txn, "resource_kind", string(input.ResourceKind))

	event, err := h.eventService.CreateEvent(c.Request.Context(), tenant, &input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// HandleGetEvent fetches one event
func (h *EventHandler) HandleGetEvent(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := h.eventService.GetEvent(c.Request.Context(), tenant, eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// HandleUpdateEvent patches an event
func (h *EventHandler) HandleUpdateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-update-event")
	defer h.tracer.EndTransaction(txn)

	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var patch services.UpdateEventInput
	if err := c.ShouldBindJSON(&patch); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.eventService.UpdateEvent(c.Request.Context(), tenant, eventID, &patch)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// HandleCancelEvent cancels an event and returns its supplies to stock
func (h *EventHandler) HandleCancelEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-cancel-event")
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

	event, err := h.eventService.CancelEvent(c.Request.Context(), tenant, eventID, actor)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// HandleArchiveEvent soft-deletes an event
func (h *EventHandler) HandleArchiveEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-archive-event")
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

	event, err := h.eventService.ArchiveEvent(c.Request.Context(), tenant, eventID, actor)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// HandleSearchEvents runs an operator text search over the event index
func (h *EventHandler) HandleSearchEvents(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	text := c.Query("q")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	docs, err := h.eventService.SearchEvents(c.Request.Context(), tenant, text, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs})
}

// RegisterRoutes registers the handler's routes
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/events", h.HandleCreateEvent)
	v1.GET("/events/search", h.HandleSearchEvents)
	v1.GET("/events/:id", h.HandleGetEvent)
	v1.PATCH("/events/:id", h.HandleUpdateEvent)
	v1.POST("/events/:id/cancel", h.HandleCancelEvent)
	v1.POST("/events/:id/archive", h.HandleArchiveEvent)
}
