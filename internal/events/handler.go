package events

import (
	"net/http"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/middleware"
	"github.com/NureSalohubAndrii/carvision/pkg/pagination"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for history events
type Handler struct {
	service *Service
}

// NewHandler creates a new event handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/vehicles/:id/events
func (h *Handler) Create(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.service.Create(c.Request.Context(), vehicleID, userID, &req)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to create event")
		return
	}

	common.CreatedResponse(c, event)
}

// List handles GET /api/v1/vehicles/:id/events
func (h *Handler) List(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	params := pagination.ParseParams(c)
	filter := &ListFilter{Limit: params.Limit, Offset: params.Offset}

	if v := c.Query("event_type"); v != "" {
		eventType := EventType(v)
		filter.EventType = &eventType
	}
	if v := c.Query("severity"); v != "" {
		severity := Severity(v)
		filter.Severity = &severity
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid from date")
			return
		}
		filter.From = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid to date")
			return
		}
		filter.To = &to
	}

	events, total, err := h.service.ListByVehicle(c.Request.Context(), vehicleID, filter)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list events")
		return
	}

	meta := pagination.BuildMeta(params.Limit, params.Offset, total)
	common.SuccessResponseWithMeta(c, events, meta)
}

// Update handles PUT /api/v1/events/:id
func (h *Handler) Update(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid event ID")
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.service.Update(c.Request.Context(), eventID, userID, &req)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to update event")
		return
	}

	common.SuccessResponse(c, event)
}

// Delete handles DELETE /api/v1/events/:id
func (h *Handler) Delete(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid event ID")
		return
	}

	if err := h.service.Delete(c.Request.Context(), eventID, userID); err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to delete event")
		return
	}

	common.SuccessResponse(c, gin.H{"deleted": true})
}
