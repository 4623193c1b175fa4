package analytics

import (
	"net/http"
	"strconv"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for mileage analytics
type Handler struct {
	service *Service
}

// NewHandler creates a new analytics handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// DetectAnomalies handles GET /api/v1/analytics/vehicles/:id/anomalies
func (h *Handler) DetectAnomalies(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	report, err := h.service.DetectMileageAnomalies(c.Request.Context(), vehicleID)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to detect anomalies")
		return
	}

	common.SuccessResponse(c, report)
}

// Forecast handles GET /api/v1/analytics/vehicles/:id/forecast?days_ahead=N
func (h *Handler) Forecast(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	daysAhead, err := strconv.Atoi(c.DefaultQuery("days_ahead", "365"))
	if err != nil || daysAhead < 1 || daysAhead > 3650 {
		common.ErrorResponse(c, http.StatusBadRequest, "days_ahead must be between 1 and 3650")
		return
	}

	forecast, err := h.service.PredictFutureMileage(c.Request.Context(), vehicleID, daysAhead)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to build forecast")
		return
	}

	common.SuccessResponse(c, forecast)
}
