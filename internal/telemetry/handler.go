package telemetry

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for device telemetry
type Handler struct {
	service *Service
}

// NewHandler creates a new telemetry handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func respondServiceError(c *gin.Context, err error, fallback string) {
	if appErr, ok := common.AsAppError(err); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}

// Ingest handles POST /api/v1/iot/telemetry
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VIN = strings.ToUpper(req.VIN)

	resp, err := h.service.Ingest(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err, "failed to ingest telemetry")
		return
	}

	common.CreatedResponse(c, resp)
}

// GetLatest handles GET /api/v1/iot/telemetry/:vin/latest
func (h *Handler) GetLatest(c *gin.Context) {
	snapshot, err := h.service.GetLatest(c.Request.Context(), c.Param("vin"))
	if err != nil {
		respondServiceError(c, err, "failed to get latest telemetry")
		return
	}
	common.SuccessResponse(c, snapshot)
}

// GetHistory handles GET /api/v1/iot/telemetry/:vin/history
func (h *Handler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	history, err := h.service.GetHistory(c.Request.Context(), c.Param("vin"), limit)
	if err != nil {
		respondServiceError(c, err, "failed to get telemetry history")
		return
	}
	common.SuccessResponse(c, history)
}

// GetStats handles GET /api/v1/iot/telemetry/:vin/stats
func (h *Handler) GetStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := h.service.GetUsageStats(c.Request.Context(), c.Param("vin"), days)
	if err != nil {
		respondServiceError(c, err, "failed to get usage stats")
		return
	}
	common.SuccessResponse(c, stats)
}

// GetTamperingHistory handles GET /api/v1/iot/tampering/:vin
func (h *Handler) GetTamperingHistory(c *gin.Context) {
	incidents, err := h.service.GetTamperingHistory(c.Request.Context(), c.Param("vin"))
	if err != nil {
		respondServiceError(c, err, "failed to get tampering history")
		return
	}
	common.SuccessResponse(c, incidents)
}

// Sync handles POST /api/v1/iot/sync/:vin
func (h *Handler) Sync(c *gin.Context) {
	resp, err := h.service.Sync(c.Request.Context(), c.Param("vin"))
	if err != nil {
		respondServiceError(c, err, "failed to sync device")
		return
	}
	common.SuccessResponse(c, resp)
}

// GetConfig handles GET /api/v1/iot/config/:vin
func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.service.GetConfig(c.Request.Context(), c.Param("vin"))
	if err != nil {
		respondServiceError(c, err, "failed to get device config")
		return
	}
	common.SuccessResponse(c, cfg.View())
}

// UpdateConfig handles PUT /api/v1/iot/config/:vin
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.service.UpdateDeviceConfig(c.Request.Context(), c.Param("vin"), &req)
	if err != nil {
		respondServiceError(c, err, "failed to update device config")
		return
	}
	common.SuccessResponse(c, cfg.View())
}
