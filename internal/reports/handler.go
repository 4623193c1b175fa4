package reports

import (
	"net/http"
	"strings"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for provenance reports
type Handler struct {
	service *Service
}

// NewHandler creates a new report handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Generate handles POST /api/v1/reports/:vin
func (h *Handler) Generate(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	vin := strings.ToUpper(c.Param("vin"))
	report, err := h.service.GenerateReport(c.Request.Context(), vin, userID, req.CheckType)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to generate report")
		return
	}

	common.SuccessResponse(c, report)
}
