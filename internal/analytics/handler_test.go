package analytics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(repo *MockRepository) *gin.Engine {
	handler := NewHandler(NewService(repo))
	router := gin.New()
	router.GET("/api/v1/analytics/vehicles/:id/anomalies", handler.DetectAnomalies)
	router.GET("/api/v1/analytics/vehicles/:id/forecast", handler.Forecast)
	return router
}

func TestHandler_DetectAnomalies_InvalidID(t *testing.T) {
	router := setupRouter(new(MockRepository))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/vehicles/not-a-uuid/anomalies", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_DetectAnomalies_OK(t *testing.T) {
	repo := new(MockRepository)
	vehicleID := uuid.New()
	repo.On("ListMileagePoints", mock.Anything, vehicleID).
		Return(pointsFromDeltas(10000, []int{100, 100, 100, 100}), nil)

	router := setupRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/vehicles/"+vehicleID.String()+"/anomalies", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"points":5`)
	assert.Contains(t, w.Body.String(), `"anomalies":null`)
	repo.AssertExpectations(t)
}

func TestHandler_Forecast_DaysAheadBounds(t *testing.T) {
	router := setupRouter(new(MockRepository))
	vehicleID := uuid.New()

	for _, q := range []string{"days_ahead=0", "days_ahead=3651", "days_ahead=abc", "days_ahead=-5"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/vehicles/"+vehicleID.String()+"/forecast?"+q, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestHandler_Forecast_InsufficientData(t *testing.T) {
	repo := new(MockRepository)
	vehicleID := uuid.New()
	repo.On("ListMileagePoints", mock.Anything, vehicleID).
		Return(pointsFromDeltas(10000, nil), nil)

	router := setupRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/vehicles/"+vehicleID.String()+"/forecast?days_ahead=30", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
