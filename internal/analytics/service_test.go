package analytics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is an in-package mock for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListMileagePoints(ctx context.Context, vehicleID uuid.UUID) ([]*MileagePoint, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*MileagePoint), args.Error(1)
}

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// pointsFromDeltas builds a daily series starting at startMileage where the
// i-th step moves by deltas[i]
func pointsFromDeltas(startMileage int, deltas []int) []*MileagePoint {
	points := []*MileagePoint{{Mileage: startMileage, EventDate: day(0)}}
	mileage := startMileage
	for i, d := range deltas {
		mileage += d
		points = append(points, &MileagePoint{Mileage: mileage, EventDate: day(i + 1)})
	}
	return points
}

// =============================================================================
// Test DetectMileageAnomalies
// =============================================================================

func TestDetectAnomalies_NotEnoughData(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return([]*MileagePoint{
		{Mileage: 1000, EventDate: day(0)},
		{Mileage: 1100, EventDate: day(1)},
	}, nil)

	report, err := service.DetectMileageAnomalies(ctx, vehicleID)

	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.NotEmpty(t, report.Message)
	assert.Equal(t, 2, report.Points)
}

func TestDetectAnomalies_UniformHistoryIsClean(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	// identical deltas, zero variance: the z-score is undefined and nothing
	// must be flagged (and nothing divided by zero)
	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return(
		pointsFromDeltas(1000, []int{100, 100, 100, 100}), nil)

	report, err := service.DetectMileageAnomalies(ctx, vehicleID)

	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, 0.0, report.StdDev)
	assert.Equal(t, 100.0, report.MeanDelta)
}

func TestDetectAnomalies_RollbackFlagged(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	// eight steady days then a -5000 km drop; |z| = 2.83 for the drop
	deltas := []int{100, 100, 100, 100, 100, 100, 100, 100, -5000}
	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return(pointsFromDeltas(10000, deltas), nil)

	report, err := service.DetectMileageAnomalies(ctx, vehicleID)

	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)

	anomaly := report.Anomalies[0]
	assert.Equal(t, "rollback", anomaly.Type)
	assert.Equal(t, "high", anomaly.Severity)
	assert.Equal(t, -5000, anomaly.Delta)
	assert.Less(t, anomaly.ZScore, -2.0)
	assert.Greater(t, anomaly.ZScore, -3.0)
}

func TestDetectAnomalies_ExtremeOutlierIsCritical(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	// ten steady days then a huge jump; |z| = 3.16 for the jump
	deltas := []int{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 50000}
	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return(pointsFromDeltas(10000, deltas), nil)

	report, err := service.DetectMileageAnomalies(ctx, vehicleID)

	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, "unusually_high", report.Anomalies[0].Type)
	assert.Equal(t, "critical", report.Anomalies[0].Severity)
}

// =============================================================================
// Test PredictFutureMileage
// =============================================================================

func TestForecast_InsufficientData(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return([]*MileagePoint{
		{Mileage: 1000, EventDate: day(0)},
	}, nil)

	_, err := service.PredictFutureMileage(ctx, vehicleID, 30)

	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
}

func TestForecast_PerfectLinearTrend(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	// 100 km/day: 1000 km on day 0, 11000 km on day 100
	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return([]*MileagePoint{
		{Mileage: 1000, EventDate: day(0)},
		{Mileage: 11000, EventDate: day(100)},
	}, nil)

	forecast, err := service.PredictFutureMileage(ctx, vehicleID, 10)

	require.NoError(t, err)
	assert.InDelta(t, 100.0, forecast.Slope, 0.001)
	assert.InDelta(t, 1000.0, forecast.Intercept, 0.001)
	assert.InDelta(t, 12000.0, forecast.PredictedMileage, 0.01)
	assert.InDelta(t, 1.0, forecast.RSquared, 0.0001)
	assert.Equal(t, "High accuracy", forecast.Confidence)
}

func TestForecast_FlatHistoryPerfectlyPredicted(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return([]*MileagePoint{
		{Mileage: 5000, EventDate: day(0)},
		{Mileage: 5000, EventDate: day(10)},
		{Mileage: 5000, EventDate: day(20)},
	}, nil)

	forecast, err := service.PredictFutureMileage(ctx, vehicleID, 30)

	require.NoError(t, err)
	assert.InDelta(t, 0.0, forecast.Slope, 0.0001)
	assert.InDelta(t, 5000.0, forecast.PredictedMileage, 0.01)
	assert.Equal(t, 1.0, forecast.RSquared)
	assert.Equal(t, "High accuracy", forecast.Confidence)
}

func TestForecast_SameDayObservationsRejected(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return([]*MileagePoint{
		{Mileage: 1000, EventDate: day(0)},
		{Mileage: 1200, EventDate: day(0)},
	}, nil)

	_, err := service.PredictFutureMileage(ctx, vehicleID, 30)

	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
}

func TestForecast_NoisyTrendLowConfidence(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	vehicleID := uuid.New()

	// mileage bouncing around with no real trend
	mockRepo.On("ListMileagePoints", ctx, vehicleID).Return([]*MileagePoint{
		{Mileage: 1000, EventDate: day(0)},
		{Mileage: 9000, EventDate: day(10)},
		{Mileage: 1500, EventDate: day(20)},
		{Mileage: 8000, EventDate: day(30)},
		{Mileage: 2000, EventDate: day(40)},
	}, nil)

	forecast, err := service.PredictFutureMileage(ctx, vehicleID, 30)

	require.NoError(t, err)
	assert.Equal(t, "Low accuracy", forecast.Confidence)
}
