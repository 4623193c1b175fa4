package reports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	redisclient "github.com/NureSalohubAndrii/carvision/pkg/redis"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is an in-package mock for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetVehicleProfile(ctx context.Context, vin string) (uuid.UUID, *VehicleProfile, error) {
	args := m.Called(ctx, vin)
	if args.Get(1) == nil {
		return uuid.Nil, nil, args.Error(2)
	}
	return args.Get(0).(uuid.UUID), args.Get(1).(*VehicleProfile), args.Error(2)
}

func (m *MockRepository) ListKeyEvents(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*ReportEvent, error) {
	args := m.Called(ctx, vehicleID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ReportEvent), args.Error(1)
}

func (m *MockRepository) ListAllEvents(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*ReportEvent, error) {
	args := m.Called(ctx, vehicleID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ReportEvent), args.Error(1)
}

func (m *MockRepository) ListOwners(ctx context.Context, vehicleID uuid.UUID) ([]*OwnershipPeriod, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OwnershipPeriod), args.Error(1)
}

func (m *MockRepository) CountCriticalTampering(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	args := m.Called(ctx, vehicleID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CountHighAccidents(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	args := m.Called(ctx, vehicleID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) InsertCheck(ctx context.Context, check *Check) error {
	args := m.Called(ctx, check)
	return args.Error(0)
}

const testVIN = "WBA3A5C51CF256789"

func cleanProfile() *VehicleProfile {
	return &VehicleProfile{
		VIN:            testVIN,
		Make:           "BMW",
		Model:          "320i",
		Year:           2018,
		CurrentMileage: 82000,
		MileageUnit:    "km",
		RiskScore:      0,
		RiskLevel:      "low",
		Status:         "active",
	}
}

// =============================================================================
// Test GenerateReport - tiers
// =============================================================================

func TestGenerateReport_BasicTierOmitsOwners(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil)
	ctx := context.Background()
	vehicleID := uuid.New()
	userID := uuid.New()

	mockRepo.On("GetVehicleProfile", ctx, testVIN).Return(vehicleID, cleanProfile(), nil)
	mockRepo.On("InsertCheck", ctx, mock.AnythingOfType("*reports.Check")).Return(nil)
	mockRepo.On("ListKeyEvents", ctx, vehicleID, basicEventLimit).Return([]*ReportEvent{
		{EventType: "accident", Severity: "low", EventDate: time.Now()},
	}, nil)
	mockRepo.On("CountCriticalTampering", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountHighAccidents", ctx, vehicleID).Return(0, nil)

	report, err := service.GenerateReport(ctx, testVIN, userID, CheckTypeBasic)

	require.NoError(t, err)
	assert.Nil(t, report.Owners)
	assert.Len(t, report.Events, 1)
	mockRepo.AssertNotCalled(t, "ListOwners", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "ListAllEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateReport_ExtendedTierIncludesOwnerTimeline(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("GetVehicleProfile", ctx, testVIN).Return(vehicleID, cleanProfile(), nil)
	mockRepo.On("InsertCheck", ctx, mock.AnythingOfType("*reports.Check")).Return(nil)
	mockRepo.On("ListAllEvents", ctx, vehicleID, extendedEventLimit).Return([]*ReportEvent{}, nil)
	mockRepo.On("ListOwners", ctx, vehicleID).Return([]*OwnershipPeriod{
		{StartedAt: time.Now().AddDate(-2, 0, 0), IsCurrent: false},
		{StartedAt: time.Now().AddDate(-1, 0, 0), IsCurrent: true},
	}, nil)
	mockRepo.On("CountCriticalTampering", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountHighAccidents", ctx, vehicleID).Return(0, nil)

	report, err := service.GenerateReport(ctx, testVIN, uuid.New(), CheckTypeExtended)

	require.NoError(t, err)
	assert.Len(t, report.Owners, 2)
}

// =============================================================================
// Test GenerateReport - recommendations
// =============================================================================

func TestGenerateReport_TamperingDrivesDoNotBuy(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil)
	ctx := context.Background()
	vehicleID := uuid.New()

	profile := cleanProfile()
	profile.RiskScore = 40
	profile.RiskLevel = "medium"

	mockRepo.On("GetVehicleProfile", ctx, testVIN).Return(vehicleID, profile, nil)
	mockRepo.On("InsertCheck", ctx, mock.AnythingOfType("*reports.Check")).Return(nil)
	mockRepo.On("ListKeyEvents", ctx, vehicleID, basicEventLimit).Return([]*ReportEvent{}, nil)
	mockRepo.On("CountCriticalTampering", ctx, vehicleID).Return(1, nil)
	mockRepo.On("CountHighAccidents", ctx, vehicleID).Return(0, nil)

	report, err := service.GenerateReport(ctx, testVIN, uuid.New(), CheckTypeBasic)

	require.NoError(t, err)
	require.NotEmpty(t, report.Recommendations)
	assert.Equal(t, "critical", report.Recommendations[0].Level)
	assert.Contains(t, report.Recommendations[0].Message, "Do not buy")
}

func TestGenerateReport_CleanVehicleLowRecommendation(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("GetVehicleProfile", ctx, testVIN).Return(vehicleID, cleanProfile(), nil)
	mockRepo.On("InsertCheck", ctx, mock.AnythingOfType("*reports.Check")).Return(nil)
	mockRepo.On("ListKeyEvents", ctx, vehicleID, basicEventLimit).Return([]*ReportEvent{}, nil)
	mockRepo.On("CountCriticalTampering", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountHighAccidents", ctx, vehicleID).Return(0, nil)

	report, err := service.GenerateReport(ctx, testVIN, uuid.New(), CheckTypeBasic)

	require.NoError(t, err)
	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, "low", report.Recommendations[0].Level)
}

func TestGenerateReport_HighAccidentRecommendation(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil)
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("GetVehicleProfile", ctx, testVIN).Return(vehicleID, cleanProfile(), nil)
	mockRepo.On("InsertCheck", ctx, mock.AnythingOfType("*reports.Check")).Return(nil)
	mockRepo.On("ListKeyEvents", ctx, vehicleID, basicEventLimit).Return([]*ReportEvent{}, nil)
	mockRepo.On("CountCriticalTampering", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountHighAccidents", ctx, vehicleID).Return(2, nil)

	report, err := service.GenerateReport(ctx, testVIN, uuid.New(), CheckTypeBasic)

	require.NoError(t, err)
	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, "high", report.Recommendations[0].Level)
	assert.Contains(t, report.Recommendations[1].Message, "accident")
}

// =============================================================================
// Test GenerateReport - cache
// =============================================================================

func TestGenerateReport_ServedFromCacheStillRecordsCheck(t *testing.T) {
	mockRepo := new(MockRepository)
	db, cacheMock := redismock.NewClientMock()
	service := NewService(mockRepo, redisclient.NewFromClient(db))
	ctx := context.Background()
	vehicleID := uuid.New()

	cached := &Report{CheckType: CheckTypeBasic, GeneratedAt: time.Now(), Vehicle: cleanProfile()}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	mockRepo.On("GetVehicleProfile", ctx, testVIN).Return(vehicleID, cleanProfile(), nil)
	mockRepo.On("InsertCheck", ctx, mock.AnythingOfType("*reports.Check")).Return(nil)
	cacheMock.ExpectGet(reportCacheKey(testVIN, CheckTypeBasic)).SetVal(string(payload))

	report, err := service.GenerateReport(ctx, testVIN, uuid.New(), CheckTypeBasic)

	require.NoError(t, err)
	assert.Equal(t, testVIN, report.Vehicle.VIN)

	// the audit trail is written even on a cache hit
	mockRepo.AssertCalled(t, "InsertCheck", ctx, mock.AnythingOfType("*reports.Check"))
	mockRepo.AssertNotCalled(t, "ListKeyEvents", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}
