package vehicles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/locks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is an in-package mock for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, vehicle *Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, vehicleID uuid.UUID) (*Vehicle, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Vehicle), args.Error(1)
}

func (m *MockRepository) GetByVIN(ctx context.Context, vin string) (*Vehicle, error) {
	args := m.Called(ctx, vin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Vehicle), args.Error(1)
}

func (m *MockRepository) UpdateProfile(ctx context.Context, vehicle *Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *MockRepository) UpdateRisk(ctx context.Context, vehicleID uuid.UUID, score int, level RiskLevel, status Status) error {
	args := m.Called(ctx, vehicleID, score, level, status)
	return args.Error(0)
}

func (m *MockRepository) AdvanceMileage(ctx context.Context, vehicleID uuid.UUID, mileage int) (bool, error) {
	args := m.Called(ctx, vehicleID, mileage)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CountTamperingIncidents(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	args := m.Called(ctx, vehicleID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CountHighSeverityAccidents(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	args := m.Called(ctx, vehicleID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CountOwnersStartedSince(ctx context.Context, vehicleID uuid.UUID, since time.Time) (int, error) {
	args := m.Called(ctx, vehicleID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListIncidents(ctx context.Context, vehicleID uuid.UUID) ([]*Incident, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Incident), args.Error(1)
}

func (m *MockRepository) CreateOwner(ctx context.Context, owner *Owner) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *MockRepository) GetCurrentOwner(ctx context.Context, vehicleID uuid.UUID) (*Owner, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Owner), args.Error(1)
}

func (m *MockRepository) ListHighRisk(ctx context.Context, minScore, limit int) ([]*HighRiskVehicle, error) {
	args := m.Called(ctx, minScore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*HighRiskVehicle), args.Error(1)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type MockIncidentRecorder struct {
	mock.Mock
}

func (m *MockIncidentRecorder) RecordIncident(ctx context.Context, vehicleID uuid.UUID, severity, description string, mileage int, verifiedByIoT bool) error {
	args := m.Called(ctx, vehicleID, severity, description, mileage, verifiedByIoT)
	return args.Error(0)
}

func newTestService(repo *MockRepository, users *MockUserDirectory, incidents *MockIncidentRecorder) *Service {
	return NewService(repo, users, incidents, locks.NewKeyed())
}

// =============================================================================
// Test score-to-level and score-to-status mapping
// =============================================================================

func TestLevelForScore(t *testing.T) {
	assert.Equal(t, RiskLevelLow, LevelForScore(0))
	assert.Equal(t, RiskLevelLow, LevelForScore(30))
	assert.Equal(t, RiskLevelMedium, LevelForScore(31))
	assert.Equal(t, RiskLevelMedium, LevelForScore(70))
	assert.Equal(t, RiskLevelHigh, LevelForScore(71))
	assert.Equal(t, RiskLevelHigh, LevelForScore(100))
}

func TestStatusForScore(t *testing.T) {
	assert.Equal(t, StatusActive, StatusForScore(89))
	assert.Equal(t, StatusBlocked, StatusForScore(90))
	assert.Equal(t, StatusBlocked, StatusForScore(100))
}

// =============================================================================
// Test RecomputeRisk
// =============================================================================

func TestRecomputeRisk_CleanVehicle(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountHighSeverityAccidents", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountOwnersStartedSince", ctx, vehicleID, mock.Anything).Return(1, nil)
	mockRepo.On("UpdateRisk", ctx, vehicleID, 0, RiskLevelLow, StatusActive).Return(nil)

	score, err := service.RecomputeRisk(ctx, vehicleID)

	require.NoError(t, err)
	assert.Equal(t, 0, score)
	mockRepo.AssertExpectations(t)
}

func TestRecomputeRisk_SingleTamperingIncident(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(1, nil)
	mockRepo.On("CountHighSeverityAccidents", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountOwnersStartedSince", ctx, vehicleID, mock.Anything).Return(1, nil)
	mockRepo.On("UpdateRisk", ctx, vehicleID, 40, RiskLevelMedium, StatusActive).Return(nil)

	score, err := service.RecomputeRisk(ctx, vehicleID)

	require.NoError(t, err)
	assert.Equal(t, 40, score)
	mockRepo.AssertExpectations(t)
}

func TestRecomputeRisk_OwnerChurnPenalty(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	// 1 tampering + 1 high accident + 5 owners in 3 years = 40+20+25
	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(1, nil)
	mockRepo.On("CountHighSeverityAccidents", ctx, vehicleID).Return(1, nil)
	mockRepo.On("CountOwnersStartedSince", ctx, vehicleID, mock.Anything).Return(5, nil)
	mockRepo.On("UpdateRisk", ctx, vehicleID, 85, RiskLevelHigh, StatusActive).Return(nil)

	score, err := service.RecomputeRisk(ctx, vehicleID)

	require.NoError(t, err)
	assert.Equal(t, 85, score)
	mockRepo.AssertExpectations(t)
}

func TestRecomputeRisk_ExactlyFourOwnersNoPenalty(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountHighSeverityAccidents", ctx, vehicleID).Return(1, nil)
	mockRepo.On("CountOwnersStartedSince", ctx, vehicleID, mock.Anything).Return(4, nil)
	mockRepo.On("UpdateRisk", ctx, vehicleID, 20, RiskLevelLow, StatusActive).Return(nil)

	score, err := service.RecomputeRisk(ctx, vehicleID)

	require.NoError(t, err)
	assert.Equal(t, 20, score)
	mockRepo.AssertExpectations(t)
}

func TestRecomputeRisk_CappedAndBlocked(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	// 3 tampering incidents alone would be 120; score caps at 100 and
	// crossing 90 flips the vehicle to blocked.
	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(3, nil)
	mockRepo.On("CountHighSeverityAccidents", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountOwnersStartedSince", ctx, vehicleID, mock.Anything).Return(1, nil)
	mockRepo.On("UpdateRisk", ctx, vehicleID, 100, RiskLevelHigh, StatusBlocked).Return(nil)

	score, err := service.RecomputeRisk(ctx, vehicleID)

	require.NoError(t, err)
	assert.Equal(t, 100, score)
	mockRepo.AssertExpectations(t)
}

func TestRecomputeRisk_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(0, errors.New("db down"))

	_, err := service.RecomputeRisk(ctx, vehicleID)

	assert.Error(t, err)
}

// =============================================================================
// Test Create
// =============================================================================

func TestCreate_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	mockUsers := new(MockUserDirectory)
	service := newTestService(mockRepo, mockUsers, new(MockIncidentRecorder))
	ctx := context.Background()
	userID := uuid.New()

	mileage := 52000
	req := &CreateVehicleRequest{
		VIN:            "wba3a5c51cf256789",
		Make:           "BMW",
		Model:          "320i",
		Year:           2018,
		CurrentMileage: &mileage,
	}

	mockUsers.On("Exists", ctx, userID).Return(true, nil)
	mockRepo.On("GetByVIN", ctx, "WBA3A5C51CF256789").Return(nil, errors.New("not found"))
	mockRepo.On("Create", ctx, mock.AnythingOfType("*vehicles.Vehicle")).Return(nil)
	mockRepo.On("CreateOwner", ctx, mock.AnythingOfType("*vehicles.Owner")).Return(nil)

	vehicle, err := service.Create(ctx, userID, req)

	require.NoError(t, err)
	assert.Equal(t, "WBA3A5C51CF256789", vehicle.VIN)
	assert.Equal(t, 52000, vehicle.CurrentMileage)
	assert.Equal(t, "km", vehicle.MileageUnit)
	assert.Equal(t, StatusActive, vehicle.Status)
	assert.Equal(t, RiskLevelLow, vehicle.RiskLevel)
	assert.Equal(t, 0, vehicle.RiskScore)
	mockRepo.AssertExpectations(t)
}

func TestCreate_InvalidVIN(t *testing.T) {
	service := newTestService(new(MockRepository), new(MockUserDirectory), new(MockIncidentRecorder))

	// I, O and Q are excluded from the VIN alphabet
	req := &CreateVehicleRequest{VIN: "WBA3A5C51CF25678I", Make: "BMW", Model: "320i", Year: 2018}

	_, err := service.Create(context.Background(), uuid.New(), req)

	assert.Error(t, err)
}

func TestCreate_DuplicateVIN(t *testing.T) {
	mockRepo := new(MockRepository)
	mockUsers := new(MockUserDirectory)
	service := newTestService(mockRepo, mockUsers, new(MockIncidentRecorder))
	ctx := context.Background()
	userID := uuid.New()

	req := &CreateVehicleRequest{VIN: "WBA3A5C51CF256789", Make: "BMW", Model: "320i", Year: 2018}

	mockUsers.On("Exists", ctx, userID).Return(true, nil)
	mockRepo.On("GetByVIN", ctx, "WBA3A5C51CF256789").Return(&Vehicle{ID: uuid.New()}, nil)

	_, err := service.Create(ctx, userID, req)

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =============================================================================
// Test Update - mileage rollback on profile edits
// =============================================================================

func TestUpdate_MileageRollbackRecordsIncidentButProceeds(t *testing.T) {
	mockRepo := new(MockRepository)
	mockIncidents := new(MockIncidentRecorder)
	service := newTestService(mockRepo, new(MockUserDirectory), mockIncidents)
	ctx := context.Background()
	vehicleID := uuid.New()
	userID := uuid.New()

	vehicle := &Vehicle{ID: vehicleID, VIN: "WBA3A5C51CF256789", CurrentMileage: 80000, Status: StatusActive}
	newMileage := 50000

	mockRepo.On("GetByID", ctx, vehicleID).Return(vehicle, nil)
	mockRepo.On("GetCurrentOwner", ctx, vehicleID).Return(&Owner{UserID: userID}, nil)
	mockIncidents.On("RecordIncident", ctx, vehicleID, "critical",
		"Mileage rollback detected: 80000 → 50000 km", 50000, false).Return(nil)
	mockRepo.On("CountTamperingIncidents", ctx, vehicleID).Return(1, nil)
	mockRepo.On("CountHighSeverityAccidents", ctx, vehicleID).Return(0, nil)
	mockRepo.On("CountOwnersStartedSince", ctx, vehicleID, mock.Anything).Return(1, nil)
	mockRepo.On("UpdateRisk", ctx, vehicleID, 40, RiskLevelMedium, StatusActive).Return(nil)
	mockRepo.On("UpdateProfile", ctx, mock.AnythingOfType("*vehicles.Vehicle")).Return(nil)

	_, err := service.Update(ctx, vehicleID, userID, &UpdateVehicleRequest{CurrentMileage: &newMileage})

	// the write goes through; only the ledger is protected by rejection
	require.NoError(t, err)
	mockIncidents.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestUpdate_NotCurrentOwner(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()
	vehicleID := uuid.New()

	mockRepo.On("GetByID", ctx, vehicleID).Return(&Vehicle{ID: vehicleID}, nil)
	mockRepo.On("GetCurrentOwner", ctx, vehicleID).Return(&Owner{UserID: uuid.New()}, nil)

	_, err := service.Update(ctx, vehicleID, uuid.New(), &UpdateVehicleRequest{})

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestUpdate_ForwardMileageNoIncident(t *testing.T) {
	mockRepo := new(MockRepository)
	mockIncidents := new(MockIncidentRecorder)
	service := newTestService(mockRepo, new(MockUserDirectory), mockIncidents)
	ctx := context.Background()
	vehicleID := uuid.New()
	userID := uuid.New()

	vehicle := &Vehicle{ID: vehicleID, CurrentMileage: 80000}
	newMileage := 81000

	mockRepo.On("GetByID", ctx, vehicleID).Return(vehicle, nil)
	mockRepo.On("GetCurrentOwner", ctx, vehicleID).Return(&Owner{UserID: userID}, nil)
	mockRepo.On("UpdateProfile", ctx, mock.AnythingOfType("*vehicles.Vehicle")).Return(nil)

	_, err := service.Update(ctx, vehicleID, userID, &UpdateVehicleRequest{CurrentMileage: &newMileage})

	require.NoError(t, err)
	mockIncidents.AssertNotCalled(t, "RecordIncident", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Test ListHighRisk recommendations
// =============================================================================

func TestListHighRisk_Recommendations(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserDirectory), new(MockIncidentRecorder))
	ctx := context.Background()

	rows := []*HighRiskVehicle{
		{VIN: "WBA3A5C51CF256789", RiskScore: 95},
		{VIN: "JH4KA7650MC012345", RiskScore: 75},
	}
	mockRepo.On("ListHighRisk", ctx, 60, 20).Return(rows, nil)

	result, err := service.ListHighRisk(ctx, 0)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "BLOCK IMMEDIATELY", result[0].Recommendation)
	assert.Equal(t, "REQUIRES VERIFICATION", result[1].Recommendation)
}
