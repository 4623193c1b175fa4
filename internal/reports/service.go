package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/logger"
	redisclient "github.com/NureSalohubAndrii/carvision/pkg/redis"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	reportCacheTTL     = 5 * time.Minute
	extendedEventLimit = 50
)

func reportCacheKey(vin string, checkType CheckType) string {
	return fmt.Sprintf("report:%s:%s", vin, checkType)
}

// Service assembles tiered provenance reports
type Service struct {
	repo  ReportRepository
	cache *redisclient.Client
}

// NewService creates a new report service. cache may be nil.
func NewService(repo ReportRepository, cache *redisclient.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// GenerateReport builds a report for the given tier. Every request is
// recorded as a vehicle check, including ones served from cache: the check
// log is an audit trail of who looked at what, not a build log.
func (s *Service) GenerateReport(ctx context.Context, vin string, userID uuid.UUID, checkType CheckType) (*Report, error) {
	vehicleID, profile, err := s.repo.GetVehicleProfile(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	check := &Check{
		ID:        uuid.New(),
		VehicleID: vehicleID,
		UserID:    userID,
		CheckType: checkType,
		CreatedAt: time.Now(),
	}
	if err := s.repo.InsertCheck(ctx, check); err != nil {
		return nil, common.NewInternalServerError("failed to record vehicle check")
	}

	if cached := s.cachedReport(ctx, vin, checkType); cached != nil {
		return cached, nil
	}

	report := &Report{
		CheckType:   checkType,
		GeneratedAt: time.Now(),
		Vehicle:     profile,
	}

	switch checkType {
	case CheckTypeBasic:
		report.Events, err = s.repo.ListKeyEvents(ctx, vehicleID, basicEventLimit)
	default:
		report.Events, err = s.repo.ListAllEvents(ctx, vehicleID, extendedEventLimit)
	}
	if err != nil {
		return nil, common.NewInternalServerError("failed to load event history")
	}

	if checkType != CheckTypeBasic {
		report.Owners, err = s.repo.ListOwners(ctx, vehicleID)
		if err != nil {
			return nil, common.NewInternalServerError("failed to load owner timeline")
		}
	}

	recommendations, err := s.buildRecommendations(ctx, vehicleID, profile)
	if err != nil {
		return nil, err
	}
	report.Recommendations = recommendations

	s.cacheReport(ctx, vin, checkType, report)

	return report, nil
}

// buildRecommendations turns the risk profile into buying advice
func (s *Service) buildRecommendations(ctx context.Context, vehicleID uuid.UUID, profile *VehicleProfile) ([]*Recommendation, error) {
	tampering, err := s.repo.CountCriticalTampering(ctx, vehicleID)
	if err != nil {
		return nil, common.NewInternalServerError("failed to count tampering incidents")
	}
	highAccidents, err := s.repo.CountHighAccidents(ctx, vehicleID)
	if err != nil {
		return nil, common.NewInternalServerError("failed to count accidents")
	}

	var recs []*Recommendation
	switch {
	case profile.RiskScore >= 90 || tampering > 0:
		recs = append(recs, &Recommendation{
			Level:   "critical",
			Message: "Do not buy: confirmed odometer tampering or extreme risk profile",
		})
	case profile.RiskScore >= 60 || highAccidents > 0:
		recs = append(recs, &Recommendation{
			Level:   "high",
			Message: "High risk: order an independent technical inspection before any payment",
		})
	case profile.RiskScore >= 30:
		recs = append(recs, &Recommendation{
			Level:   "medium",
			Message: "Moderate risk: verify the service history with the listed workshops",
		})
	default:
		recs = append(recs, &Recommendation{
			Level:   "low",
			Message: "No significant risk factors found",
		})
	}

	if tampering > 0 {
		recs = append(recs, &Recommendation{
			Level:   "critical",
			Message: fmt.Sprintf("Odometer tampering recorded %d time(s); the displayed mileage cannot be trusted", tampering),
		})
	}
	if highAccidents > 0 {
		recs = append(recs, &Recommendation{
			Level:   "high",
			Message: fmt.Sprintf("%d serious accident(s) on record; check the body and frame for structural repairs", highAccidents),
		})
	}

	return recs, nil
}

func (s *Service) cachedReport(ctx context.Context, vin string, checkType CheckType) *Report {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.GetString(ctx, reportCacheKey(vin, checkType))
	if err != nil {
		return nil
	}
	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil
	}
	return &report
}

func (s *Service) cacheReport(ctx context.Context, vin string, checkType CheckType, report *Report) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.SetWithExpiration(ctx, reportCacheKey(vin, checkType), payload, reportCacheTTL); err != nil {
		logger.Debug("failed to cache report", zap.Error(err))
	}
}
