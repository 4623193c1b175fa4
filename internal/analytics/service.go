package analytics

import (
	"context"
	"math"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/google/uuid"
)

// Service runs statistical analyses over a vehicle's mileage history
type Service struct {
	repo AnalyticsRepository
}

// NewService creates a new analytics service
func NewService(repo AnalyticsRepository) *Service {
	return &Service{repo: repo}
}

// DetectMileageAnomalies z-scores the deltas between successive mileage
// observations. A delta more than two standard deviations from the mean is
// an anomaly; past three it is critical. Negative deltas are rollbacks,
// positive outliers are implausible jumps.
func (s *Service) DetectMileageAnomalies(ctx context.Context, vehicleID uuid.UUID) (*AnomalyReport, error) {
	points, err := s.repo.ListMileagePoints(ctx, vehicleID)
	if err != nil {
		return nil, common.NewInternalServerError("failed to load mileage history")
	}

	report := &AnomalyReport{VehicleID: vehicleID, Points: len(points)}
	if len(points) < 3 {
		report.Message = "at least 3 mileage observations are required for anomaly detection"
		return report, nil
	}

	deltas := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		deltas = append(deltas, float64(points[i].Mileage-points[i-1].Mileage))
	}

	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))

	variance := 0.0
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	stdDev := math.Sqrt(variance)

	report.MeanDelta = mean
	report.StdDev = stdDev

	// uniform history has nothing to flag
	if stdDev == 0 {
		return report, nil
	}

	for i, d := range deltas {
		z := (d - mean) / stdDev
		if math.Abs(z) <= AnomalyZThreshold {
			continue
		}

		from := points[i]
		to := points[i+1]

		anomalyType := "unusually_high"
		if d < 0 {
			anomalyType = "rollback"
		}
		severity := "high"
		if math.Abs(z) > CriticalZThreshold {
			severity = "critical"
		}

		days := to.EventDate.Sub(from.EventDate).Hours() / 24
		dailyRate := 0.0
		if days > 0 {
			dailyRate = d / days
		}

		report.Anomalies = append(report.Anomalies, &Anomaly{
			From:      from.EventDate,
			To:        to.EventDate,
			Delta:     int(d),
			DailyRate: math.Round(dailyRate*100) / 100,
			ZScore:    math.Round(z*100) / 100,
			Type:      anomalyType,
			Severity:  severity,
		})
	}

	return report, nil
}

// PredictFutureMileage fits an ordinary least squares line through the
// vehicle's mileage observations and extrapolates daysAhead past the last one
func (s *Service) PredictFutureMileage(ctx context.Context, vehicleID uuid.UUID, daysAhead int) (*Forecast, error) {
	points, err := s.repo.ListMileagePoints(ctx, vehicleID)
	if err != nil {
		return nil, common.NewInternalServerError("failed to load mileage history")
	}
	if len(points) < 2 {
		return nil, common.NewInsufficientDataError("at least 2 mileage observations are required for a forecast")
	}

	origin := points[0].EventDate
	n := float64(len(points))

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	var sumX, sumY float64
	for i, p := range points {
		xs[i] = p.EventDate.Sub(origin).Hours() / 24
		ys[i] = float64(p.Mileage)
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for i := range xs {
		sxx += (xs[i] - meanX) * (xs[i] - meanX)
		sxy += (xs[i] - meanX) * (ys[i] - meanY)
	}
	if sxx == 0 {
		return nil, common.NewInsufficientDataError("all observations share the same date; cannot fit a trend")
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssRes, ssTot float64
	for i := range xs {
		fitted := slope*xs[i] + intercept
		ssRes += (ys[i] - fitted) * (ys[i] - fitted)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}

	// a perfectly flat history is perfectly predicted
	rSquared := 1.0
	if ssTot != 0 {
		rSquared = 1 - ssRes/ssTot
	}

	confidence := "Low accuracy"
	switch {
	case rSquared > 0.9:
		confidence = "High accuracy"
	case rSquared > 0.7:
		confidence = "Moderate accuracy"
	}

	lastX := xs[len(xs)-1]
	predicted := slope*(lastX+float64(daysAhead)) + intercept

	return &Forecast{
		VehicleID:        vehicleID,
		DaysAhead:        daysAhead,
		PredictedMileage: math.Round(predicted*100) / 100,
		Slope:            math.Round(slope*10000) / 10000,
		Intercept:        math.Round(intercept*100) / 100,
		RSquared:         math.Round(rSquared*10000) / 10000,
		Confidence:       confidence,
	}, nil
}
