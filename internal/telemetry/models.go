package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Rate-of-change ceiling for plausible daily driving
const MaxDailyKm = 1000.0

// IncidentDedupWindow is how long after an automatic incident the same kind
// is suppressed for a vehicle
const IncidentDedupWindow = 24 * time.Hour

// Telemetry is a single reading reported by an on-board device
type Telemetry struct {
	ID             uuid.UUID `json:"id"`
	VehicleID      uuid.UUID `json:"vehicle_id"`
	Mileage        int       `json:"mileage"`
	FuelLevel      *float64  `json:"fuel_level,omitempty"`
	BatteryVoltage *float64  `json:"battery_voltage,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	EngineStatus   *string   `json:"engine_status,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeviceConfig holds per-vehicle device settings. Threshold and alpha values
// are stored as integers scaled by 100 to keep the rows exact:
// BatteryThreshold 1150 means 11.50 V. The scaled form never leaves the
// service; API payloads carry DeviceConfigView decimals.
type DeviceConfig struct {
	ID                    uuid.UUID
	VehicleID             uuid.UUID
	TelemetryIntervalSec  int
	BatteryThreshold      int
	HumidityThreshold     int
	FuelThreshold         int
	BatterySmoothingAlpha int
	MileageSmoothingAlpha int
	LastSyncAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DeviceConfigView is the API representation of a device configuration,
// with the stored scaled integers converted back to decimals
type DeviceConfigView struct {
	ID                    uuid.UUID  `json:"id"`
	VehicleID             uuid.UUID  `json:"vehicle_id"`
	TelemetryIntervalSec  int        `json:"telemetry_interval_sec"`
	BatteryThresholdVolts float64    `json:"battery_threshold_volts"`
	HumidityThresholdPct  float64    `json:"humidity_threshold_pct"`
	FuelThresholdPct      int        `json:"fuel_threshold_pct"`
	BatterySmoothingAlpha float64    `json:"battery_smoothing_alpha"`
	MileageSmoothingAlpha float64    `json:"mileage_smoothing_alpha"`
	LastSyncAt            *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// View converts the stored config into its API form
func (c *DeviceConfig) View() *DeviceConfigView {
	return &DeviceConfigView{
		ID:                    c.ID,
		VehicleID:             c.VehicleID,
		TelemetryIntervalSec:  c.TelemetryIntervalSec,
		BatteryThresholdVolts: float64(c.BatteryThreshold) / 100,
		HumidityThresholdPct:  float64(c.HumidityThreshold) / 100,
		FuelThresholdPct:      c.FuelThreshold,
		BatterySmoothingAlpha: float64(c.BatterySmoothingAlpha) / 100,
		MileageSmoothingAlpha: float64(c.MileageSmoothingAlpha) / 100,
		LastSyncAt:            c.LastSyncAt,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// Device config defaults applied on first sync
const (
	DefaultTelemetryIntervalSec  = 60
	DefaultBatteryThreshold      = 1150 // 11.50 V
	DefaultHumidityThreshold     = 8500 // 85.00 %
	DefaultFuelThreshold         = 15   // 15 %
	DefaultBatterySmoothingAlpha = 30   // 0.30
	DefaultMileageSmoothingAlpha = 50   // 0.50
)

// IngestRequest is a telemetry payload from a device, over HTTP or MQTT
type IngestRequest struct {
	VIN            string     `json:"vin" binding:"required,vin"`
	Mileage        int        `json:"mileage" binding:"gte=0"`
	FuelLevel      *float64   `json:"fuel_level,omitempty" binding:"omitempty,gte=0,lte=100"`
	BatteryVoltage *float64   `json:"battery_voltage,omitempty" binding:"omitempty,gte=0"`
	Humidity       *float64   `json:"humidity,omitempty" binding:"omitempty,gte=0,lte=100"`
	EngineStatus   *string    `json:"engine_status,omitempty" binding:"omitempty,oneof=start stop"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
}

// IngestResponse reports what the ingestion pipeline did with a reading
type IngestResponse struct {
	TelemetryID       uuid.UUID `json:"telemetry_id"`
	MileageUpdated    bool      `json:"mileage_updated"`
	TamperingDetected bool      `json:"tampering_detected"`
	Alerts            []string  `json:"alerts,omitempty"`
}

// UpdateConfigRequest mutates device settings in decimal units; the service
// scales them by 100 before storing
type UpdateConfigRequest struct {
	TelemetryIntervalSec  *int     `json:"telemetry_interval_sec,omitempty" binding:"omitempty,gte=5,lte=86400"`
	BatteryThresholdVolts *float64 `json:"battery_threshold_volts,omitempty" binding:"omitempty,gte=0"`
	HumidityThresholdPct  *float64 `json:"humidity_threshold_pct,omitempty" binding:"omitempty,gte=0,lte=100"`
	FuelThresholdPct      *int     `json:"fuel_threshold_pct,omitempty" binding:"omitempty,gte=0,lte=100"`
	BatterySmoothingAlpha *float64 `json:"battery_smoothing_alpha,omitempty" binding:"omitempty,gte=0,lte=1"`
	MileageSmoothingAlpha *float64 `json:"mileage_smoothing_alpha,omitempty" binding:"omitempty,gte=0,lte=1"`
}

// SyncResponse is returned to a device on config sync
type SyncResponse struct {
	Config   *DeviceConfigView `json:"config"`
	SyncedAt time.Time         `json:"synced_at"`
}

// LatestSnapshot is the freshest device state for a vehicle
type LatestSnapshot struct {
	Telemetry    *Telemetry `json:"telemetry"`
	IoTConnected bool       `json:"iot_connected"`
}

// UsageStats aggregates driving activity over a trailing window
type UsageStats struct {
	Days         int     `json:"days"`
	TotalDriven  int     `json:"total_driven_km"`
	AvgDailyKm   float64 `json:"avg_daily_km"`
	EngineStarts int     `json:"engine_starts"`
	Readings     int     `json:"readings"`
}
