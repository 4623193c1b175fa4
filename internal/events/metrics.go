package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tamperingIncidentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "carvision_tampering_incidents_total",
		Help: "Total number of mileage tampering incidents detected",
	},
	[]string{"source"},
)

// RecordTamperingIncident increments the tampering counter for a detection
// source ("manual" or "telemetry")
func RecordTamperingIncident(source string) {
	tamperingIncidentsTotal.WithLabelValues(source).Inc()
}
