package models

import "time"

// Alert severities.
const (
	AlertSeverityInfo     = "info"
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"
)

// Alert statuses.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// Shared alert topics. Any detector (leak, anomaly, valve health) raises
// alert.created; the incident correlator consumes it. Alerts live only on
// the bus, and the correlator derives its own incident-scoped records.
const (
	TopicAlertCreated      = "alert.created"
	TopicAlertAcknowledged = "alert.acknowledged"
)

// Alert is a raw detector finding published on the bus.
type Alert struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"` // info | warning | critical
	Status    string    `json:"status"`   // active | acknowledged | resolved
	Message   string    `json:"message"`
	ModuleKey string    `json:"moduleKey"`
	Timestamp time.Time `json:"timestamp"`
	Location  *GeoPoint `json:"location,omitempty"`
}
