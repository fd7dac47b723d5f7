package flow

import (
	"github.com/plainview-io/plainview/pkg/models"
)

// Event topics published by the flow module.
const (
	TopicAnomalyDetected = "anomaly.detected"
	TopicMetricsUpdated  = "flow.metrics.updated"
)

// AnomalyDetectedPayload announces a detector hit. Confidence is synthetic:
// 0.95 for high-severity anomalies, 0.7 otherwise.
type AnomalyDetectedPayload struct {
	AssetID     string  `json:"assetId"`
	AnomalyID   string  `json:"anomalyId"`
	AnomalyType string  `json:"anomalyType"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	At          int64   `json:"at"` // Unix milliseconds
}

// MetricsUpdatedPayload carries each accepted telemetry sample.
type MetricsUpdatedPayload struct {
	Metrics models.TelemetrySample `json:"metrics"`
	Source  string                 `json:"source"` // "generator" | "live"
}
