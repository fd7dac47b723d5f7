package flow

import (
	"time"

	"github.com/google/uuid"

	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/ringbuf"
)

// Anomaly types.
const (
	AnomalyFlowRateDeviation = "flow_rate_deviation"
	AnomalyPressureDeviation = "pressure_deviation"
	AnomalyTemperatureSpike  = "temperature_spike"
)

// Anomaly severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Detection thresholds. Flow is relative to the rolling mean; pressure and
// temperature are absolute deviations.
const (
	flowDeviationFraction     = 0.25
	flowHighFraction          = 0.5
	pressureDeviationPa       = 100000
	pressureHighPa            = 200000
	temperatureDeviationC     = 10
	temperatureHighC          = 20
	expectedTemperatureBandC  = 5
	defaultWindowSize         = 10
	defaultMinSamplesToDetect = 3
)

// Range is the expected band for a metric at detection time.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Anomaly is a single detector hit. Append-only once recorded.
type Anomaly struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Severity      string    `json:"severity"` // low | medium | high
	DetectedAt    time.Time `json:"detectedAt"`
	ExpectedRange Range     `json:"expectedRange"`
	ActualValue   float64   `json:"actualValue"`
}

// Detector classifies each new telemetry sample against the rolling mean
// of the recent sample window. With fewer than minSamples of history no
// check runs, so the first samples after a reset are always normal.
// History capacity is a per-instance tunable, not a global constant.
type Detector struct {
	window     *ringbuf.Ring[models.TelemetrySample]
	anomalies  *ringbuf.Ring[Anomaly]
	minSamples int
	now        func() time.Time
}

// NewDetector creates a detector with the given window size and anomaly
// history capacity. Zero values fall back to the defaults (10-sample
// window, detection from the 3rd sample on).
func NewDetector(windowSize, anomalyCapacity int) *Detector {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	if anomalyCapacity <= 0 {
		anomalyCapacity = 500
	}
	return &Detector{
		window:     ringbuf.New[models.TelemetrySample](windowSize),
		anomalies:  ringbuf.New[Anomaly](anomalyCapacity),
		minSamples: defaultMinSamplesToDetect,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Observe evaluates a sample against the current window, records any
// anomalies, and then admits the sample into the window. The returned
// slice is empty while the window holds fewer than minSamples samples.
func (d *Detector) Observe(sample models.TelemetrySample) []Anomaly {
	recent := d.window.Snapshot()

	var found []Anomaly
	if len(recent) >= d.minSamples {
		found = d.classify(sample, recent)
		for _, a := range found {
			d.anomalies.Push(a)
		}
	}

	d.window.Push(sample)
	return found
}

// classify runs the three per-metric threshold checks against the window mean.
func (d *Detector) classify(sample models.TelemetrySample, recent []models.TelemetrySample) []Anomaly {
	stats := models.ComputeStats(recent)
	detectedAt := d.now()
	var out []Anomaly

	if meanFlow := stats.Flow.Avg; meanFlow != 0 {
		dev := abs(sample.FlowRateLpm - meanFlow)
		if dev > meanFlow*flowDeviationFraction {
			severity := SeverityMedium
			if dev > meanFlow*flowHighFraction {
				severity = SeverityHigh
			}
			out = append(out, Anomaly{
				ID:         uuid.NewString(),
				Type:       AnomalyFlowRateDeviation,
				Severity:   severity,
				DetectedAt: detectedAt,
				ExpectedRange: Range{
					Min: meanFlow * (1 - flowDeviationFraction),
					Max: meanFlow * (1 + flowDeviationFraction),
				},
				ActualValue: sample.FlowRateLpm,
			})
		}
	}

	meanPressure := stats.Pressure.Avg
	if dev := abs(sample.PressurePa - meanPressure); dev > pressureDeviationPa {
		severity := SeverityLow
		if dev > pressureHighPa {
			severity = SeverityHigh
		}
		out = append(out, Anomaly{
			ID:         uuid.NewString(),
			Type:       AnomalyPressureDeviation,
			Severity:   severity,
			DetectedAt: detectedAt,
			ExpectedRange: Range{
				Min: meanPressure - pressureDeviationPa,
				Max: meanPressure + pressureDeviationPa,
			},
			ActualValue: sample.PressurePa,
		})
	}

	meanTemp := stats.Temperature.Avg
	if dev := abs(sample.TemperatureC - meanTemp); dev > temperatureDeviationC {
		severity := SeverityMedium
		if dev > temperatureHighC {
			severity = SeverityHigh
		}
		out = append(out, Anomaly{
			ID:         uuid.NewString(),
			Type:       AnomalyTemperatureSpike,
			Severity:   severity,
			DetectedAt: detectedAt,
			ExpectedRange: Range{
				Min: meanTemp - expectedTemperatureBandC,
				Max: meanTemp + expectedTemperatureBandC,
			},
			ActualValue: sample.TemperatureC,
		})
	}

	return out
}

// Anomalies returns recorded anomalies matching the filter, oldest first.
func (d *Detector) Anomalies(severity, anomalyType string, since time.Time) []Anomaly {
	return d.anomalies.Filter(func(a Anomaly) bool {
		if severity != "" && a.Severity != severity {
			return false
		}
		if anomalyType != "" && a.Type != anomalyType {
			return false
		}
		if !since.IsZero() && !a.DetectedAt.After(since) {
			return false
		}
		return true
	})
}

// Confidence maps a severity to the synthetic event confidence.
func Confidence(severity string) float64 {
	if severity == SeverityHigh {
		return 0.95
	}
	return 0.7
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
