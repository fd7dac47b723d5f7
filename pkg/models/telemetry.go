// Package models holds domain types shared across Plainview plugins.
package models

import "time"

// TelemetrySample is one timestamped reading from the field: volumetric
// flow in liters per minute, absolute pressure in pascals, temperature in
// degrees Celsius. Samples are immutable after creation.
type TelemetrySample struct {
	FlowRateLpm  float64   `json:"flowRateLpm"`
	PressurePa   float64   `json:"pressurePa"`
	TemperatureC float64   `json:"temperatureC"`
	Timestamp    time.Time `json:"timestamp"`
}

// MetricStats summarizes one metric over a sample window.
type MetricStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// GeoPoint is a WGS84 coordinate attached to nodes, leaks, and alerts.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TelemetryStats aggregates per-metric statistics for a sample window.
type TelemetryStats struct {
	Flow        MetricStats `json:"flow"`
	Pressure    MetricStats `json:"pressure"`
	Temperature MetricStats `json:"temperature"`
}

// ComputeStats derives min/max/avg for each metric over the given samples.
// Returns zero stats for an empty window.
func ComputeStats(samples []TelemetrySample) TelemetryStats {
	if len(samples) == 0 {
		return TelemetryStats{}
	}

	stats := TelemetryStats{
		Flow:        MetricStats{Min: samples[0].FlowRateLpm, Max: samples[0].FlowRateLpm},
		Pressure:    MetricStats{Min: samples[0].PressurePa, Max: samples[0].PressurePa},
		Temperature: MetricStats{Min: samples[0].TemperatureC, Max: samples[0].TemperatureC},
	}

	var flowSum, pressureSum, tempSum float64
	for _, s := range samples {
		flowSum += s.FlowRateLpm
		pressureSum += s.PressurePa
		tempSum += s.TemperatureC

		if s.FlowRateLpm < stats.Flow.Min {
			stats.Flow.Min = s.FlowRateLpm
		}
		if s.FlowRateLpm > stats.Flow.Max {
			stats.Flow.Max = s.FlowRateLpm
		}
		if s.PressurePa < stats.Pressure.Min {
			stats.Pressure.Min = s.PressurePa
		}
		if s.PressurePa > stats.Pressure.Max {
			stats.Pressure.Max = s.PressurePa
		}
		if s.TemperatureC < stats.Temperature.Min {
			stats.Temperature.Min = s.TemperatureC
		}
		if s.TemperatureC > stats.Temperature.Max {
			stats.Temperature.Max = s.TemperatureC
		}
	}

	n := float64(len(samples))
	stats.Flow.Avg = flowSum / n
	stats.Pressure.Avg = pressureSum / n
	stats.Temperature.Avg = tempSum / n
	return stats
}
