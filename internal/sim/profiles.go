// Package sim drives a shared world model: time-of-day, weather, and
// operational load evolve on a fixed tick, and the other modules read
// coherent environment values from it instead of rolling independent
// noise.
package sim

import "math"

// diurnalTemperature is a sinusoidal curve peaking near 14:00.
func diurnalTemperature(hour, base float64) float64 {
	const amplitude = 12.0
	phase := (hour - 14.0) / 24.0 * 2 * math.Pi
	return base + amplitude*math.Cos(phase)
}

// diurnalPressure varies slightly around the base, highest mid-morning.
func diurnalPressure(hour, base float64) float64 {
	const amplitude = 50000.0
	phase := (hour - 10.0) / 24.0 * 2 * math.Pi
	return base + amplitude*math.Cos(phase)
}

// operationalLoad ramps up from 06:00, holds 1.0 between 10:00 and
// 16:00, and ramps back down to the 0.2 overnight floor by 22:00.
func operationalLoad(hour float64) float64 {
	switch {
	case hour < 6:
		return 0.2
	case hour < 10:
		return 0.2 + 0.8*((hour-6)/4)
	case hour < 16:
		return 1.0
	case hour < 22:
		return 1.0 - 0.8*((hour-16)/6)
	default:
		return 0.2
	}
}

// poissonProbability converts an arrival rate per tick into the chance
// of at least one arrival in that tick, 1 - e^(-lambda).
func poissonProbability(lambda float64) float64 {
	return 1 - math.Exp(-lambda)
}
