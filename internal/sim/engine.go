package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/plainview-io/plainview/pkg/models"
)

const baseLeakLambda = 0.008

// WorldState is a snapshot of the simulated world at one tick.
type WorldState struct {
	Tick            int     `json:"tick"`
	SimTimeSec      float64 `json:"simTime"`
	TimeOfDayHour   float64 `json:"timeOfDay"`       // 0-24
	WeatherFactor   float64 `json:"weatherFactor"`   // 1.0 clear, lower is worse
	OperationalLoad float64 `json:"operationalLoad"` // 0-1

	AmbientTemperatureC float64 `json:"ambientTemperature"`
	BasePressurePa      float64 `json:"basePressure"`
	WindSpeedMps        float64 `json:"windSpeed"`
	VisibilityKm        float64 `json:"visibility"`

	ActiveScenario     string `json:"activeScenario,omitempty"`
	ForceLeak          bool   `json:"forceLeak"`
	ForceValveFault    bool   `json:"forceValveFault"`
	ForceCameraOffline bool   `json:"forceCameraOffline"`
	ShutdownActive     bool   `json:"shutdownActive"`

	LeakLambda float64 `json:"leakLambda"`
}

func initialState() WorldState {
	return WorldState{
		TimeOfDayHour:   8.0,
		WeatherFactor:   1.0,
		OperationalLoad: 0.7,

		AmbientTemperatureC: 25.0,
		BasePressurePa:      2500000,
		WindSpeedMps:        3.0,
		VisibilityKm:        10.0,

		LeakLambda: baseLeakLambda,
	}
}

type queuedStep struct {
	atTick    int
	mutations Mutations
}

// engine owns the world state and the pending scenario steps.
type engine struct {
	mu           sync.Mutex
	state        WorldState
	queue        []queuedStep
	tickInterval time.Duration
	rand         func() float64
	now          func() time.Time
}

func newEngine(tickInterval time.Duration) *engine {
	if tickInterval <= 0 {
		tickInterval = 5 * time.Second
	}
	return &engine{
		state:        initialState(),
		tickInterval: tickInterval,
		rand:         rand.Float64,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// advance moves the world forward one tick and applies at most one due
// scenario step. One wall second counts as one simulated minute.
func (e *engine) advance() WorldState {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.state
	s.Tick++
	s.SimTimeSec += e.tickInterval.Seconds()
	s.TimeOfDayHour = mod24(s.TimeOfDayHour + e.tickInterval.Seconds()/60.0)

	s.AmbientTemperatureC = diurnalTemperature(s.TimeOfDayHour, 25.0)
	s.BasePressurePa = diurnalPressure(s.TimeOfDayHour, 2500000)
	s.OperationalLoad = operationalLoad(s.TimeOfDayHour)

	s.WeatherFactor = clamp(s.WeatherFactor+(e.rand()-0.5)*0.02, 0.3, 1.0)
	s.WindSpeedMps = max(0, 3.0+(1.0-s.WeatherFactor)*15+(e.rand()-0.5)*2)
	s.VisibilityKm = max(0.5, 10.0*s.WeatherFactor+(e.rand()-0.5))

	if len(e.queue) > 0 && s.Tick >= e.queue[0].atTick {
		step := e.queue[0]
		e.queue = e.queue[1:]
		step.mutations.apply(s)
	}
	return *s
}

// inject schedules a scenario's steps relative to the current tick,
// replacing whatever was queued.
func (e *engine) inject(sc Scenario) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue = e.queue[:0]
	for _, step := range sc.Steps {
		e.queue = append(e.queue, queuedStep{
			atTick:    e.state.Tick + step.DelayTicks,
			mutations: step.Mutations,
		})
	}
	e.state.ActiveScenario = sc.Name
}

// reset clears pending steps and every scenario override.
func (e *engine) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue = e.queue[:0]
	e.state.ActiveScenario = ""
	e.state.ForceLeak = false
	e.state.ForceValveFault = false
	e.state.ForceCameraOffline = false
	e.state.ShutdownActive = false
	e.state.LeakLambda = baseLeakLambda
}

func (e *engine) snapshot() WorldState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// leakProbability is the chance of at least one leak arrival this tick.
// A forced leak short-circuits the Poisson model.
func (e *engine) leakProbability() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.ForceLeak {
		return 1.0
	}
	return poissonProbability(e.state.LeakLambda)
}

// flowMetrics derives a telemetry sample from the world state so flow
// readings track load and ambient temperature instead of pure noise.
func (e *engine) flowMetrics(baseline models.TelemetrySample) models.TelemetrySample {
	e.mu.Lock()
	defer e.mu.Unlock()

	load := e.state.OperationalLoad
	return models.TelemetrySample{
		FlowRateLpm:  max(50, baseline.FlowRateLpm*load+(e.rand()-0.5)*8),
		PressurePa:   max(2000000, baseline.PressurePa*(0.9+load*0.1)+(e.rand()-0.5)*30000),
		TemperatureC: max(15, e.state.AmbientTemperatureC+baseline.TemperatureC*0.4+(e.rand()-0.5)*2),
		Timestamp:    e.now(),
	}
}

func mod24(h float64) float64 {
	for h >= 24 {
		h -= 24
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
