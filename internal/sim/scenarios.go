package sim

// Mutations is a sparse set of world-state overrides. Nil fields leave
// the current value untouched.
type Mutations struct {
	ForceLeak          *bool    `json:"forceLeak,omitempty"`
	ForceValveFault    *bool    `json:"forceValveFault,omitempty"`
	ForceCameraOffline *bool    `json:"forceCameraOffline,omitempty"`
	ShutdownActive     *bool    `json:"shutdownActive,omitempty"`
	LeakLambda         *float64 `json:"leakLambda,omitempty"`
	WeatherFactor      *float64 `json:"weatherFactor,omitempty"`
	OperationalLoad    *float64 `json:"operationalLoad,omitempty"`
}

func (m Mutations) apply(s *WorldState) {
	if m.ForceLeak != nil {
		s.ForceLeak = *m.ForceLeak
	}
	if m.ForceValveFault != nil {
		s.ForceValveFault = *m.ForceValveFault
	}
	if m.ForceCameraOffline != nil {
		s.ForceCameraOffline = *m.ForceCameraOffline
	}
	if m.ShutdownActive != nil {
		s.ShutdownActive = *m.ShutdownActive
	}
	if m.LeakLambda != nil {
		s.LeakLambda = *m.LeakLambda
	}
	if m.WeatherFactor != nil {
		s.WeatherFactor = *m.WeatherFactor
	}
	if m.OperationalLoad != nil {
		s.OperationalLoad = *m.OperationalLoad
	}
}

// Step is one timed scenario action.
type Step struct {
	DelayTicks int       `json:"delayTicks"`
	Mutations  Mutations `json:"mutations"`
}

// Scenario is a named sequence of world-state mutations.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
}

func boolp(v bool) *bool { return &v }

func floatp(v float64) *float64 { return &v }

var scenarios = map[string]Scenario{
	"normal_operations": {
		Name:        "normal_operations",
		Description: "Steady-state operations with no injected faults.",
		Steps: []Step{
			{DelayTicks: 0, Mutations: Mutations{
				ForceLeak:          boolp(false),
				ForceValveFault:    boolp(false),
				ForceCameraOffline: boolp(false),
				ShutdownActive:     boolp(false),
				LeakLambda:         floatp(baseLeakLambda),
				WeatherFactor:      floatp(1.0),
			}},
		},
	},
	"cascade_failure": {
		Name:        "cascade_failure",
		Description: "Leak triggers a pressure drop, a valve fault, then a full incident cascade.",
		Steps: []Step{
			{DelayTicks: 0, Mutations: Mutations{LeakLambda: floatp(0.5), ForceLeak: boolp(true)}},
			{DelayTicks: 3, Mutations: Mutations{ForceValveFault: boolp(true)}},
			{DelayTicks: 6, Mutations: Mutations{ForceCameraOffline: boolp(true), WeatherFactor: floatp(0.4)}},
			{DelayTicks: 12, Mutations: Mutations{
				ForceLeak:          boolp(false),
				ForceValveFault:    boolp(false),
				ForceCameraOffline: boolp(false),
				LeakLambda:         floatp(baseLeakLambda),
				WeatherFactor:      floatp(0.8),
			}},
		},
	},
	"maintenance_window": {
		Name:        "maintenance_window",
		Description: "Planned maintenance with reduced load and staged valve downtime.",
		Steps: []Step{
			{DelayTicks: 0, Mutations: Mutations{OperationalLoad: floatp(0.3), ForceValveFault: boolp(true)}},
			{DelayTicks: 10, Mutations: Mutations{ForceValveFault: boolp(false), OperationalLoad: floatp(0.5)}},
			{DelayTicks: 20, Mutations: Mutations{OperationalLoad: floatp(0.9)}},
		},
	},
	"emergency_shutdown": {
		Name:        "emergency_shutdown",
		Description: "Emergency shutdown ramping all systems down rapidly.",
		Steps: []Step{
			{DelayTicks: 0, Mutations: Mutations{
				ShutdownActive:  boolp(true),
				OperationalLoad: floatp(0.05),
				ForceLeak:       boolp(true),
				LeakLambda:      floatp(0.8),
			}},
			{DelayTicks: 4, Mutations: Mutations{ForceValveFault: boolp(true), ForceCameraOffline: boolp(true)}},
			{DelayTicks: 15, Mutations: Mutations{
				ShutdownActive:     boolp(false),
				ForceLeak:          boolp(false),
				ForceValveFault:    boolp(false),
				ForceCameraOffline: boolp(false),
				OperationalLoad:    floatp(0.2),
				LeakLambda:         floatp(baseLeakLambda),
			}},
		},
	},
	"bad_weather": {
		Name:        "bad_weather",
		Description: "Severe weather reducing visibility and raising failure rates.",
		Steps: []Step{
			{DelayTicks: 0, Mutations: Mutations{WeatherFactor: floatp(0.3), LeakLambda: floatp(0.04)}},
			{DelayTicks: 20, Mutations: Mutations{WeatherFactor: floatp(0.7), LeakLambda: floatp(0.015)}},
			{DelayTicks: 40, Mutations: Mutations{WeatherFactor: floatp(1.0), LeakLambda: floatp(baseLeakLambda)}},
		},
	},
}

// ListScenarios returns the available scenario catalog.
func ListScenarios() []Scenario {
	names := []string{
		"normal_operations",
		"cascade_failure",
		"maintenance_window",
		"emergency_shutdown",
		"bad_weather",
	}
	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		out = append(out, scenarios[n])
	}
	return out
}
