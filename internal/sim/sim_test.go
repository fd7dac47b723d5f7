package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/event"
	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDiurnalTemperature(t *testing.T) {
	if got := diurnalTemperature(14, 25); !almostEqual(got, 37) {
		t.Errorf("peak temperature = %v, want 37", got)
	}
	if got := diurnalTemperature(2, 25); !almostEqual(got, 13) {
		t.Errorf("trough temperature = %v, want 13", got)
	}
}

func TestDiurnalPressure(t *testing.T) {
	if got := diurnalPressure(10, 2500000); !almostEqual(got, 2550000) {
		t.Errorf("peak pressure = %v, want 2550000", got)
	}
	if got := diurnalPressure(22, 2500000); !almostEqual(got, 2450000) {
		t.Errorf("trough pressure = %v, want 2450000", got)
	}
}

func TestOperationalLoadCurve(t *testing.T) {
	cases := []struct {
		hour float64
		want float64
	}{
		{3, 0.2},
		{8, 0.6},
		{12, 1.0},
		{19, 0.6},
		{23, 0.2},
	}
	for _, tc := range cases {
		if got := operationalLoad(tc.hour); !almostEqual(got, tc.want) {
			t.Errorf("operationalLoad(%v) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestPoissonProbability(t *testing.T) {
	got := poissonProbability(baseLeakLambda)
	if got < 0.0079 || got > 0.008 {
		t.Errorf("poissonProbability(%v) = %v, want ~0.00797", baseLeakLambda, got)
	}
	if poissonProbability(0) != 0 {
		t.Error("zero lambda must give zero probability")
	}
}

func newQuietEngine() *engine {
	e := newEngine(5 * time.Second)
	e.rand = func() float64 { return 0.5 } // no drift, no noise
	return e
}

func TestAdvanceFollowsProfiles(t *testing.T) {
	e := newQuietEngine()
	s := e.advance()

	if s.Tick != 1 {
		t.Errorf("tick = %d, want 1", s.Tick)
	}
	wantHour := 8.0 + 5.0/60.0
	if !almostEqual(s.TimeOfDayHour, wantHour) {
		t.Errorf("time of day = %v, want %v", s.TimeOfDayHour, wantHour)
	}
	if !almostEqual(s.AmbientTemperatureC, diurnalTemperature(wantHour, 25)) {
		t.Errorf("ambient = %v, does not follow the diurnal curve", s.AmbientTemperatureC)
	}
	if !almostEqual(s.OperationalLoad, operationalLoad(wantHour)) {
		t.Errorf("load = %v, does not follow the load curve", s.OperationalLoad)
	}
	if !almostEqual(s.WeatherFactor, 1.0) {
		t.Errorf("weather drifted to %v with centered rolls", s.WeatherFactor)
	}
}

func TestScenarioStepsApplyOnSchedule(t *testing.T) {
	e := newQuietEngine()
	e.inject(scenarios["cascade_failure"])

	s := e.advance() // first step is due immediately
	if !s.ForceLeak || !almostEqual(s.LeakLambda, 0.5) {
		t.Fatalf("first step not applied: %+v", s)
	}
	if !almostEqual(e.leakProbability(), 1.0) {
		t.Errorf("forced leak probability = %v, want 1.0", e.leakProbability())
	}

	s = e.advance() // tick 2, valve fault step waits for tick 3
	if s.ForceValveFault {
		t.Fatal("valve fault applied early")
	}
	s = e.advance()
	if !s.ForceValveFault {
		t.Fatal("valve fault step not applied at its tick")
	}

	if e.snapshot().ActiveScenario != "cascade_failure" {
		t.Errorf("active scenario = %q", e.snapshot().ActiveScenario)
	}
}

func TestResetClearsOverrides(t *testing.T) {
	e := newQuietEngine()
	e.inject(scenarios["emergency_shutdown"])
	e.advance()

	e.reset()
	s := e.snapshot()
	if s.ForceLeak || s.ShutdownActive || s.ActiveScenario != "" {
		t.Errorf("state after reset = %+v", s)
	}
	if !almostEqual(s.LeakLambda, baseLeakLambda) {
		t.Errorf("lambda after reset = %v, want %v", s.LeakLambda, baseLeakLambda)
	}
	prob := e.leakProbability()
	if !almostEqual(prob, poissonProbability(baseLeakLambda)) {
		t.Errorf("leak probability after reset = %v", prob)
	}
}

func TestFlowMetricsTrackWorldState(t *testing.T) {
	e := newQuietEngine()
	e.state.OperationalLoad = 1.0
	e.state.AmbientTemperatureC = 25.0

	got := e.flowMetrics(models.TelemetrySample{FlowRateLpm: 150, PressurePa: 2500000, TemperatureC: 45})
	if !almostEqual(got.FlowRateLpm, 150) {
		t.Errorf("flow = %v, want 150 at full load", got.FlowRateLpm)
	}
	if !almostEqual(got.PressurePa, 2500000) {
		t.Errorf("pressure = %v, want 2500000 at full load", got.PressurePa)
	}
	if !almostEqual(got.TemperatureC, 43) { // 25 ambient + 45*0.4
		t.Errorf("temperature = %v, want 43", got.TemperatureC)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	e.state.OperationalLoad = 0.2
	low := e.flowMetrics(models.TelemetrySample{FlowRateLpm: 150, PressurePa: 2500000, TemperatureC: 45})
	if low.FlowRateLpm >= got.FlowRateLpm {
		t.Errorf("flow at low load = %v, want below %v", low.FlowRateLpm, got.FlowRateLpm)
	}
}

func TestModuleLifecycleAndTickEvent(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Bus:    bus,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if m.Running() {
		t.Error("running before Start")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Running() {
		t.Error("not running after Start")
	}

	var ticks []WorldTickPayload
	unsub := bus.Subscribe(TopicWorldTick, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(WorldTickPayload); ok {
			ticks = append(ticks, p)
		}
	})
	defer unsub()

	m.tick(context.Background())
	if len(ticks) != 1 || ticks[0].State.Tick != 1 {
		t.Fatalf("ticks = %+v, want one event at tick 1", ticks)
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.Running() {
		t.Error("running after Stop")
	}
}

func TestUnknownScenario(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop(), Bus: bus}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := m.ActivateScenario("volcano"); err == nil {
		t.Error("unknown scenario accepted")
	}
}

func TestScenarioCatalog(t *testing.T) {
	list := ListScenarios()
	if len(list) != 5 {
		t.Fatalf("scenarios = %d, want 5", len(list))
	}
	for _, sc := range list {
		if sc.Name == "" || sc.Description == "" || len(sc.Steps) == 0 {
			t.Errorf("incomplete scenario %+v", sc)
		}
	}
}
