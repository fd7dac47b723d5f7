package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
)

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// TopicWorldTick announces each advance of the simulated world.
const TopicWorldTick = "sim.world.tick"

// WorldTickPayload carries the post-tick world snapshot.
type WorldTickPayload struct {
	State WorldState `json:"state"`
}

var simTicks = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "plainview_sim_ticks_total",
		Help: "World simulation ticks advanced.",
	},
)

func init() {
	prometheus.MustRegister(simTicks)
}

// SimConfig holds the simulation engine's tunables.
type SimConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Enabled      bool          `mapstructure:"enabled"`
}

// DefaultConfig enables the engine on the documented 5s world tick.
func DefaultConfig() SimConfig {
	return SimConfig{
		TickInterval: 5 * time.Second,
		Enabled:      true,
	}
}

// Module implements the simulation engine plugin. Other modules resolve
// it by name and read coherent environment values while it runs.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus
	cfg    SimConfig

	engine  *engine
	running atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new sim plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "sim",
		Version:     "0.1.0",
		Description: "World-state simulation engine",
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return err
		}
	}
	m.engine = newEngine(m.cfg.TickInterval)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Info("sim module disabled, world stays static")
		return nil
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running.Store(true)

	m.wg.Add(1)
	go m.tickLoop(tickCtx)

	m.logger.Info("sim module started", zap.Duration("tick_interval", m.cfg.TickInterval))
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	m.running.Store(false)
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("sim module stopped")
	return nil
}

func (m *Module) tickLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick advances the world one step and announces the new state.
func (m *Module) tick(ctx context.Context) {
	state := m.engine.advance()
	simTicks.Inc()

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicWorldTick,
		Source:    "sim",
		Timestamp: time.Now().UTC(),
		Payload:   WorldTickPayload{State: state},
	})
}

// Running reports whether the world is advancing. Consumers fall back
// to their own noise models when it is not.
func (m *Module) Running() bool {
	return m.running.Load()
}

// Snapshot returns the current world state.
func (m *Module) Snapshot() WorldState {
	return m.engine.snapshot()
}

// LeakProbability is the per-tick chance of a pipeline leak arrival.
func (m *Module) LeakProbability() float64 {
	return m.engine.leakProbability()
}

// FlowMetrics derives a telemetry sample from the world state.
func (m *Module) FlowMetrics(baseline models.TelemetrySample) models.TelemetrySample {
	return m.engine.flowMetrics(baseline)
}

// ActivateScenario clears any queued steps and injects the named
// scenario.
func (m *Module) ActivateScenario(name string) (Scenario, error) {
	sc, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("sim: unknown scenario %q", name)
	}
	m.engine.reset()
	m.engine.inject(sc)
	m.logger.Info("scenario injected",
		zap.String("scenario", name),
		zap.Int("steps", len(sc.Steps)),
	)
	return sc, nil
}

// Reset clears the active scenario and all world-state overrides.
func (m *Module) Reset() {
	m.engine.reset()
	m.logger.Info("simulation reset to defaults")
}
