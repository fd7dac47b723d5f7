package valve

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
)

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

var actuationsCompleted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plainview_valve_actuations_total",
		Help: "Completed valve actuations, by action.",
	},
	[]string{"action"},
)

func init() {
	prometheus.MustRegister(actuationsCompleted)
}

// Actuation latency bounds.
const (
	actuationDelayMin = 800 * time.Millisecond
	actuationDelayMax = 1400 * time.Millisecond
)

// Module implements the valve operations plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus

	inventory *inventory
	store     *valveStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	actuationDelay func() time.Duration
	actuateLimiter *rate.Limiter
}

// New creates a new valve plugin instance.
func New() *Module {
	return &Module{
		actuationDelay: func() time.Duration {
			spread := actuationDelayMax - actuationDelayMin
			return actuationDelayMin + time.Duration(rand.Int63n(int64(spread)))
		},
	}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "valve",
		Version:     "0.1.0",
		Description: "Valve inventory, health evaluation, and actuation",
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.inventory = newInventory()

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "valve", migrations()); err != nil {
			return err
		}
		m.store = newValveStore(deps.Store.DB())
		persisted, err := m.store.LoadState(ctx)
		if err != nil {
			return err
		}
		for _, v := range persisted {
			m.inventory.restore(v)
		}
		if len(persisted) > 0 {
			m.logger.Info("valve state restored", zap.Int("count", len(persisted)))
		}
	}
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.logger.Info("valve module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("valve module stopped")
	return nil
}

// Valves refreshes readings, raises alerts for health transitions, and
// returns the inventory.
func (m *Module) Valves(ctx context.Context) []Valve {
	m.evaluate(ctx)
	return m.inventory.list()
}

// Valve returns one valve after a fresh evaluation pass.
func (m *Module) Valve(ctx context.Context, id string) (Valve, error) {
	m.evaluate(ctx)
	return m.inventory.get(id)
}

// evaluate runs a drift+health pass and publishes alert.created for
// every grade transition.
func (m *Module) evaluate(ctx context.Context) {
	for _, change := range m.inventory.refresh() {
		v := change.Valve
		m.persistState(ctx, v)

		severity := models.AlertSeverityWarning
		if v.Health == HealthCritical {
			severity = models.AlertSeverityCritical
		}
		if v.Health == HealthOK {
			// Recovery transitions are informational.
			severity = models.AlertSeverityInfo
		}
		m.logger.Info("valve health changed",
			zap.String("valve_id", v.ID),
			zap.String("from", change.Previous),
			zap.String("to", v.Health),
		)
		_ = m.bus.Publish(ctx, plugin.Event{
			Topic:     models.TopicAlertCreated,
			Source:    "valve",
			Timestamp: v.UpdatedAt,
			Payload: models.Alert{
				ID:        uuid.NewString(),
				Severity:  severity,
				Status:    models.AlertStatusActive,
				Message:   fmt.Sprintf("valve %s health %s (was %s)", v.ID, v.Health, change.Previous),
				ModuleKey: "valve",
				Timestamp: v.UpdatedAt,
			},
		})
	}
}

// Actuate accepts an open/close request and completes it after the
// simulated actuator latency. The reported torque is 50±2.5 Nm.
func (m *Module) Actuate(ctx context.Context, valveID, action string) (Actuation, error) {
	if action != "open" && action != "close" {
		return Actuation{}, fmt.Errorf("valve: unknown action %q", action)
	}
	if _, err := m.inventory.get(valveID); err != nil {
		return Actuation{}, err
	}

	actuation := Actuation{
		ID:          uuid.NewString(),
		ValveID:     valveID,
		Action:      action,
		RequestedAt: time.Now().UTC(),
	}
	if m.store != nil {
		if err := m.store.InsertActuation(ctx, actuation); err != nil {
			return Actuation{}, err
		}
	}

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicActuationRequested,
		Source:    "valve",
		Timestamp: actuation.RequestedAt,
		Payload: ActuationRequestedPayload{
			ActuationID: actuation.ID,
			ValveID:     valveID,
			Action:      action,
		},
	})

	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	m.wg.Add(1)
	go m.complete(parent, actuation)

	return actuation, nil
}

// complete finishes an actuation after the actuator delay.
func (m *Module) complete(ctx context.Context, actuation Actuation) {
	defer m.wg.Done()
	timer := time.NewTimer(m.actuationDelay())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	torque := nominalTorqueNm + (rand.Float64()-0.5)*5
	now := time.Now().UTC()
	actuation.TorqueNm = torque
	actuation.CompletedAt = &now
	actuation.Success = true

	valve, err := m.inventory.applyActuation(actuation.ValveID, actuation.Action, torque)
	if err != nil {
		m.logger.Warn("actuation completion failed", zap.Error(err))
		return
	}
	m.persistState(ctx, valve)
	if m.store != nil {
		if err := m.store.CompleteActuation(ctx, actuation); err != nil {
			m.logger.Warn("actuation persistence failed", zap.Error(err))
		}
	}
	actuationsCompleted.WithLabelValues(actuation.Action).Inc()

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicActuationCompleted,
		Source:    "valve",
		Timestamp: now,
		Payload: ActuationCompletedPayload{
			ActuationID: actuation.ID,
			ValveID:     actuation.ValveID,
			Action:      actuation.Action,
			TorqueNm:    torque,
			State:       valve.State,
		},
	})
}

// Actuations lists persisted actuation history, newest first.
func (m *Module) Actuations(ctx context.Context, valveID string, limit int) ([]Actuation, error) {
	if m.store == nil {
		return []Actuation{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return m.store.ListActuations(ctx, valveID, limit)
}

// HealthReport is the aggregate valve health view.
type HealthReport struct {
	Score              int      `json:"score"`
	Valves             []Valve  `json:"valves"`
	MaintenanceOverdue []string `json:"maintenanceOverdue"`
}

// Health scores the inventory 0-100: a degraded valve costs 15, a
// critical one 35, an overdue service 5.
func (m *Module) Health(ctx context.Context) HealthReport {
	valves := m.Valves(ctx)
	now := time.Now().UTC()

	report := HealthReport{Score: 100, Valves: valves}
	for _, v := range valves {
		switch v.Health {
		case HealthDegraded:
			report.Score -= 15
		case HealthCritical:
			report.Score -= 35
		}
		if maintenanceOverdue(v, now) {
			report.Score -= 5
			report.MaintenanceOverdue = append(report.MaintenanceOverdue, v.ID)
		}
	}
	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

func (m *Module) persistState(ctx context.Context, v Valve) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveState(ctx, v); err != nil {
		m.logger.Warn("valve state persistence failed",
			zap.String("valve_id", v.ID),
			zap.Error(err),
		)
	}
}
