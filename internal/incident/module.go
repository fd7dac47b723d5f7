package incident

import (
	"context"
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

var incidentsOpened = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "plainview_incidents_opened_total",
	Help: "Incidents created by the alert correlator.",
})

func init() {
	prometheus.MustRegister(incidentsOpened)
}

// Module implements the alert correlator plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus

	correlator *Correlator
	store      *incidentStore

	unsubAlerts func()
}

// New creates a new incident plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "incident",
		Version:     "0.1.0",
		Description: "Alert correlation and incident lifecycle",
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.correlator = NewCorrelator()

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "incident", migrations()); err != nil {
			return err
		}
		m.store = newIncidentStore(deps.Store.DB())
		persisted, err := m.store.Load(ctx)
		if err != nil {
			return err
		}
		m.correlator.Seed(persisted)
		if len(persisted) > 0 {
			m.logger.Info("incidents restored", zap.Int("count", len(persisted)))
		}
	}

	m.unsubAlerts = m.bus.Subscribe(models.TopicAlertCreated, m.onAlert)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("incident module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.unsubAlerts != nil {
		m.unsubAlerts()
	}
	m.logger.Info("incident module stopped")
	return nil
}

// onAlert runs the correlation rule for each alert.created event.
func (m *Module) onAlert(ctx context.Context, e plugin.Event) {
	alert, ok := e.Payload.(models.Alert)
	if !ok {
		m.logger.Warn("alert event with unexpected payload", zap.String("source", e.Source))
		return
	}

	inc, created := m.correlator.Correlate(alert)
	m.persist(ctx, inc)

	if created {
		incidentsOpened.Inc()
		m.logger.Info("incident opened",
			zap.String("incident_id", inc.ID),
			zap.String("severity", inc.Severity),
		)
		_ = m.bus.Publish(ctx, plugin.Event{
			Topic:     TopicIncidentCreated,
			Source:    "incident",
			Timestamp: inc.StartedAt,
			Payload: IncidentCreatedPayload{
				IncidentID: inc.ID,
				AlertID:    alert.ID,
				Severity:   inc.Severity,
				Title:      inc.Title,
			},
		})
		return
	}

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicIncidentUpdated,
		Source:    "incident",
		Timestamp: time.Now().UTC(),
		Payload: IncidentUpdatedPayload{
			IncidentID: inc.ID,
			Status:     inc.Status,
			AlertID:    alert.ID,
		},
	})
}

// ListActive returns all non-resolved incidents.
func (m *Module) ListActive() []Incident {
	return m.correlator.ListActive()
}

// ListRecent returns incidents started within the last windowHours.
func (m *Module) ListRecent(windowHours int) []Incident {
	if windowHours <= 0 {
		windowHours = 24
	}
	return m.correlator.ListRecent(time.Duration(windowHours) * time.Hour)
}

// Get returns an incident by ID.
func (m *Module) Get(id string) (Incident, error) {
	return m.correlator.Get(id)
}

// Update applies a status/root-cause/resolution mutation and announces it.
func (m *Module) Update(ctx context.Context, id string, update Update) (Incident, error) {
	inc, err := m.correlator.Apply(id, update)
	if err != nil {
		return Incident{}, err
	}
	m.persist(ctx, inc)

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicIncidentUpdated,
		Source:    "incident",
		Timestamp: time.Now().UTC(),
		Payload:   IncidentUpdatedPayload{IncidentID: inc.ID, Status: inc.Status},
	})
	return inc, nil
}

// Timeline returns an incident's timeline, newest first.
func (m *Module) Timeline(id string) ([]TimelineEvent, error) {
	return m.correlator.Timeline(id)
}

func (m *Module) persist(ctx context.Context, inc Incident) {
	if m.store == nil {
		return
	}
	if err := m.store.Upsert(ctx, inc); err != nil {
		m.logger.Warn("incident persistence failed",
			zap.String("incident_id", inc.ID),
			zap.Error(err),
		)
	}
}
