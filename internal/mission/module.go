package mission

import (
	"context"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Module implements the mission playback plugin.
type Module struct {
	logger  *zap.Logger
	bus     plugin.EventBus
	manager *Manager
}

// New creates a new mission plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "mission",
		Version:     "0.1.0",
		Description: "Mission playback state machine",
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.manager = NewManager()
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("mission module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("mission module stopped")
	return nil
}

// Create stores a new draft mission.
func (m *Module) Create(spec CreateSpec) Mission {
	return m.manager.Create(spec)
}

// Get returns a mission by ID.
func (m *Module) Get(id string) (Mission, error) {
	return m.manager.Get(id)
}

// List returns all missions.
func (m *Module) List() []Mission {
	return m.manager.List()
}

// Active returns the tracked current mission.
func (m *Module) Active() (Mission, bool) {
	return m.manager.Active()
}

// StartMission begins playback and announces it on the bus.
func (m *Module) StartMission(ctx context.Context, id string) (Mission, error) {
	mission, err := m.manager.Start(id)
	if err != nil {
		return Mission{}, err
	}
	m.logger.Info("mission started",
		zap.String("mission_id", mission.ID),
		zap.Float64("speed", mission.PlaybackSpeed),
	)
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicMissionStarted,
		Source:    "mission",
		Timestamp: *mission.StartedAt,
		Payload: MissionStartedPayload{
			MissionID: mission.ID,
			Title:     mission.Title,
			Speed:     mission.PlaybackSpeed,
		},
	})
	return mission, nil
}

// PauseMission suspends playback.
func (m *Module) PauseMission(id string) (Mission, error) {
	return m.manager.Pause(id)
}

// ResumeMission reactivates a paused mission.
func (m *Module) ResumeMission(id string) (Mission, error) {
	return m.manager.Resume(id)
}

// StopMission force-completes a mission and announces it.
func (m *Module) StopMission(ctx context.Context, id string) (Mission, error) {
	mission, err := m.manager.Stop(id)
	if err != nil {
		return Mission{}, err
	}
	m.logger.Info("mission completed", zap.String("mission_id", mission.ID))
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicMissionCompleted,
		Source:    "mission",
		Timestamp: *mission.CompletedAt,
		Payload:   MissionCompletedPayload{MissionID: mission.ID, Title: mission.Title},
	})
	return mission, nil
}

// SetSpeed updates a mission's playback speed, clamped to [0.1, 10].
func (m *Module) SetSpeed(id string, speed float64) (Mission, error) {
	return m.manager.SetSpeed(id, speed)
}

// Branch copies a mission's timeline into a new scenario draft.
func (m *Module) Branch(id string, overrides BranchOverrides) (Mission, error) {
	return m.manager.Branch(id, overrides)
}
