package mission

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/event"
	"github.com/plainview-io/plainview/pkg/plugin"
)

func TestLifecycleEventsOnBus(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Bus:    bus,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var started []MissionStartedPayload
	var completed []MissionCompletedPayload
	unsubStart := bus.Subscribe(TopicMissionStarted, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(MissionStartedPayload); ok {
			started = append(started, p)
		}
	})
	defer unsubStart()
	unsubStop := bus.Subscribe(TopicMissionCompleted, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(MissionCompletedPayload); ok {
			completed = append(completed, p)
		}
	})
	defer unsubStop()

	mission := m.Create(CreateSpec{Title: "rig survey", Speed: 2})
	if _, err := m.StartMission(context.Background(), mission.ID); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if _, err := m.StopMission(context.Background(), mission.ID); err != nil {
		t.Fatalf("StopMission: %v", err)
	}

	if len(started) != 1 || started[0].MissionID != mission.ID || started[0].Speed != 2 {
		t.Errorf("mission.started events = %+v", started)
	}
	if len(completed) != 1 || completed[0].MissionID != mission.ID {
		t.Errorf("mission.completed events = %+v", completed)
	}

	// Failed transitions publish nothing.
	if _, err := m.StopMission(context.Background(), mission.ID); err == nil {
		t.Fatal("second StopMission succeeded")
	}
	if len(completed) != 1 {
		t.Errorf("failed stop published an event, total = %d", len(completed))
	}
}
