package incident

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/event"
	"github.com/plainview-io/plainview/internal/store"
	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
)

func newTestModule(t *testing.T, st plugin.Store) (*Module, *event.Bus) {
	t.Helper()
	bus := event.NewBus(zap.NewNop())
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Bus:    bus,
		Store:  st,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m, bus
}

func testSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func publishAlert(t *testing.T, bus *event.Bus, alert models.Alert) {
	t.Helper()
	if err := bus.Publish(context.Background(), plugin.Event{
		Topic:     models.TopicAlertCreated,
		Source:    "pipeline",
		Timestamp: alert.Timestamp,
		Payload:   alert,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestAlertEventsDriveCorrelation(t *testing.T) {
	m, bus := newTestModule(t, nil)

	var created, updated int
	unsubCreated := bus.Subscribe(TopicIncidentCreated, func(ctx context.Context, e plugin.Event) {
		created++
	})
	defer unsubCreated()
	unsubUpdated := bus.Subscribe(TopicIncidentUpdated, func(ctx context.Context, e plugin.Event) {
		updated++
	})
	defer unsubUpdated()

	publishAlert(t, bus, testAlert("a1", "warning", "leak"))
	publishAlert(t, bus, testAlert("a2", "critical", "pressure drop"))

	if created != 1 {
		t.Errorf("incident.created events = %d, want 1", created)
	}
	if updated != 1 {
		t.Errorf("incident.updated events = %d, want 1", updated)
	}

	active := m.ListActive()
	if len(active) != 1 {
		t.Fatalf("active incidents = %d, want 1", len(active))
	}
	if len(active[0].AlertIDs) != 2 {
		t.Errorf("alert refs = %d, want 2", len(active[0].AlertIDs))
	}
}

func TestIncidentsSurviveRestart(t *testing.T) {
	st := testSQLite(t)

	m1, bus1 := newTestModule(t, st)
	publishAlert(t, bus1, testAlert("a1", "critical", "rupture"))

	incidents := m1.ListActive()
	if len(incidents) != 1 {
		t.Fatalf("active incidents = %d, want 1", len(incidents))
	}
	id := incidents[0].ID
	if _, err := m1.Update(context.Background(), id, Update{RootCause: "corrosion"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := m1.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// A fresh module over the same store sees the persisted incident.
	m2, _ := newTestModule(t, st)
	restored, err := m2.Get(id)
	if err != nil {
		t.Fatalf("Get after restart: %v", err)
	}
	if restored.RootCause != "corrosion" {
		t.Errorf("restored rootCause = %q, want corrosion", restored.RootCause)
	}
	if len(restored.Timeline) != 2 {
		t.Errorf("restored timeline = %d entries, want 2", len(restored.Timeline))
	}
	if restored.StartedAt.IsZero() {
		t.Error("restored StartedAt not preserved")
	}
}

func TestUpdateUnknownIncidentViaModule(t *testing.T) {
	m, _ := newTestModule(t, nil)
	if _, err := m.Update(context.Background(), "ghost", Update{Status: StatusMitigated}); err == nil {
		t.Fatal("Update on unknown incident succeeded")
	}
}
