package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/event"
	"github.com/plainview-io/plainview/pkg/plugin"
)

func newTestModule(t *testing.T) (*Module, *event.Bus) {
	t.Helper()
	bus := event.NewBus(zap.NewNop())
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Bus:    bus,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m, bus
}

func startTestModule(t *testing.T, m *Module) {
	t.Helper()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Stop(stopCtx)
	})
}

func TestRegisterPublishesDiscovered(t *testing.T) {
	m, bus := newTestModule(t)

	events := make(chan plugin.Event, 1)
	unsub := bus.Subscribe(TopicNodeDiscovered, func(ctx context.Context, e plugin.Event) {
		events <- e
	})
	defer unsub()

	m.Register(context.Background(), sensorNode("field", "n1"))

	select {
	case e := <-events:
		payload, ok := e.Payload.(NodeDiscoveredPayload)
		if !ok {
			t.Fatalf("payload type %T", e.Payload)
		}
		if payload.NodeID != "field/n1" || payload.Type != NodeTypeSensor {
			t.Errorf("payload = %+v", payload)
		}
	default:
		t.Fatal("no node.discovered event published")
	}
}

func TestSubscribeTelemetryValidation(t *testing.T) {
	m, _ := newTestModule(t)
	m.Register(context.Background(), sensorNode("field", "n1"))

	if err := m.SubscribeTelemetry("field/ghost", "flow"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown node = %v, want ErrNotFound", err)
	}
	if err := m.SubscribeTelemetry("field/n1", "pressure"); !errors.Is(err, ErrTopicNotSubscribed) {
		t.Errorf("undeclared topic = %v, want ErrTopicNotSubscribed", err)
	}
}

func TestTelemetryLoopRefreshesNode(t *testing.T) {
	m, bus := newTestModule(t)
	m.cfg.TelemetryInterval = 5 * time.Millisecond
	startTestModule(t, m)

	m.Register(context.Background(), sensorNode("field", "n1"))
	before, _ := m.Get("field/n1")

	received := make(chan TelemetryPayload, 1)
	unsub := bus.Subscribe(TopicTelemetry, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(TelemetryPayload); ok {
			select {
			case received <- p:
			default:
			}
		}
	})
	defer unsub()

	if err := m.SubscribeTelemetry("field/n1", "flow"); err != nil {
		t.Fatalf("SubscribeTelemetry: %v", err)
	}

	select {
	case p := <-received:
		if p.NodeID != "field/n1" || p.Topic != "flow" {
			t.Errorf("payload = %+v", p)
		}
		if p.Sample.FlowRateLpm <= 0 {
			t.Errorf("sample flow = %v, want > 0", p.Sample.FlowRateLpm)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fleet.telemetry event within deadline")
	}

	after, _ := m.Get("field/n1")
	if !after.LastSeen.After(before.LastSeen) {
		t.Error("telemetry delivery did not refresh LastSeen")
	}
	if after.Health != HealthOK {
		t.Errorf("Health = %q, want ok", after.Health)
	}

	if err := m.UnsubscribeTelemetry("field/n1", "flow"); err != nil {
		t.Errorf("UnsubscribeTelemetry: %v", err)
	}
	if err := m.UnsubscribeTelemetry("field/n1", "flow"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second UnsubscribeTelemetry = %v, want ErrNotFound", err)
	}
}

func TestPublishCommandAcks(t *testing.T) {
	m, bus := newTestModule(t)
	m.cfg.AckDelayMin = time.Millisecond
	m.cfg.AckDelayMax = 5 * time.Millisecond
	startTestModule(t, m)

	m.Register(context.Background(), sensorNode("field", "n1"))

	acked := make(chan CommandAckedPayload, 1)
	unsub := bus.Subscribe(TopicCommandAcked, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(CommandAckedPayload); ok {
			acked <- p
		}
	})
	defer unsub()

	result, err := m.PublishCommand(context.Background(), Command{
		NodeID: "field/n1",
		Topic:  "valve/actuate",
		Action: "open",
	})
	if err != nil {
		t.Fatalf("PublishCommand: %v", err)
	}
	if result.Status != CommandPending {
		t.Errorf("initial status = %q, want pending", result.Status)
	}

	select {
	case p := <-acked:
		if p.CommandID != result.CommandID {
			t.Errorf("acked command = %q, want %q", p.CommandID, result.CommandID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no command.acked event within deadline")
	}

	final, err := m.CommandResult(result.CommandID)
	if err != nil {
		t.Fatalf("CommandResult: %v", err)
	}
	if final.Status != CommandAcked {
		t.Errorf("final status = %q, want acked", final.Status)
	}
}

func TestPublishCommandValidation(t *testing.T) {
	m, _ := newTestModule(t)
	m.Register(context.Background(), sensorNode("field", "n1"))

	_, err := m.PublishCommand(context.Background(), Command{NodeID: "field/n1", Topic: "flow"})
	if !errors.Is(err, ErrTopicNotPublished) {
		t.Errorf("undeclared publish topic = %v, want ErrTopicNotPublished", err)
	}
	_, err = m.PublishCommand(context.Background(), Command{NodeID: "field/ghost", Topic: "flow"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown node = %v, want ErrNotFound", err)
	}
}

func TestOfflineSweep(t *testing.T) {
	m, bus := newTestModule(t)
	startTestModule(t, m)

	// Backdate the registration so the sweep sees it as silent.
	past := time.Now().UTC().Add(-2 * time.Minute)
	m.registry.now = func() time.Time { return past }
	m.Register(context.Background(), sensorNode("field", "n1"))
	m.registry.now = func() time.Time { return time.Now().UTC() }

	offline := make(chan NodeOfflinePayload, 1)
	unsub := bus.Subscribe(TopicNodeOffline, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(NodeOfflinePayload); ok {
			offline <- p
		}
	})
	defer unsub()

	m.sweep()

	select {
	case p := <-offline:
		if p.NodeID != "field/n1" {
			t.Errorf("offline node = %q, want field/n1", p.NodeID)
		}
	default:
		t.Fatal("sweep published no node.offline event")
	}

	n, _ := m.Get("field/n1")
	if n.Health != HealthOffline {
		t.Errorf("Health = %q, want offline", n.Health)
	}
}

func TestCommandStoreEviction(t *testing.T) {
	s := newCommandStore(2)
	s.add(CommandResult{CommandID: "c1", Status: CommandPending})
	s.add(CommandResult{CommandID: "c2", Status: CommandPending})
	s.add(CommandResult{CommandID: "c3", Status: CommandPending})

	if _, ok := s.get("c1"); ok {
		t.Error("evicted command still resolvable")
	}
	if _, ok := s.get("c3"); !ok {
		t.Error("newest command missing")
	}
	if got := len(s.list()); got != 2 {
		t.Errorf("list = %d results, want 2", got)
	}
}
