package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/event"
	"github.com/plainview-io/plainview/pkg/models"
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

// forceLeak makes the next roll deterministic: always leak, fixed
// section and severity split value.
func forceLeak(m *Module, severityRoll float64) {
	calls := 0
	m.detector.rand = func() float64 {
		calls++
		switch calls {
		case 1:
			return 0 // below any probability: leak happens
		case 2:
			return 0 // section index 0
		case 3:
			return severityRoll
		default:
			return 0.5 // volume jitter
		}
	}
}

func TestScanRaisesAlert(t *testing.T) {
	m, bus := newTestModule(t)
	forceLeak(m, 0.95) // critical

	var alerts []models.Alert
	unsub := bus.Subscribe(models.TopicAlertCreated, func(ctx context.Context, e plugin.Event) {
		if a, ok := e.Payload.(models.Alert); ok {
			alerts = append(alerts, a)
		}
	})
	defer unsub()

	m.scan(context.Background())

	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != models.AlertSeverityCritical {
		t.Errorf("alert severity = %q, want critical for a critical leak", alerts[0].Severity)
	}
	if alerts[0].ModuleKey != "pipeline" {
		t.Errorf("moduleKey = %q, want pipeline", alerts[0].ModuleKey)
	}
	if alerts[0].Location == nil {
		t.Error("alert carries no location")
	}

	leaks := m.Leaks()
	if len(leaks) != 1 || leaks[0].Severity != LeakCritical {
		t.Fatalf("leaks = %+v, want one critical", leaks)
	}
}

func TestScanWithoutLeakIsQuiet(t *testing.T) {
	m, bus := newTestModule(t)
	m.detector.rand = func() float64 { return 0.99 } // above probability

	var alerts int
	unsub := bus.Subscribe(models.TopicAlertCreated, func(ctx context.Context, e plugin.Event) {
		alerts++
	})
	defer unsub()

	m.scan(context.Background())

	if alerts != 0 {
		t.Errorf("alerts = %d, want 0", alerts)
	}
	if len(m.Leaks()) != 0 {
		t.Errorf("leaks = %d, want 0", len(m.Leaks()))
	}
}

func TestMinorLeakRaisesWarning(t *testing.T) {
	m, bus := newTestModule(t)
	forceLeak(m, 0.1) // minor

	var alerts []models.Alert
	unsub := bus.Subscribe(models.TopicAlertCreated, func(ctx context.Context, e plugin.Event) {
		if a, ok := e.Payload.(models.Alert); ok {
			alerts = append(alerts, a)
		}
	})
	defer unsub()

	m.scan(context.Background())

	if len(alerts) != 1 || alerts[0].Severity != models.AlertSeverityWarning {
		t.Fatalf("alerts = %+v, want one warning", alerts)
	}
}

func TestResolveAcknowledges(t *testing.T) {
	m, bus := newTestModule(t)
	forceLeak(m, 0.1)
	m.scan(context.Background())

	leaks := m.Leaks()
	if len(leaks) != 1 {
		t.Fatalf("leaks = %d, want 1", len(leaks))
	}

	var acked []models.Alert
	unsub := bus.Subscribe(models.TopicAlertAcknowledged, func(ctx context.Context, e plugin.Event) {
		if a, ok := e.Payload.(models.Alert); ok {
			acked = append(acked, a)
		}
	})
	defer unsub()

	repaired, err := m.Resolve(context.Background(), leaks[0].ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if repaired.Status != LeakRepaired {
		t.Errorf("status = %q, want repaired", repaired.Status)
	}
	if repaired.RepairedAt == nil {
		t.Error("RepairedAt not stamped")
	}
	if len(acked) != 1 {
		t.Errorf("alert.acknowledged events = %d, want 1", len(acked))
	}

	if _, err := m.Resolve(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(unknown) = %v, want ErrNotFound", err)
	}
}

func TestSummaryAndHealthReport(t *testing.T) {
	m, _ := newTestModule(t)

	forceLeak(m, 0.95) // critical on section 0
	m.scan(context.Background())
	forceLeak(m, 0.1) // minor on section 0
	m.scan(context.Background())

	s := m.Summarize()
	if s.ActiveLeaks != 2 || s.CriticalLeaks != 1 {
		t.Errorf("summary = %+v, want 2 active / 1 critical", s)
	}
	if s.IntegrityScore != 80 {
		t.Errorf("integrity = %v, want 80", s.IntegrityScore)
	}

	report := m.HealthReport()
	if len(report) != 5 {
		t.Fatalf("report sections = %d, want 5", len(report))
	}
	if report[0].Status != "leaking" || report[0].ActiveLeaks != 2 {
		t.Errorf("section 0 health = %+v, want leaking with 2 active", report[0])
	}
	for _, h := range report[1:] {
		if h.Status != "nominal" {
			t.Errorf("section %s = %q, want nominal", h.Section.ID, h.Status)
		}
	}

	health, leaks, err := m.SectionDetail("sec-01")
	if err != nil {
		t.Fatalf("SectionDetail: %v", err)
	}
	if health.Section.ID != "sec-01" || len(leaks) != 2 {
		t.Errorf("detail = %+v with %d leaks, want sec-01 with 2", health, len(leaks))
	}
	if _, _, err := m.SectionDetail("sec-99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SectionDetail(unknown) = %v, want ErrNotFound", err)
	}
}

func TestLeakHistoryEviction(t *testing.T) {
	m, _ := newTestModule(t)
	m.detector = newDetector(3)

	for i := 0; i < 5; i++ {
		forceLeak(m, 0.1)
		m.scan(context.Background())
	}
	leaks := m.Leaks()
	if len(leaks) != 3 {
		t.Fatalf("history = %d leaks, want capacity 3", len(leaks))
	}
	// Evicted leaks are no longer resolvable.
	if _, err := m.Resolve(context.Background(), leaks[0].ID); err != nil {
		t.Errorf("Resolve(kept leak) = %v", err)
	}
}
