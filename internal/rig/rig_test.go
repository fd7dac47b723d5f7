package rig

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

// forceDetection makes the next tick produce exactly one detection and
// no flapping: rand sequence is flap roll, detection roll, camera
// index, type index, confidence, then region values.
func forceDetection(m *Module, typeRoll float64) {
	calls := 0
	m.watcher.rand = func() float64 {
		calls++
		switch calls {
		case 1:
			return 0.99 // no flap
		case 2:
			return 0 // detection happens
		case 3:
			return 0 // camera index 0
		case 4:
			return typeRoll
		case 5:
			return 0.5 // confidence 0.85
		default:
			return 0.3
		}
	}
}

func TestTickProducesDetection(t *testing.T) {
	m, bus := newTestModule(t)
	forceDetection(m, 0) // pressure_deviation

	var events []DetectionMadePayload
	unsub := bus.Subscribe(TopicDetectionMade, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(DetectionMadePayload); ok {
			events = append(events, p)
		}
	})
	defer unsub()

	m.scan(context.Background())

	if len(events) != 1 {
		t.Fatalf("detection events = %d, want 1", len(events))
	}
	if events[0].CameraID != "cam-01" || events[0].Type != "pressure_deviation" {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].Confidence < 0.7 || events[0].Confidence > 1.0 {
		t.Errorf("confidence = %v, want within [0.7, 1.0]", events[0].Confidence)
	}

	stored := m.Detections(DetectionFilter{})
	if len(stored) != 1 {
		t.Fatalf("stored detections = %d, want 1", len(stored))
	}
	if stored[0].Region.Width < 40 {
		t.Errorf("region = %+v, want width >= 40", stored[0].Region)
	}
}

func TestQuietTick(t *testing.T) {
	m, bus := newTestModule(t)
	m.watcher.rand = func() float64 { return 0.99 } // no flap, no detection

	var events int
	unsub := bus.SubscribeAll(func(ctx context.Context, e plugin.Event) {
		events++
	})
	defer unsub()

	m.scan(context.Background())
	if events != 0 {
		t.Errorf("events = %d, want 0", events)
	}
}

func TestCameraFlapping(t *testing.T) {
	m, bus := newTestModule(t)
	calls := 0
	m.watcher.rand = func() float64 {
		calls++
		switch calls {
		case 1:
			return 0 // flap roll hits
		case 2:
			return 0 // camera index 0
		default:
			return 0.99 // no detection
		}
	}

	statuses := make(chan CameraStatusPayload, 1)
	unsub := bus.Subscribe(TopicCameraStatus, func(ctx context.Context, e plugin.Event) {
		if p, ok := e.Payload.(CameraStatusPayload); ok {
			statuses <- p
		}
	})
	defer unsub()

	m.scan(context.Background())

	select {
	case p := <-statuses:
		if p.CameraID != "cam-01" || p.Status != CameraDegraded {
			t.Errorf("status event = %+v, want cam-01 degraded", p)
		}
	default:
		t.Fatal("no camera status event")
	}

	cam, err := m.Camera("cam-01")
	if err != nil {
		t.Fatalf("Camera: %v", err)
	}
	if cam.Status != CameraDegraded {
		t.Errorf("status = %q, want degraded", cam.Status)
	}
}

func TestDetectionFilters(t *testing.T) {
	m, _ := newTestModule(t)

	forceDetection(m, 0) // pressure_deviation on cam-01
	m.scan(context.Background())
	forceDetection(m, 0.6) // leak_sign on cam-01
	m.scan(context.Background())

	if got := len(m.Detections(DetectionFilter{})); got != 2 {
		t.Fatalf("unfiltered = %d, want 2", got)
	}
	if got := len(m.Detections(DetectionFilter{Type: "leak_sign"})); got != 1 {
		t.Errorf("type filter = %d, want 1", got)
	}
	if got := len(m.Detections(DetectionFilter{CameraID: "cam-02"})); got != 0 {
		t.Errorf("camera filter = %d, want 0", got)
	}
	if got := len(m.Detections(DetectionFilter{Since: time.Now().UTC().Add(time.Hour)})); got != 0 {
		t.Errorf("since filter = %d, want 0", got)
	}
}

func TestCoverageReport(t *testing.T) {
	m, _ := newTestModule(t)
	forceDetection(m, 0)
	m.scan(context.Background())

	report := m.Coverage()
	if report.OnlineCameras != 3 {
		t.Errorf("online = %d, want 3", report.OnlineCameras)
	}
	if report.TotalDetections != 1 {
		t.Errorf("total detections = %d, want 1", report.TotalDetections)
	}
	if len(report.Cameras) != 3 {
		t.Fatalf("cameras = %d, want 3", len(report.Cameras))
	}
	if report.Cameras[0].Detections != 1 {
		t.Errorf("cam-01 detections = %d, want 1", report.Cameras[0].Detections)
	}
}

func TestUnknownCamera(t *testing.T) {
	m, _ := newTestModule(t)
	if _, err := m.Camera("cam-99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Camera = %v, want ErrNotFound", err)
	}
}
