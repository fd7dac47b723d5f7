package rig

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Event topics published by the rig module.
const (
	TopicDetectionMade = "detection.made"
	TopicCameraStatus  = "camera.status.changed"
)

// DetectionMadePayload announces one visual detection.
type DetectionMadePayload struct {
	DetectionID string  `json:"detectionId"`
	CameraID    string  `json:"cameraId"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
}

// CameraStatusPayload announces a feed flapping between online and
// degraded.
type CameraStatusPayload struct {
	CameraID string `json:"cameraId"`
	Status   string `json:"status"`
}

var detectionsMade = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plainview_rig_detections_total",
		Help: "Camera detections, by type.",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(detectionsMade)
}

// RigConfig holds the rig module's tunables.
type RigConfig struct {
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
}

// DefaultConfig returns the documented 3s camera cadence.
func DefaultConfig() RigConfig {
	return RigConfig{
		ScanInterval:    3 * time.Second,
		HistoryCapacity: 500,
	}
}

// Module implements the rig camera plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus
	cfg    RigConfig

	watcher *watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new rig plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "rig",
		Version:     "0.1.0",
		Description: "Rig camera coverage and visual detections",
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
	m.watcher = newWatcher(m.cfg.HistoryCapacity)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	scanCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.scanLoop(scanCtx)

	m.logger.Info("rig module started", zap.Duration("scan_interval", m.cfg.ScanInterval))
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("rig module stopped")
	return nil
}

func (m *Module) scanLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

// scan runs one camera pass and publishes whatever it produced.
func (m *Module) scan(ctx context.Context) {
	detection, flapped := m.watcher.tick()

	if flapped != nil {
		m.logger.Info("camera status changed",
			zap.String("camera_id", flapped.ID),
			zap.String("status", flapped.Status),
		)
		_ = m.bus.Publish(ctx, plugin.Event{
			Topic:     TopicCameraStatus,
			Source:    "rig",
			Timestamp: time.Now().UTC(),
			Payload:   CameraStatusPayload{CameraID: flapped.ID, Status: flapped.Status},
		})
	}
	if detection == nil {
		return
	}

	detectionsMade.WithLabelValues(detection.Type).Inc()
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicDetectionMade,
		Source:    "rig",
		Timestamp: detection.DetectedAt,
		Payload: DetectionMadePayload{
			DetectionID: detection.ID,
			CameraID:    detection.CameraID,
			Type:        detection.Type,
			Confidence:  detection.Confidence,
		},
	})
}

// Cameras lists the camera inventory.
func (m *Module) Cameras() []Camera {
	return m.watcher.list()
}

// Camera returns one camera by ID.
func (m *Module) Camera(id string) (Camera, error) {
	return m.watcher.camera(id)
}

// Detections returns recorded detections matching the filter, oldest
// first.
func (m *Module) Detections(f DetectionFilter) []Detection {
	return m.watcher.filter(f)
}

// CoverageHealth summarizes per-camera feed status and detection
// volume.
type CoverageHealth struct {
	Cameras         []CameraCoverage `json:"cameras"`
	OnlineCameras   int              `json:"onlineCameras"`
	TotalDetections int              `json:"totalDetections"`
}

// CameraCoverage is one camera's slice of the coverage report.
type CameraCoverage struct {
	Camera     Camera `json:"camera"`
	Detections int    `json:"detections"`
}

// Coverage builds the coverage health report.
func (m *Module) Coverage() CoverageHealth {
	counts := make(map[string]int)
	total := 0
	for _, d := range m.watcher.filter(DetectionFilter{}) {
		counts[d.CameraID]++
		total++
	}

	report := CoverageHealth{TotalDetections: total}
	for _, cam := range m.watcher.list() {
		if cam.Status == CameraOnline {
			report.OnlineCameras++
		}
		report.Cameras = append(report.Cameras, CameraCoverage{
			Camera:     cam,
			Detections: counts[cam.ID],
		})
	}
	return report
}
