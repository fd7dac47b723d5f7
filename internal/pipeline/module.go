package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
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

var leaksDetected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plainview_pipeline_leaks_total",
		Help: "Simulated leak detections, by severity.",
	},
	[]string{"severity"},
)

func init() {
	prometheus.MustRegister(leaksDetected)
}

// leakSource is the optional simulation engine. While it runs it
// supplies the per-tick leak probability from its Poisson event model.
type leakSource interface {
	Running() bool
	LeakProbability() float64
}

// PipelineConfig holds the pipeline module's tunables.
type PipelineConfig struct {
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
}

// DefaultConfig returns the documented 10s scan cadence and leak
// history capacity.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		ScanInterval:    10 * time.Second,
		HistoryCapacity: 100,
	}
}

// Module implements the pipeline integrity plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus
	cfg    PipelineConfig

	detector *detector
	world    leakSource

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new pipeline plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "pipeline",
		Version:     "0.1.0",
		Description: "Pipeline section integrity and leak detection",
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
	m.detector = newDetector(m.cfg.HistoryCapacity)

	if deps.Plugins != nil {
		if p, ok := deps.Plugins.Resolve("sim"); ok {
			if ls, ok := p.(leakSource); ok {
				m.world = ls
			}
		}
	}
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	scanCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.scanLoop(scanCtx)

	m.logger.Info("pipeline module started", zap.Duration("scan_interval", m.cfg.ScanInterval))
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("pipeline module stopped")
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

// scan performs one detection pass and raises an alert for any leak.
func (m *Module) scan(ctx context.Context) {
	probability := -1.0
	if m.world != nil && m.world.Running() {
		probability = m.world.LeakProbability()
	}

	leak := m.detector.roll(probability)
	if leak == nil {
		return
	}
	leaksDetected.WithLabelValues(leak.Severity).Inc()
	m.logger.Warn("leak detected",
		zap.String("leak_id", leak.ID),
		zap.String("section", leak.SectionID),
		zap.String("severity", leak.Severity),
	)

	alertSeverity := models.AlertSeverityWarning
	if leak.Severity == LeakCritical {
		alertSeverity = models.AlertSeverityCritical
	}
	location := leak.Location
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     models.TopicAlertCreated,
		Source:    "pipeline",
		Timestamp: leak.DetectedAt,
		Payload: models.Alert{
			ID:        leak.ID,
			Severity:  alertSeverity,
			Status:    models.AlertStatusActive,
			Message:   fmt.Sprintf("%s leak on %s (est. %.0f L/min)", leak.Severity, leak.SectionID, leak.EstimatedLpm),
			ModuleKey: "pipeline",
			Timestamp: leak.DetectedAt,
			Location:  &location,
		},
	})
}

// Resolve marks a leak repaired and acknowledges its alert.
func (m *Module) Resolve(ctx context.Context, leakID string) (Leak, error) {
	leak, err := m.detector.resolve(leakID)
	if err != nil {
		return Leak{}, err
	}
	m.logger.Info("leak repaired", zap.String("leak_id", leak.ID))

	location := leak.Location
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     models.TopicAlertAcknowledged,
		Source:    "pipeline",
		Timestamp: time.Now().UTC(),
		Payload: models.Alert{
			ID:        leak.ID,
			Severity:  models.AlertSeverityInfo,
			Status:    models.AlertStatusAcknowledged,
			Message:   fmt.Sprintf("leak on %s repaired", leak.SectionID),
			ModuleKey: "pipeline",
			Timestamp: time.Now().UTC(),
			Location:  &location,
		},
	})
	return leak, nil
}

// Leaks returns recorded leaks, oldest first.
func (m *Module) Leaks() []Leak {
	return m.detector.history()
}

// Leak returns one leak by ID.
func (m *Module) Leak(id string) (Leak, error) {
	leak, ok := m.detector.get(id)
	if !ok {
		return Leak{}, ErrNotFound
	}
	return leak, nil
}

// Sections lists the monitored pipeline sections.
func (m *Module) Sections() []Section {
	return m.detector.sections
}

// Summary aggregates the current leak picture into an integrity score.
type Summary struct {
	ActiveLeaks    int     `json:"activeLeaks"`
	CriticalLeaks  int     `json:"criticalLeaks"`
	RepairedLeaks  int     `json:"repairedLeaks"`
	IntegrityScore float64 `json:"integrityScore"`
}

// Summarize computes active/critical counts and a 0-100 integrity
// score. Critical leaks weigh three times a regular active leak.
func (m *Module) Summarize() Summary {
	var s Summary
	for _, leak := range m.detector.history() {
		if leak.Status == LeakRepaired {
			s.RepairedLeaks++
			continue
		}
		s.ActiveLeaks++
		if leak.Severity == LeakCritical {
			s.CriticalLeaks++
		}
	}
	score := 100 - float64(s.ActiveLeaks)*5 - float64(s.CriticalLeaks)*10
	if score < 0 {
		score = 0
	}
	s.IntegrityScore = score
	return s
}

// SectionHealth is the per-section entry of the health report.
type SectionHealth struct {
	Section     Section `json:"section"`
	ActiveLeaks int     `json:"activeLeaks"`
	PressurePa  float64 `json:"pressurePa"`
	Status      string  `json:"status"` // nominal | leaking
}

// HealthReport builds the per-section pressure profile. Sections with
// active leaks read low.
func (m *Module) HealthReport() []SectionHealth {
	active := make(map[string]int)
	for _, leak := range m.detector.history() {
		if leak.Status == LeakActive {
			active[leak.SectionID]++
		}
	}

	out := make([]SectionHealth, 0, len(m.detector.sections))
	for _, section := range m.detector.sections {
		h := SectionHealth{
			Section:     section,
			ActiveLeaks: active[section.ID],
			PressurePa:  2500000 + (rand.Float64()-0.5)*40000,
			Status:      "nominal",
		}
		if h.ActiveLeaks > 0 {
			h.PressurePa -= 200000 * float64(h.ActiveLeaks)
			h.Status = "leaking"
		}
		out = append(out, h)
	}
	return out
}

// SectionDetail returns one section plus its recorded leaks.
func (m *Module) SectionDetail(id string) (SectionHealth, []Leak, error) {
	section, ok := m.detector.sectionByID(id)
	if !ok {
		return SectionHealth{}, nil, ErrNotFound
	}
	var leaks []Leak
	for _, leak := range m.detector.history() {
		if leak.SectionID == id {
			leaks = append(leaks, leak)
		}
	}
	for _, h := range m.HealthReport() {
		if h.Section.ID == id {
			return h, leaks, nil
		}
	}
	return SectionHealth{Section: section, Status: "nominal"}, leaks, nil
}
