// Package flow ingests telemetry samples, maintains rolling statistics,
// and flags deviations from the recent baseline as anomalies.
package flow

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plainview-io/plainview/internal/fleet"
	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
	"github.com/plainview-io/plainview/pkg/ringbuf"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

var anomaliesDetected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plainview_flow_anomalies_total",
		Help: "Anomalies detected by the flow module, by type and severity.",
	},
	[]string{"type", "severity"},
)

func init() {
	prometheus.MustRegister(anomaliesDetected)
}

// FlowConfig holds the flow module's tunables.
type FlowConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
	AnomalyCapacity int           `mapstructure:"anomaly_capacity"`
	WindowSize      int           `mapstructure:"window_size"`
}

// DefaultConfig returns the documented per-component capacities.
func DefaultConfig() FlowConfig {
	return FlowConfig{
		Interval:        5 * time.Second,
		HistoryCapacity: 100,
		AnomalyCapacity: 500,
		WindowSize:      10,
	}
}

// Module implements the flow telemetry plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus
	cfg    FlowConfig

	history   *ringbuf.Ring[models.TelemetrySample]
	detector  *Detector
	generator *generator

	unsubTelemetry func()
}

// New creates a new flow plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "flow",
		Version:     "0.1.0",
		Description: "Telemetry ingestion and anomaly detection",
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
	if m.cfg.HistoryCapacity <= 0 {
		m.cfg.HistoryCapacity = 100
	}

	m.history = ringbuf.New[models.TelemetrySample](m.cfg.HistoryCapacity)
	m.detector = NewDetector(m.cfg.WindowSize, m.cfg.AnomalyCapacity)

	var world worldSource
	if deps.Plugins != nil {
		if p, ok := deps.Plugins.Resolve("sim"); ok {
			if ws, ok := p.(worldSource); ok {
				world = ws
			}
		}
	}
	m.generator = newGenerator(m.cfg.Interval, defaultBaseline, func(s models.TelemetrySample) {
		m.ingest(ctx, s, "generator")
	}, world, m.logger)

	// Telemetry from registered field nodes counts as a live source.
	m.unsubTelemetry = m.bus.Subscribe(fleet.TopicTelemetry, func(c context.Context, e plugin.Event) {
		payload, ok := e.Payload.(fleet.TelemetryPayload)
		if !ok {
			return
		}
		m.Ingest(c, payload.Sample)
	})

	m.logger.Info("flow module initialized",
		zap.Int("history_capacity", m.cfg.HistoryCapacity),
		zap.Int("anomaly_capacity", m.cfg.AnomalyCapacity),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.generator.start(ctx)
	m.logger.Info("flow module started", zap.Duration("interval", m.cfg.Interval))
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	m.generator.stop()
	if m.unsubTelemetry != nil {
		m.unsubTelemetry()
	}
	m.logger.Info("flow module stopped")
	return nil
}

// Ingest accepts an externally produced telemetry sample. The simulated
// generator is silenced from the first call onward.
func (m *Module) Ingest(ctx context.Context, sample models.TelemetrySample) {
	m.generator.markLive()
	m.ingest(ctx, sample, "live")
}

// ingest is the single admission path for both sources.
func (m *Module) ingest(ctx context.Context, sample models.TelemetrySample, source string) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	m.history.Push(sample)
	anomalies := m.detector.Observe(sample)

	for _, a := range anomalies {
		anomaliesDetected.WithLabelValues(a.Type, a.Severity).Inc()
		m.logger.Warn("anomaly detected",
			zap.String("type", a.Type),
			zap.String("severity", a.Severity),
			zap.Float64("actual", a.ActualValue),
		)
		_ = m.bus.Publish(ctx, plugin.Event{
			Topic:     TopicAnomalyDetected,
			Source:    "flow",
			Timestamp: a.DetectedAt,
			Payload: AnomalyDetectedPayload{
				AssetID:     "flow-system",
				AnomalyID:   a.ID,
				AnomalyType: a.Type,
				Severity:    a.Severity,
				Confidence:  Confidence(a.Severity),
				At:          a.DetectedAt.UnixMilli(),
			},
		})
	}

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicMetricsUpdated,
		Source:    "flow",
		Timestamp: sample.Timestamp,
		Payload:   MetricsUpdatedPayload{Metrics: sample, Source: source},
	})
}

// Current returns the latest sample, falling back to the baseline when no
// sample has been recorded yet.
func (m *Module) Current() models.TelemetrySample {
	if last, ok := m.history.Last(); ok {
		return last
	}
	return defaultBaseline
}

// History returns the most recent n samples, oldest first.
func (m *Module) History(n int) []models.TelemetrySample {
	return m.history.Tail(n)
}

// Stats aggregates min/max/avg over the full stored history.
func (m *Module) Stats() models.TelemetryStats {
	return models.ComputeStats(m.history.Snapshot())
}

// Anomalies returns recorded anomalies matching the filter, oldest first.
func (m *Module) Anomalies(severity, anomalyType string, since time.Time) []Anomaly {
	return m.detector.Anomalies(severity, anomalyType, since)
}

// Source reports which telemetry source currently feeds the history.
func (m *Module) Source() string {
	if m.generator.live() {
		return "live"
	}
	return "simulated"
}

// HealthScore derives a 0-100 score from anomalies in the last hour.
func (m *Module) HealthScore(now time.Time) (score int, recent []Anomaly) {
	recent = m.detector.Anomalies("", "", now.Add(-time.Hour))

	score = 100
	if len(recent) > 3 {
		score -= 20
	}
	for _, a := range recent {
		if a.Severity == SeverityHigh {
			score -= 30
			break
		}
	}
	if score < 0 {
		score = 0
	}
	return score, recent
}
