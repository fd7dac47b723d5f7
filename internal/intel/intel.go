// Package intel accepts insights from external analysis services and
// makes them queryable alongside the system's own detections.
package intel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
	"github.com/plainview-io/plainview/pkg/ringbuf"
)

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// TopicInsightReceived announces an ingested external insight.
const TopicInsightReceived = "intel.insight.received"

// ErrNotFound is returned for unknown insight IDs.
var ErrNotFound = errors.New("intel: insight not found")

// Insight is one external finding.
type Insight struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Severity   string    `json:"severity"` // info | warning | critical
	Source     string    `json:"source"`
	Tags       []string  `json:"tags,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// InsightReceivedPayload is the bus announcement for a new insight.
type InsightReceivedPayload struct {
	InsightID string `json:"insightId"`
	Severity  string `json:"severity"`
	Source    string `json:"source"`
}

// Module implements the external insights plugin.
type Module struct {
	logger   *zap.Logger
	bus      plugin.EventBus
	insights *ringbuf.Ring[Insight]
}

// New creates a new intel plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "intel",
		Version:     "0.1.0",
		Description: "External insight ingestion",
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.insights = ringbuf.New[Insight](100)
	return nil
}

func (m *Module) Start(ctx context.Context) error { return nil }

func (m *Module) Stop(ctx context.Context) error { return nil }

// Ingest stores an insight and announces it. The ID and receipt time
// are assigned here.
func (m *Module) Ingest(ctx context.Context, insight Insight) Insight {
	insight.ID = uuid.NewString()
	insight.ReceivedAt = time.Now().UTC()
	if insight.Severity == "" {
		insight.Severity = "info"
	}
	m.insights.Push(insight)

	m.logger.Info("insight received",
		zap.String("insight_id", insight.ID),
		zap.String("source", insight.Source),
		zap.String("severity", insight.Severity),
	)
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicInsightReceived,
		Source:    "intel",
		Timestamp: insight.ReceivedAt,
		Payload: InsightReceivedPayload{
			InsightID: insight.ID,
			Severity:  insight.Severity,
			Source:    insight.Source,
		},
	})
	return insight
}

// List returns stored insights, oldest first, optionally filtered by
// severity.
func (m *Module) List(severity string) []Insight {
	return m.insights.Filter(func(i Insight) bool {
		return severity == "" || i.Severity == severity
	})
}

// Get returns one insight by ID.
func (m *Module) Get(id string) (Insight, error) {
	for _, i := range m.insights.Snapshot() {
		if i.ID == id {
			return i, nil
		}
	}
	return Insight{}, ErrNotFound
}
