// Package incident groups raw alert events into higher-level incidents
// and tracks each incident's lifecycle and timeline.
package incident

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plainview-io/plainview/pkg/models"
)

// Incident statuses. There is no transition out of resolved.
const (
	StatusActive        = "active"
	StatusInvestigating = "investigating"
	StatusMitigated     = "mitigated"
	StatusResolved      = "resolved"
)

// Timeline entry types.
const (
	TimelineDetection = "detection"
	TimelineAlert     = "alert"
	TimelineAction    = "action"
	TimelineUpdate    = "update"
)

// Incident sentinel errors.
var (
	ErrNotFound          = errors.New("incident: not found")
	ErrInvalidTransition = errors.New("incident: invalid status transition")
)

// correlationWindow bounds how old an open incident may be and still
// absorb a new alert.
const correlationWindow = 2 * time.Minute

// TimelineEvent is one append-only entry in an incident's history.
// Storage order is insertion order; reads return newest first.
type TimelineEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Type        string         `json:"type"` // detection | alert | action | update
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Incident is a correlated group of alerts. Never deleted, only
// transitioned.
type Incident struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Severity        string          `json:"severity"`
	Status          string          `json:"status"`
	StartedAt       time.Time       `json:"startedAt"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
	AffectedModules []string        `json:"affectedModules"`
	AlertIDs        []string        `json:"alertIds"`
	DetectionIDs    []string        `json:"detectionIds"`
	RootCause       string          `json:"rootCause,omitempty"`
	Resolution      string          `json:"resolution,omitempty"`
	Timeline        []TimelineEvent `json:"timeline"`
}

// Update carries the optional mutation fields accepted by the
// correlator. A Resolution forces status resolved.
type Update struct {
	Status     string `json:"status,omitempty"`
	RootCause  string `json:"rootCause,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// Correlator owns the incident set. Correlation deliberately ignores
// geographic proximity even though alerts carry coordinates; matching
// is by recency only.
type Correlator struct {
	mu        sync.Mutex
	incidents map[string]*Incident
	order     []string // creation order
	now       func() time.Time
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		incidents: make(map[string]*Incident),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Seed loads previously persisted incidents, oldest first.
func (c *Correlator) Seed(incidents []Incident) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range incidents {
		stored := incidents[i]
		if _, exists := c.incidents[stored.ID]; exists {
			continue
		}
		c.incidents[stored.ID] = &stored
		c.order = append(c.order, stored.ID)
	}
}

// Correlate attaches an alert to the first non-resolved incident started
// within the correlation window, or creates a new incident seeded with
// it. Returns the affected incident and whether it was newly created.
func (c *Correlator) Correlate(alert models.Alert) (Incident, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-correlationWindow)

	for _, id := range c.order {
		inc := c.incidents[id]
		if inc.Status == StatusResolved || inc.StartedAt.Before(cutoff) {
			continue
		}
		inc.AlertIDs = append(inc.AlertIDs, alert.ID)
		inc.AffectedModules = appendUnique(inc.AffectedModules, alert.ModuleKey)
		inc.Timeline = append(inc.Timeline, TimelineEvent{
			Timestamp:   now,
			Type:        TimelineAlert,
			Title:       "Alert correlated",
			Description: alert.Message,
			Metadata:    map[string]any{"alertId": alert.ID, "severity": alert.Severity},
		})
		return *inc, false
	}

	inc := &Incident{
		ID:              uuid.NewString(),
		Title:           fmt.Sprintf("Incident: %s", alert.Message),
		Severity:        alert.Severity,
		Status:          StatusActive,
		StartedAt:       now,
		AffectedModules: appendUnique(nil, alert.ModuleKey),
		AlertIDs:        []string{alert.ID},
		Timeline: []TimelineEvent{{
			Timestamp:   now,
			Type:        TimelineDetection,
			Title:       "Incident opened",
			Description: alert.Message,
			Metadata:    map[string]any{"alertId": alert.ID, "severity": alert.Severity},
		}},
	}
	c.incidents[inc.ID] = inc
	c.order = append(c.order, inc.ID)
	return *inc, true
}

// Get returns an incident by ID.
func (c *Correlator) Get(id string) (Incident, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc, ok := c.incidents[id]
	if !ok {
		return Incident{}, ErrNotFound
	}
	return *inc, nil
}

// ListActive returns all non-resolved incidents, oldest first.
func (c *Correlator) ListActive() []Incident {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Incident, 0, len(c.order))
	for _, id := range c.order {
		if inc := c.incidents[id]; inc.Status != StatusResolved {
			out = append(out, *inc)
		}
	}
	return out
}

// ListRecent returns incidents started within the window, oldest first.
func (c *Correlator) ListRecent(window time.Duration) []Incident {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)
	out := make([]Incident, 0, len(c.order))
	for _, id := range c.order {
		if inc := c.incidents[id]; !inc.StartedAt.Before(cutoff) {
			out = append(out, *inc)
		}
	}
	return out
}

// Apply mutates an incident. A resolution forces status resolved and
// stamps ResolvedAt; a root cause appends an update entry. Status
// changes on a resolved incident are rejected.
func (c *Correlator) Apply(id string, update Update) (Incident, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inc, ok := c.incidents[id]
	if !ok {
		return Incident{}, ErrNotFound
	}
	if inc.Status == StatusResolved && (update.Status != "" || update.Resolution != "") {
		return Incident{}, ErrInvalidTransition
	}

	now := c.now()
	if update.Status != "" {
		inc.Status = update.Status
		inc.Timeline = append(inc.Timeline, TimelineEvent{
			Timestamp: now,
			Type:      TimelineUpdate,
			Title:     "Status changed",
			Metadata:  map[string]any{"status": update.Status},
		})
	}
	if update.RootCause != "" {
		inc.RootCause = update.RootCause
		inc.Timeline = append(inc.Timeline, TimelineEvent{
			Timestamp:   now,
			Type:        TimelineUpdate,
			Title:       "Root cause identified",
			Description: update.RootCause,
		})
	}
	if update.Resolution != "" {
		inc.Resolution = update.Resolution
		inc.Status = StatusResolved
		resolvedAt := now
		inc.ResolvedAt = &resolvedAt
		inc.Timeline = append(inc.Timeline, TimelineEvent{
			Timestamp:   now,
			Type:        TimelineAction,
			Title:       "Incident resolved",
			Description: update.Resolution,
		})
	}
	return *inc, nil
}

// Timeline returns an incident's timeline, newest first.
func (c *Correlator) Timeline(id string) ([]TimelineEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc, ok := c.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]TimelineEvent, len(inc.Timeline))
	for i, e := range inc.Timeline {
		out[len(inc.Timeline)-1-i] = e
	}
	return out, nil
}

func appendUnique(set []string, v string) []string {
	if v == "" {
		return set
	}
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}
