// Package pipeline simulates leak detection across the pipeline's
// sections and feeds the alert correlator with its findings.
package pipeline

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/ringbuf"
)

// Leak severities.
const (
	LeakMinor    = "minor"
	LeakMajor    = "major"
	LeakCritical = "critical"
)

// Leak statuses.
const (
	LeakActive   = "active"
	LeakRepaired = "repaired"
)

// ErrNotFound is returned for unknown leak or section IDs.
var ErrNotFound = errors.New("pipeline: not found")

// Section is one monitored stretch of pipe.
type Section struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	StartKm  float64         `json:"startKm"`
	EndKm    float64         `json:"endKm"`
	Location models.GeoPoint `json:"location"`
}

// Leak is one detection. Status moves active -> repaired via Resolve.
type Leak struct {
	ID           string          `json:"id"`
	SectionID    string          `json:"sectionId"`
	Severity     string          `json:"severity"`
	Status       string          `json:"status"`
	EstimatedLpm float64         `json:"estimatedLpm"`
	DetectedAt   time.Time       `json:"detectedAt"`
	RepairedAt   *time.Time      `json:"repairedAt,omitempty"`
	Location     models.GeoPoint `json:"location"`
}

// defaultSections lays out the five monitored stretches.
func defaultSections() []Section {
	return []Section{
		{ID: "sec-01", Name: "Wellhead manifold", StartKm: 0, EndKm: 3.2, Location: models.GeoPoint{Lat: 35.393, Lon: -119.043}},
		{ID: "sec-02", Name: "North gathering line", StartKm: 3.2, EndKm: 11.7, Location: models.GeoPoint{Lat: 35.427, Lon: -119.061}},
		{ID: "sec-03", Name: "River crossing", StartKm: 11.7, EndKm: 14.1, Location: models.GeoPoint{Lat: 35.452, Lon: -119.09}},
		{ID: "sec-04", Name: "Booster station approach", StartKm: 14.1, EndKm: 22.8, Location: models.GeoPoint{Lat: 35.481, Lon: -119.128}},
		{ID: "sec-05", Name: "Terminal delivery", StartKm: 22.8, EndKm: 27.5, Location: models.GeoPoint{Lat: 35.51, Lon: -119.167}},
	}
}

// detector rolls leaks and tracks their history. The random source is
// injectable so tests can force or forbid detections.
type detector struct {
	mu       sync.Mutex
	sections []Section
	leaks    *ringbuf.Ring[*Leak]
	byID     map[string]*Leak
	rand     func() float64
	now      func() time.Time

	leakProbability float64
}

func newDetector(historyCapacity int) *detector {
	if historyCapacity <= 0 {
		historyCapacity = 100
	}
	return &detector{
		sections:        defaultSections(),
		leaks:           ringbuf.New[*Leak](historyCapacity),
		byID:            make(map[string]*Leak),
		rand:            rand.Float64,
		now:             func() time.Time { return time.Now().UTC() },
		leakProbability: 0.1,
	}
}

// roll performs one detection pass, returning the new leak if one
// occurred. probability overrides the default when >= 0 (the sim engine
// supplies a Poisson-driven value while it runs).
func (d *detector) roll(probability float64) *Leak {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.leakProbability
	if probability >= 0 {
		p = probability
	}
	if d.rand() >= p {
		return nil
	}

	section := d.sections[int(d.rand()*float64(len(d.sections)))%len(d.sections)]
	severity, volume := d.classify()
	leak := &Leak{
		ID:           uuid.NewString(),
		SectionID:    section.ID,
		Severity:     severity,
		Status:       LeakActive,
		EstimatedLpm: volume,
		DetectedAt:   d.now(),
		Location:     section.Location,
	}
	d.byID[leak.ID] = leak
	if evicted, ok := d.leaks.Push(leak); ok {
		delete(d.byID, evicted.ID)
	}
	return leak
}

// classify picks a severity (60/30/10 split) and a volume estimate.
func (d *detector) classify() (string, float64) {
	switch r := d.rand(); {
	case r < 0.6:
		return LeakMinor, 5 + d.rand()*15
	case r < 0.9:
		return LeakMajor, 40 + d.rand()*60
	default:
		return LeakCritical, 150 + d.rand()*350
	}
}

// resolve marks a leak repaired.
func (d *detector) resolve(id string) (Leak, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	leak, ok := d.byID[id]
	if !ok {
		return Leak{}, ErrNotFound
	}
	if leak.Status != LeakRepaired {
		now := d.now()
		leak.Status = LeakRepaired
		leak.RepairedAt = &now
	}
	return *leak, nil
}

func (d *detector) get(id string) (Leak, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	leak, ok := d.byID[id]
	if !ok {
		return Leak{}, false
	}
	return *leak, true
}

// history returns recorded leaks, oldest first.
func (d *detector) history() []Leak {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored := d.leaks.Snapshot()
	out := make([]Leak, len(stored))
	for i, l := range stored {
		out[i] = *l
	}
	return out
}

func (d *detector) sectionByID(id string) (Section, bool) {
	for _, s := range d.sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
