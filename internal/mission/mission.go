// Package mission implements the playback state machine for recorded
// and scenario missions: draft -> active -> {paused, completed}, with
// speed control and scenario branching.
package mission

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mission types.
const (
	TypeReplay   = "replay"
	TypeScenario = "scenario"
)

// Mission statuses. completed is terminal.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Playback speed bounds. Out-of-range requests are clamped, not rejected.
const (
	MinSpeed = 0.1
	MaxSpeed = 10
)

// Mission sentinel errors.
var (
	ErrNotFound          = errors.New("mission: not found")
	ErrInvalidTransition = errors.New("mission: invalid state transition")
)

// Step is one timeline entry of a mission, offset in seconds from
// playback start.
type Step struct {
	Offset float64        `json:"offset"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Mission is one playback unit.
type Mission struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`   // replay | scenario
	Status        string     `json:"status"` // draft | active | paused | completed
	Timeline      []Step     `json:"timeline"`
	PlaybackSpeed float64    `json:"playbackSpeed"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// CreateSpec is the input for a new mission. Speed zero defaults to 1.
type CreateSpec struct {
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	Timeline []Step  `json:"timeline"`
	Speed    float64 `json:"speed"`
}

// BranchOverrides optionally replaces fields on a branched mission.
type BranchOverrides struct {
	Title string  `json:"title"`
	Speed float64 `json:"speed"`
}

// Manager owns the mission set and the single process-wide active
// pointer. Starting a second mission replaces the pointer without
// stopping the first; the first stays active in storage but is no
// longer the tracked current mission.
type Manager struct {
	mu       sync.Mutex
	missions map[string]*Mission
	order    []string
	activeID string
	now      func() time.Time
}

// NewManager creates an empty mission manager.
func NewManager() *Manager {
	return &Manager{
		missions: make(map[string]*Mission),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new draft mission.
func (m *Manager) Create(spec CreateSpec) Mission {
	if spec.Type != TypeScenario {
		spec.Type = TypeReplay
	}
	speed := spec.Speed
	if speed == 0 {
		speed = 1
	}

	mission := &Mission{
		ID:            uuid.NewString(),
		Title:         spec.Title,
		Type:          spec.Type,
		Status:        StatusDraft,
		Timeline:      append([]Step(nil), spec.Timeline...),
		PlaybackSpeed: clampSpeed(speed),
		CreatedAt:     m.now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions[mission.ID] = mission
	m.order = append(m.order, mission.ID)
	return *mission
}

// Get returns a mission by ID.
func (m *Manager) Get(id string) (Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mission, ok := m.missions[id]
	if !ok {
		return Mission{}, ErrNotFound
	}
	return copyMission(mission), nil
}

// List returns all missions in creation order.
func (m *Manager) List() []Mission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mission, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, copyMission(m.missions[id]))
	}
	return out
}

// Active returns the tracked current mission, if any.
func (m *Manager) Active() (Mission, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return Mission{}, false
	}
	mission, ok := m.missions[m.activeID]
	if !ok {
		return Mission{}, false
	}
	return copyMission(mission), true
}

// Start moves a draft mission to active, stamps StartedAt, and takes
// the active pointer.
func (m *Manager) Start(id string) (Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[id]
	if !ok {
		return Mission{}, ErrNotFound
	}
	if mission.Status != StatusDraft {
		return Mission{}, ErrInvalidTransition
	}
	now := m.now()
	mission.Status = StatusActive
	mission.StartedAt = &now
	m.activeID = id
	return copyMission(mission), nil
}

// Pause suspends an active mission.
func (m *Manager) Pause(id string) (Mission, error) {
	return m.transition(id, StatusActive, StatusPaused)
}

// Resume reactivates a paused mission. Resuming a mission that was
// never started is an invalid transition.
func (m *Manager) Resume(id string) (Mission, error) {
	return m.transition(id, StatusPaused, StatusActive)
}

// Stop force-completes a mission from any non-completed state, stamps
// CompletedAt, and clears the active pointer when it points here.
func (m *Manager) Stop(id string) (Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[id]
	if !ok {
		return Mission{}, ErrNotFound
	}
	if mission.Status == StatusCompleted {
		return Mission{}, ErrInvalidTransition
	}
	now := m.now()
	mission.Status = StatusCompleted
	mission.CompletedAt = &now
	if m.activeID == id {
		m.activeID = ""
	}
	return copyMission(mission), nil
}

// SetSpeed updates playback speed, clamped to [0.1, 10].
func (m *Manager) SetSpeed(id string, speed float64) (Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[id]
	if !ok {
		return Mission{}, ErrNotFound
	}
	mission.PlaybackSpeed = clampSpeed(speed)
	return copyMission(mission), nil
}

// Branch copies the source mission's timeline into a new scenario-typed
// draft.
func (m *Manager) Branch(id string, overrides BranchOverrides) (Mission, error) {
	m.mu.Lock()
	src, ok := m.missions[id]
	if !ok {
		m.mu.Unlock()
		return Mission{}, ErrNotFound
	}
	title := overrides.Title
	if title == "" {
		title = src.Title + " (branch)"
	}
	speed := overrides.Speed
	if speed == 0 {
		speed = src.PlaybackSpeed
	}
	timeline := append([]Step(nil), src.Timeline...)
	m.mu.Unlock()

	return m.Create(CreateSpec{
		Title:    title,
		Type:     TypeScenario,
		Timeline: timeline,
		Speed:    speed,
	}), nil
}

func (m *Manager) transition(id, from, to string) (Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mission, ok := m.missions[id]
	if !ok {
		return Mission{}, ErrNotFound
	}
	if mission.Status != from {
		return Mission{}, ErrInvalidTransition
	}
	mission.Status = to
	return copyMission(mission), nil
}

func clampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// copyMission returns a caller-safe copy with its own timeline slice.
func copyMission(src *Mission) Mission {
	out := *src
	out.Timeline = append([]Step(nil), src.Timeline...)
	return out
}
