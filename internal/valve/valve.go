// Package valve manages the valve inventory: simulated sensor readings,
// threshold-based health evaluation, and asynchronous actuation with a
// persisted history.
package valve

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Valve statuses.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Valve health grades.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

// Evaluation thresholds.
const (
	temperatureWarnC    = 60
	temperatureCritC    = 75
	pressureWarnMPa     = 2.8
	pressureCritMPa     = 3.0
	nominalTorqueNm     = 50
	torqueVarianceNm    = 5
	maintenanceInterval = 180 * 24 * time.Hour
)

// Valve sentinel errors.
var (
	ErrNotFound = errors.New("valve: not found")
	ErrBusy     = errors.New("valve: actuation already in progress")
)

// Valve is one inventory entry with its latest readings.
type Valve struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	State           string    `json:"state"`  // open | closed
	Health          string    `json:"health"` // ok | degraded | critical
	TemperatureC    float64   `json:"temperatureC"`
	PressureMPa     float64   `json:"pressureMPa"`
	TorqueNm        float64   `json:"torqueNm"`
	CycleCount      int       `json:"cycleCount"`
	LastMaintenance time.Time `json:"lastMaintenance"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Actuation is one completed or in-flight open/close operation.
type Actuation struct {
	ID          string     `json:"id"`
	ValveID     string     `json:"valveId"`
	Action      string     `json:"action"` // open | close
	TorqueNm    float64    `json:"torqueNm"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Success     bool       `json:"success"`
}

// defaultInventory seeds the three field valves.
func defaultInventory(now time.Time) []*Valve {
	return []*Valve{
		{
			ID: "v-101", Name: "Wellhead master", State: StateOpen, Health: HealthOK,
			TemperatureC: 48, PressureMPa: 2.5, TorqueNm: nominalTorqueNm,
			LastMaintenance: now.Add(-30 * 24 * time.Hour), UpdatedAt: now,
		},
		{
			ID: "v-102", Name: "Gathering line isolation", State: StateOpen, Health: HealthOK,
			TemperatureC: 45, PressureMPa: 2.4, TorqueNm: nominalTorqueNm,
			LastMaintenance: now.Add(-90 * 24 * time.Hour), UpdatedAt: now,
		},
		{
			ID: "v-103", Name: "Terminal delivery choke", State: StateClosed, Health: HealthOK,
			TemperatureC: 42, PressureMPa: 2.2, TorqueNm: nominalTorqueNm,
			LastMaintenance: now.Add(-200 * 24 * time.Hour), UpdatedAt: now,
		},
	}
}

// inventory owns the valve set. Reads refresh simulated sensor drift
// before evaluating health.
type inventory struct {
	mu     sync.Mutex
	valves map[string]*Valve
	order  []string
	rand   func() float64
	now    func() time.Time
	drift  bool
}

func newInventory() *inventory {
	inv := &inventory{
		valves: make(map[string]*Valve),
		rand:   rand.Float64,
		now:    func() time.Time { return time.Now().UTC() },
		drift:  true,
	}
	for _, v := range defaultInventory(inv.now()) {
		inv.valves[v.ID] = v
		inv.order = append(inv.order, v.ID)
	}
	return inv
}

// healthChange reports a valve whose grade moved during evaluation.
type healthChange struct {
	Valve    Valve
	Previous string
}

// refresh applies sensor drift and re-evaluates every valve, returning
// the health transitions that occurred.
func (inv *inventory) refresh() []healthChange {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	var changes []healthChange
	now := inv.now()
	for _, id := range inv.order {
		v := inv.valves[id]
		if inv.drift {
			v.TemperatureC += (inv.rand() - 0.48) * 2
			v.PressureMPa += (inv.rand() - 0.5) * 0.05
			if v.TemperatureC < 20 {
				v.TemperatureC = 20
			}
			if v.PressureMPa < 1.5 {
				v.PressureMPa = 1.5
			}
		}
		previous := v.Health
		v.Health = evaluate(v, now)
		v.UpdatedAt = now
		if v.Health != previous {
			changes = append(changes, healthChange{Valve: *v, Previous: previous})
		}
	}
	return changes
}

// evaluate grades a valve against the fixed thresholds.
func evaluate(v *Valve, now time.Time) string {
	if v.TemperatureC > temperatureCritC || v.PressureMPa > pressureCritMPa {
		return HealthCritical
	}
	torqueOff := v.TorqueNm - nominalTorqueNm
	if torqueOff < 0 {
		torqueOff = -torqueOff
	}
	if v.TemperatureC > temperatureWarnC ||
		v.PressureMPa > pressureWarnMPa ||
		torqueOff > torqueVarianceNm ||
		now.Sub(v.LastMaintenance) > maintenanceInterval {
		return HealthDegraded
	}
	return HealthOK
}

// maintenanceOverdue reports whether a valve is past its service window.
func maintenanceOverdue(v Valve, now time.Time) bool {
	return now.Sub(v.LastMaintenance) > maintenanceInterval
}

func (inv *inventory) get(id string) (Valve, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	v, ok := inv.valves[id]
	if !ok {
		return Valve{}, ErrNotFound
	}
	return *v, nil
}

func (inv *inventory) list() []Valve {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Valve, 0, len(inv.order))
	for _, id := range inv.order {
		out = append(out, *inv.valves[id])
	}
	return out
}

// applyActuation commits a completed actuation's effect on the valve.
func (inv *inventory) applyActuation(id, action string, torque float64) (Valve, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	v, ok := inv.valves[id]
	if !ok {
		return Valve{}, ErrNotFound
	}
	if action == "open" {
		v.State = StateOpen
	} else {
		v.State = StateClosed
	}
	v.TorqueNm = torque
	v.CycleCount++
	v.UpdatedAt = inv.now()
	return *v, nil
}

// restore overwrites a valve's persisted fields at load time.
func (inv *inventory) restore(stored Valve) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	v, ok := inv.valves[stored.ID]
	if !ok {
		return
	}
	v.State = stored.State
	v.Health = stored.Health
	v.TorqueNm = stored.TorqueNm
	v.CycleCount = stored.CycleCount
	if !stored.LastMaintenance.IsZero() {
		v.LastMaintenance = stored.LastMaintenance
	}
}
