package valve

import (
	"context"
	"database/sql"
	"fmt"
)

// valveStore persists valve state snapshots and actuation history.
type valveStore struct {
	db *sql.DB
}

func newValveStore(db *sql.DB) *valveStore {
	return &valveStore{db: db}
}

// LoadState returns the persisted per-valve state, if any.
func (s *valveStore) LoadState(ctx context.Context) ([]Valve, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, health, torque_nm, cycle_count, last_maintenance, updated_at
		FROM valve_state`)
	if err != nil {
		return nil, fmt.Errorf("load valve state: %w", err)
	}
	defer rows.Close()

	var out []Valve
	for rows.Next() {
		var v Valve
		var lastMaintenance sql.NullTime
		if err := rows.Scan(&v.ID, &v.State, &v.Health, &v.TorqueNm,
			&v.CycleCount, &lastMaintenance, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan valve state: %w", err)
		}
		if lastMaintenance.Valid {
			v.LastMaintenance = lastMaintenance.Time.UTC()
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveState writes one valve's current state.
func (s *valveStore) SaveState(ctx context.Context, v Valve) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO valve_state (id, state, health, torque_nm, cycle_count, last_maintenance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			health = excluded.health,
			torque_nm = excluded.torque_nm,
			cycle_count = excluded.cycle_count,
			last_maintenance = excluded.last_maintenance,
			updated_at = excluded.updated_at`,
		v.ID, v.State, v.Health, v.TorqueNm, v.CycleCount,
		v.LastMaintenance.UTC(), v.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save valve state: %w", err)
	}
	return nil
}

// InsertActuation records a requested actuation.
func (s *valveStore) InsertActuation(ctx context.Context, a Actuation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO valve_actuations (id, valve_id, action, torque_nm, requested_at, success)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.ValveID, a.Action, a.TorqueNm, a.RequestedAt.UTC(), boolToInt(a.Success),
	)
	if err != nil {
		return fmt.Errorf("insert actuation: %w", err)
	}
	return nil
}

// CompleteActuation stamps an actuation's completion.
func (s *valveStore) CompleteActuation(ctx context.Context, a Actuation) error {
	var completedAt any
	if a.CompletedAt != nil {
		completedAt = a.CompletedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE valve_actuations
		SET torque_nm = ?, completed_at = ?, success = ?
		WHERE id = ?`,
		a.TorqueNm, completedAt, boolToInt(a.Success), a.ID,
	)
	if err != nil {
		return fmt.Errorf("complete actuation: %w", err)
	}
	return nil
}

// ListActuations returns the most recent actuations for a valve, newest
// first. An empty valveID lists across the inventory.
func (s *valveStore) ListActuations(ctx context.Context, valveID string, limit int) ([]Actuation, error) {
	query := `
		SELECT id, valve_id, action, torque_nm, requested_at, completed_at, success
		FROM valve_actuations`
	args := []any{}
	if valveID != "" {
		query += ` WHERE valve_id = ?`
		args = append(args, valveID)
	}
	query += ` ORDER BY requested_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actuations: %w", err)
	}
	defer rows.Close()

	var out []Actuation
	for rows.Next() {
		var a Actuation
		var torque sql.NullFloat64
		var completedAt sql.NullTime
		var success int
		if err := rows.Scan(&a.ID, &a.ValveID, &a.Action, &torque,
			&a.RequestedAt, &completedAt, &success); err != nil {
			return nil, fmt.Errorf("scan actuation: %w", err)
		}
		a.TorqueNm = torque.Float64
		if completedAt.Valid {
			t := completedAt.Time.UTC()
			a.CompletedAt = &t
		}
		a.Success = success != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
