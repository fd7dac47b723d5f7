package incident

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// incidentStore persists incident snapshots. List-valued fields and the
// timeline are stored as JSON columns; the correlator only needs "load
// current snapshot" and "persist this mutated snapshot".
type incidentStore struct {
	db *sql.DB
}

func newIncidentStore(db *sql.DB) *incidentStore {
	return &incidentStore{db: db}
}

// Load returns all persisted incidents, oldest first.
func (s *incidentStore) Load(ctx context.Context) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, severity, status, started_at, resolved_at,
		       affected_modules, alert_ids, detection_ids,
		       root_cause, resolution, timeline
		FROM incidents ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var (
			inc                          Incident
			resolvedAt                   sql.NullTime
			rootCause, resolution        sql.NullString
			modulesJSON, alertsJSON      string
			detectionsJSON, timelineJSON string
		)
		if err := rows.Scan(
			&inc.ID, &inc.Title, &inc.Severity, &inc.Status,
			&inc.StartedAt, &resolvedAt,
			&modulesJSON, &alertsJSON, &detectionsJSON,
			&rootCause, &resolution, &timelineJSON,
		); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time.UTC()
			inc.ResolvedAt = &t
		}
		inc.RootCause = rootCause.String
		inc.Resolution = resolution.String
		inc.StartedAt = inc.StartedAt.UTC()
		if err := json.Unmarshal([]byte(modulesJSON), &inc.AffectedModules); err != nil {
			return nil, fmt.Errorf("decode affected modules: %w", err)
		}
		if err := json.Unmarshal([]byte(alertsJSON), &inc.AlertIDs); err != nil {
			return nil, fmt.Errorf("decode alert ids: %w", err)
		}
		if err := json.Unmarshal([]byte(detectionsJSON), &inc.DetectionIDs); err != nil {
			return nil, fmt.Errorf("decode detection ids: %w", err)
		}
		if err := json.Unmarshal([]byte(timelineJSON), &inc.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// Upsert writes one incident snapshot.
func (s *incidentStore) Upsert(ctx context.Context, inc Incident) error {
	modulesJSON, err := json.Marshal(emptyIfNil(inc.AffectedModules))
	if err != nil {
		return fmt.Errorf("encode affected modules: %w", err)
	}
	alertsJSON, err := json.Marshal(emptyIfNil(inc.AlertIDs))
	if err != nil {
		return fmt.Errorf("encode alert ids: %w", err)
	}
	detectionsJSON, err := json.Marshal(emptyIfNil(inc.DetectionIDs))
	if err != nil {
		return fmt.Errorf("encode detection ids: %w", err)
	}
	timeline := inc.Timeline
	if timeline == nil {
		timeline = []TimelineEvent{}
	}
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}

	var resolvedAt any
	if inc.ResolvedAt != nil {
		resolvedAt = inc.ResolvedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents (
			id, title, severity, status, started_at, resolved_at,
			affected_modules, alert_ids, detection_ids,
			root_cause, resolution, timeline
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			severity = excluded.severity,
			status = excluded.status,
			resolved_at = excluded.resolved_at,
			affected_modules = excluded.affected_modules,
			alert_ids = excluded.alert_ids,
			detection_ids = excluded.detection_ids,
			root_cause = excluded.root_cause,
			resolution = excluded.resolution,
			timeline = excluded.timeline`,
		inc.ID, inc.Title, inc.Severity, inc.Status,
		inc.StartedAt.UTC(), resolvedAt,
		string(modulesJSON), string(alertsJSON), string(detectionsJSON),
		nullIfEmpty(inc.RootCause), nullIfEmpty(inc.Resolution), string(timelineJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert incident: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
