package incident

import (
	"database/sql"

	"github.com/plainview-io/plainview/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create incidents table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS incidents (
						id TEXT PRIMARY KEY,
						title TEXT NOT NULL,
						severity TEXT NOT NULL,
						status TEXT NOT NULL DEFAULT 'active',
						started_at DATETIME NOT NULL,
						resolved_at DATETIME,
						affected_modules TEXT NOT NULL DEFAULT '[]',
						alert_ids TEXT NOT NULL DEFAULT '[]',
						detection_ids TEXT NOT NULL DEFAULT '[]',
						root_cause TEXT,
						resolution TEXT,
						timeline TEXT NOT NULL DEFAULT '[]'
					)`,
					`CREATE INDEX IF NOT EXISTS idx_incidents_status_started ON incidents(status, started_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
