package valve

import (
	"database/sql"

	"github.com/plainview-io/plainview/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create valve state and actuation tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS valve_state (
						id TEXT PRIMARY KEY,
						state TEXT NOT NULL,
						health TEXT NOT NULL DEFAULT 'ok',
						torque_nm REAL NOT NULL DEFAULT 50,
						cycle_count INTEGER NOT NULL DEFAULT 0,
						last_maintenance DATETIME,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS valve_actuations (
						id TEXT PRIMARY KEY,
						valve_id TEXT NOT NULL,
						action TEXT NOT NULL,
						torque_nm REAL,
						requested_at DATETIME NOT NULL,
						completed_at DATETIME,
						success INTEGER NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX IF NOT EXISTS idx_valve_actuations_valve_time ON valve_actuations(valve_id, requested_at)`,
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
