package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/db"
)

// Migration20261017090001CreateSkillMetrics creates the per-skill usage counters table.
func Migration20261017090001CreateSkillMetrics() db.Migration {
	return db.Migration{
		Version:     20261017090001,
		Description: "Create skill_metrics table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS skill_metrics (
					skill_name TEXT PRIMARY KEY,
					total_calls INTEGER NOT NULL DEFAULT 0,
					successful_calls INTEGER NOT NULL DEFAULT 0,
					failed_calls INTEGER NOT NULL DEFAULT 0,
					total_exec_time_ms INTEGER NOT NULL DEFAULT 0,
					last_used TEXT
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create skill_metrics table")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS skill_metrics"); err != nil {
				return errors.Wrap(err, "failed to drop skill_metrics table")
			}
			return nil
		},
	}
}
