package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/db"
)

// Migration20261017090000CreateSuggestions creates the suggestions table.
// position keeps the insertion order of the store.
func Migration20261017090000CreateSuggestions() db.Migration {
	return db.Migration{
		Version:     20261017090000,
		Description: "Create suggestions table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS suggestions (
					id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					skill_name TEXT NOT NULL,
					category TEXT NOT NULL,
					content TEXT NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					session_id TEXT NOT NULL DEFAULT '',
					user_id TEXT NOT NULL DEFAULT '',
					org TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					applied INTEGER NOT NULL DEFAULT 0
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create suggestions table")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS suggestions"); err != nil {
				return errors.Wrap(err, "failed to drop suggestions table")
			}
			return nil
		},
	}
}
