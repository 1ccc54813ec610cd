package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/db"
)

// Migration20261017090002AddSuggestionIndexes adds indexes for pending lookups.
func Migration20261017090002AddSuggestionIndexes() db.Migration {
	return db.Migration{
		Version:     20261017090002,
		Description: "Add suggestion lookup indexes",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_suggestions_position ON suggestions(position)",
				"CREATE INDEX IF NOT EXISTS idx_suggestions_skill_applied ON suggestions(skill_name, applied)",
			}
			for _, idx := range indexes {
				if _, err := tx.Exec(idx); err != nil {
					return errors.Wrapf(err, "failed to create index: %s", idx)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, idx := range []string{"idx_suggestions_skill_applied", "idx_suggestions_position"} {
				if _, err := tx.Exec("DROP INDEX IF EXISTS " + idx); err != nil {
					return errors.Wrapf(err, "failed to drop index %s", idx)
				}
			}
			return nil
		},
	}
}
