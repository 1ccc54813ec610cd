// Package migrations contains the schema migrations of the sqlite
// suggestion store, versioned Rails-style (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/skillsmith/pkg/db"
)

// All returns all registered migrations. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261017090000CreateSuggestions(),
		Migration20261017090001CreateSkillMetrics(),
		Migration20261017090002AddSuggestionIndexes(),
	}
}
