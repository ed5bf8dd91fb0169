package db

import "strings"

// DatabaseType names a supported engine / Nomme un moteur supporté
type DatabaseType string

// Engines accepted by database.type
const (
	SQLite     DatabaseType = "sqlite"
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgres"
)

// aliases accepted in configuration besides the canonical names
var aliases = map[string]DatabaseType{
	"":           SQLite,
	"sqlite3":    SQLite,
	"postgresql": PostgreSQL,
	"pg":         PostgreSQL,
	"mariadb":    MySQL,
}

// ParseType normalizes database.type, sqlite when empty; unknown values are kept
// so Open and NewMigrator can report them.
func ParseType(s string) DatabaseType {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := aliases[s]; ok {
		return t
	}
	return DatabaseType(s)
}
