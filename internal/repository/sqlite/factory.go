package sqlite

import (
	"github.com/jmoiron/sqlx"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// Factory implements DatabaseFactory for SQLite / Implémente DatabaseFactory pour SQLite
// The compile-time check is in adapter.go to avoid import cycles
// La vérification à la compilation est dans adapter.go pour éviter les cycles d'imports
type Factory struct{}

// Dialect returns SQLite dialect / Retourne le dialecte SQLite
func (f *Factory) Dialect() db.Dialect {
	return db.Dialect{
		Type:      db.SQLite,
		BindType:  sqlx.QUESTION,
		Translate: handleError,
	}
}
