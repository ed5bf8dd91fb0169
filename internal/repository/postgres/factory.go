package postgres

import (
	"github.com/jmoiron/sqlx"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// Factory implements DatabaseFactory for PostgreSQL / Implémente DatabaseFactory pour PostgreSQL
type Factory struct{}

// Dialect returns PostgreSQL dialect ($n placeholders, RETURNING id)
// Dialect retourne le dialecte PostgreSQL (paramètres $n, RETURNING id)
func (f *Factory) Dialect() db.Dialect {
	return db.Dialect{
		Type:        db.PostgreSQL,
		BindType:    sqlx.DOLLAR,
		ReturningID: true,
		Translate:   handleError,
	}
}
