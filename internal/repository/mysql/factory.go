package mysql

import (
	"github.com/jmoiron/sqlx"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// Factory implements DatabaseFactory for MySQL / Implémente DatabaseFactory pour MySQL
// DSN must carry parseTime=true and multiStatements=true (migrations)
// Le DSN doit porter parseTime=true et multiStatements=true (migrations)
type Factory struct{}

// Dialect returns MySQL dialect / Retourne le dialecte MySQL
func (f *Factory) Dialect() db.Dialect {
	return db.Dialect{
		Type:      db.MySQL,
		BindType:  sqlx.QUESTION,
		Translate: handleError,
	}
}
