package postgres

import (
	"errors"

	"github.com/lib/pq"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// handleError translates PostgreSQL errors to typed errors / Traduit les erreurs PostgreSQL en erreurs typées
func handleError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return db.ErrDuplicate
		case "23503": // foreign_key_violation
			return db.ErrForeignKeyViolation
		case "55P03": // lock_not_available
			return db.ErrLocked
		}
	}
	return err
}
