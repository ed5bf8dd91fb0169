package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// handleError translates MySQL errors to typed errors / Traduit les erreurs MySQL en erreurs typées
func handleError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // ER_DUP_ENTRY
			return db.ErrDuplicate
		case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
			return db.ErrForeignKeyViolation
		case 1205: // ER_LOCK_WAIT_TIMEOUT
			return db.ErrLocked
		}
	}
	return err
}
