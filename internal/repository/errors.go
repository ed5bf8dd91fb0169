package repository

import "github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"

// Re-export common errors for convenience / Ré-exporte les erreurs communes
var (
	ErrNoRecord            = db.ErrNoRecord
	ErrDuplicate           = db.ErrDuplicate
	ErrForeignKeyViolation = db.ErrForeignKeyViolation
	ErrBusy                = db.ErrBusy
	ErrLocked              = db.ErrLocked
)
