package db

import "errors"

// Common database errors / Erreurs de base de données communes
// Each dialect package translates its driver errors into these sentinels
// Chaque package de dialecte traduit les erreurs de son driver vers ces sentinelles
var (
	ErrNoRecord            = errors.New("no matching record found")
	ErrDuplicate           = errors.New("record already exists")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
	ErrBusy                = errors.New("database is busy")
	ErrLocked              = errors.New("database is locked")
)
