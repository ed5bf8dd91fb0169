package db

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Dialect describes SQL differences between supported databases
// Dialect décrit les différences SQL entre les bases supportées
type Dialect struct {
	Type        DatabaseType
	BindType    int  // sqlx bind type (QUESTION, DOLLAR)
	ReturningID bool // INSERT ... RETURNING id instead of LastInsertId
	Translate   func(error) error
}

// Rebind converts ? placeholders for this dialect / Convertit les ? pour ce dialecte
func (d Dialect) Rebind(query string) string {
	if d.BindType == 0 || d.BindType == sqlx.QUESTION {
		return query
	}
	return sqlx.Rebind(d.BindType, query)
}

// TranslateError maps driver errors to sentinels / Traduit les erreurs driver en sentinelles
func (d Dialect) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRecord
	}
	if d.Translate != nil {
		return d.Translate(err)
	}
	return err
}
