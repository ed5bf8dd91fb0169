// Package sqlstore implements every repository once over database/sql.
// Queries are written with ? placeholders and rebound for the target dialect.
// Package sqlstore implémente chaque repository une seule fois sur database/sql.
// Les requêtes utilisent des ? réécrits pour le dialecte cible.
package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// base carries the connection (DB or Tx) and dialect / Porte la connexion (DB ou Tx) et le dialecte
type base struct {
	db ports.DBTX
	d  db.Dialect
}

func (b base) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := b.db.ExecContext(ctx, b.d.Rebind(query), args...)
	return res, b.d.TranslateError(err)
}

// execAffected runs statement and fails with ErrNoRecord when nothing changed
// execAffected exécute et échoue avec ErrNoRecord si rien n'a changé
func (b base) execAffected(ctx context.Context, query string, args ...any) error {
	res, err := b.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return b.d.TranslateError(err)
	}
	if n == 0 {
		return db.ErrNoRecord
	}
	return nil
}

func (b base) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := b.db.QueryContext(ctx, b.d.Rebind(query), args...)
	return rows, b.d.TranslateError(err)
}

func (b base) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.d.Rebind(query), args...)
}

// insert runs INSERT and returns generated id / Exécute l'INSERT et retourne l'id généré
func (b base) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if b.d.ReturningID {
		var id int64
		err := b.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, b.d.TranslateError(err)
	}
	res, err := b.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return id, b.d.TranslateError(err)
}

func (b base) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := b.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, b.d.TranslateError(err)
	}
	return n, nil
}

func (b base) err(err error) error {
	return b.d.TranslateError(err)
}

// where accumulates AND conditions / Accumule des conditions AND
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// like builds case-insensitive contains pattern / Construit un motif contient insensible à la casse
func like(q string) string {
	q = strings.NewReplacer("%", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(q)))
	return "%" + q + "%"
}

// scanner is implemented by *sql.Row and *sql.Rows / Implémenté par *sql.Row et *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// collect scans all rows / Lit toutes les lignes
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
