package repository

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	_ "modernc.org/sqlite"
)

// NewTestDB opens a migrated SQLite database in a temp dir / Ouvre une base SQLite migrée dans un répertoire temporaire
// A file is used instead of :memory: so every pooled connection sees the same data.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	dsn := db.SQLiteDSN("file:" + filepath.Join(t.TempDir(), "test.db"))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	migrator, err := db.NewMigrator(conn, db.SQLite, "")
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return conn
}

// NewTestAdapter returns an adapter over NewTestDB / Retourne un adapteur sur NewTestDB
func NewTestAdapter(t testing.TB) *Adapter {
	t.Helper()
	return NewAdapter(NewTestDB(t), "sqlite")
}
