package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrMemoryDatabase is returned when there is no file to back up / Retournée quand il n'y a pas de fichier à sauvegarder
var ErrMemoryDatabase = errors.New("cannot backup in-memory database")

// SQLiteBackup copies the database with VACUUM INTO and prunes old copies
// SQLiteBackup copie la base avec VACUUM INTO et élague les anciennes copies
type SQLiteBackup struct {
	DB            *sql.DB
	DSN           string
	Dir           string
	RetentionDays int
	now           func() time.Time
}

// Run creates one backup then removes expired ones / Crée une sauvegarde puis supprime les expirées
func (b *SQLiteBackup) Run(ctx context.Context) error {
	path, err := b.backup(ctx)
	if err != nil {
		return err
	}
	slog.Info("database backup created", "path", path)

	deleted, err := b.prune()
	if err != nil {
		return fmt.Errorf("backup cleanup failed: %w", err)
	}
	if deleted > 0 {
		slog.Info("old backups removed", "count", deleted)
	}
	return nil
}

func (b *SQLiteBackup) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// dbFile extracts file name from DSN / Extrait le fichier du DSN
func dbFile(dsn string) string {
	if idx := strings.Index(dsn, "?"); idx >= 0 {
		dsn = dsn[:idx]
	}
	return strings.TrimPrefix(dsn, "file:")
}

func (b *SQLiteBackup) backup(ctx context.Context) (string, error) {
	name := dbFile(b.DSN)
	if name == "" || name == ":memory:" {
		return "", ErrMemoryDatabase
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	filename := fmt.Sprintf("%s.backup-%s.db", filepath.Base(name), b.clock().Format("20060102-150405"))
	path := filepath.Join(b.Dir, filename)

	// VACUUM INTO takes no bind parameter for its target
	if _, err := b.DB.ExecContext(ctx, "VACUUM INTO '"+strings.ReplaceAll(path, "'", "''")+"'"); err != nil {
		return "", fmt.Errorf("backup execution failed: %w", err)
	}
	return path, nil
}

func (b *SQLiteBackup) prune() (int, error) {
	if b.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := b.clock().AddDate(0, 0, -b.RetentionDays)

	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), ".backup-") || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("failed to stat backup", "file", entry.Name(), "err", err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(b.Dir, entry.Name())); err != nil {
				slog.Warn("failed to delete old backup", "file", entry.Name(), "err", err)
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}
