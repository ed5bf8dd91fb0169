package jobs

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type statusSpy struct {
	mu     sync.Mutex
	states map[string]bool
	runs   map[string]int
	failed map[string]int
}

func (s *statusSpy) ObserveJobRun(name string, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs == nil {
		s.runs = make(map[string]int)
		s.failed = make(map[string]int)
	}
	s.runs[name]++
	if err != nil {
		s.failed[name]++
	}
}

func (s *statusSpy) SetBackgroundTaskStatus(name string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = make(map[string]bool)
	}
	s.states[name] = running
}

func (s *statusSpy) get(name string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[name]
	return v, ok
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Add("broken", "every day", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestScheduler_EmptySpecDisables(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Add("backup", "", func(context.Context) error { return nil }))
	assert.Empty(t, s.Jobs())
}

func TestScheduler_RunNow(t *testing.T) {
	spy := &statusSpy{}
	s := NewScheduler(spy)
	boom := errors.New("boom")

	assert.NoError(t, s.RunNow("ok", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))
	assert.ErrorIs(t, s.RunNow("ko", func(context.Context) error { return boom }), boom)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	assert.Equal(t, map[string]int{"ok": 1, "ko": 1}, spy.runs)
	assert.Equal(t, map[string]int{"ko": 1}, spy.failed)
}

func TestScheduler_StartStop(t *testing.T) {
	spy := &statusSpy{}
	s := NewScheduler(spy)

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	running, ok := spy.get("tick")
	require.True(t, ok)
	assert.True(t, running)

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	running, _ = spy.get("tick")
	assert.False(t, running)
}

func TestDBFile(t *testing.T) {
	assert.Equal(t, "peages.db", dbFile("peages.db"))
	assert.Equal(t, "/var/lib/peages.db", dbFile("file:/var/lib/peages.db?_pragma=foreign_keys(1)"))
	assert.Equal(t, ":memory:", dbFile(":memory:"))
}

func TestSQLiteBackup_Run(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "peages.db")
	conn, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY); INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)

	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	// stale backup older than retention
	stale := filepath.Join(backupDir, "peages.db.backup-20000101-000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	// unrelated file is never touched
	other := filepath.Join(backupDir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(other, old, old))

	b := &SQLiteBackup{DB: conn, DSN: "file:" + dbPath + "?_pragma=foreign_keys(1)", Dir: backupDir, RetentionDays: 7}
	require.NoError(t, b.Run(context.Background()))

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.NotContains(t, names, filepath.Base(stale))
	assert.Contains(t, names, "notes.txt")
	assert.Len(t, names, 2)

	// the copy is a valid database
	var copyPath string
	for _, n := range names {
		if n != "notes.txt" {
			copyPath = filepath.Join(backupDir, n)
		}
	}
	cp, err := sql.Open("sqlite", copyPath)
	require.NoError(t, err)
	defer cp.Close()
	var n int
	require.NoError(t, cp.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteBackup_Memory(t *testing.T) {
	b := &SQLiteBackup{DSN: ":memory:", Dir: t.TempDir()}
	assert.ErrorIs(t, b.Run(context.Background()), ErrMemoryDatabase)
}
