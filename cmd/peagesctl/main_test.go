package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI against a throwaway sqlite file / Exécute la CLI sur une base sqlite jetable
func execute(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dsn", dsn, "--db-type", "sqlite"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "peages.db")

	out, err := execute(t, dsn, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version")
	assert.NotContains(t, out, "dirty")

	out, err = execute(t, dsn, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")
}

func TestCreateAdmin(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "peages.db")

	t.Setenv("PEAGES_ADMIN_PASSWORD", "")
	_, err := execute(t, dsn, "create-admin", "--email", "admin@peages.bf")
	assert.ErrorContains(t, err, "PEAGES_ADMIN_PASSWORD")

	t.Setenv("PEAGES_ADMIN_PASSWORD", "Secret123!")
	out, err := execute(t, dsn, "create-admin", "--email", "admin@peages.bf", "--nom", "Sawadogo")
	require.NoError(t, err)
	assert.Contains(t, out, "admin admin@peages.bf created")

	_, err = execute(t, dsn, "create-admin", "--email", "admin@peages.bf")
	assert.Error(t, err, "duplicate email")
}

func TestSeed(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "peages.db")

	out, err := execute(t, dsn, "seed")
	require.NoError(t, err)
	for _, role := range []string{"admin", "caissier", "comptable", "superviseur", "agent_commercial"} {
		assert.Contains(t, out, role)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "peages.db"), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "peagesctl version")
}

func TestPcgImportExport(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "peages.db")
	src := filepath.Join(dir, "pcg.csv")
	require.NoError(t, os.WriteFile(src, []byte("numero,libelle,parent_numero\n5,Comptes financiers,\n57,Caisse,5\n"), 0o600))

	out, err := execute(t, dsn, "pcg", "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "2 comptes importés")

	out, err = execute(t, dsn, "pcg", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "57")
	assert.Contains(t, out, "Caisse")

	xlsx := filepath.Join(dir, "pcg.xlsx")
	_, err = execute(t, dsn, "pcg", "export", "-f", "xlsx", "-o", xlsx)
	require.NoError(t, err)
	data, err := os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))

	_, err = execute(t, dsn, "pcg", "export", "-f", "pdf")
	assert.ErrorContains(t, err, "unsupported format")
}
