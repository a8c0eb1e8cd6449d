package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()

	assert.FileExists(t, filepath.Join(dir, ".marketplace", "marketplace.db"))

	var fk int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var busy int
	require.NoError(t, conn.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/x.db", 250*time.Millisecond)
	assert.Contains(t, got, "file:/tmp/x.db?")
	assert.Contains(t, got, "busy_timeout%28250%29")
	assert.Contains(t, got, "foreign_keys%281%29")
}

func TestPathDefaultsToCurrentDir(t *testing.T) {
	assert.Equal(t, filepath.Join(".marketplace", "marketplace.db"), Path(""))
}
