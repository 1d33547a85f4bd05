package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	m := NewMigrator(nil)

	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "initial schema", first.Description)
	assert.Contains(t, first.UpSQL, "CREATE TABLE IF NOT EXISTS repositories")
	assert.Contains(t, first.DownSQL, "DROP TABLE IF EXISTS repositories")
}

func TestMigrator_UpDown(t *testing.T) {
	st, err := New(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)

	defer func() { _ = st.Close() }()

	m := NewMigrator(st.db)

	version, err := m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	applied, err := m.AppliedMigrations()
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "initial schema", applied[0].Description)

	pending, err := m.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, m.MigrateDown())

	version, err = m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	require.NoError(t, m.MigrateUp())

	version, err = m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// re-running is a no-op
	assert.NoError(t, m.MigrateUp())
}
