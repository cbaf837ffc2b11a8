package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/acolucci/partforge/internal/sqlite"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, retention int) (*Manager, *sqlite.DB, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.New(filepath.Join(dir, "pdm.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("archive_root: /archive\n"), 0o644))

	backups := filepath.Join(dir, "backups")
	meta := filepath.Join(dir, "meta")
	return NewManager(db, configPath, backups, meta, retention, nil), db, backups
}

func archiveNames(t *testing.T, m *Manager) []string {
	t.Helper()
	archives, err := m.List()
	require.NoError(t, err)
	return archives
}

func TestSnapshot_WritesArchive(t *testing.T) {
	m, db, _ := newTestManager(t, 0)
	db.MarkDirty()

	require.NoError(t, m.Snapshot("release QQQ_1000-0001"))

	archives := archiveNames(t, m)
	require.Len(t, archives, 1)

	r, err := zip.OpenReader(archives[0])
	require.NoError(t, err)
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	require.True(t, names["pdm.db"], "archive should contain the store")
	require.True(t, names["config.yaml"], "archive should contain the config")
	require.True(t, names["manifest.json"], "archive should contain the manifest")
}

func TestSnapshot_CleanStoreSkips(t *testing.T) {
	m, db, _ := newTestManager(t, 0)
	db.MarkDirty()
	require.NoError(t, m.Snapshot("first"))
	require.False(t, db.Dirty(), "snapshot clears the dirty flag")

	require.NoError(t, m.Snapshot("second"))
	require.Len(t, archiveNames(t, m), 1, "clean store takes no snapshot")

	db.MarkDirty()
	require.NoError(t, m.Snapshot("third"))
	require.Len(t, archiveNames(t, m), 2)
}

func TestSnapshot_PrunesBeyondRetention(t *testing.T) {
	m, db, _ := newTestManager(t, 2)

	for i := 0; i < 4; i++ {
		db.MarkDirty()
		require.NoError(t, m.Snapshot("event"))
	}
	archives := archiveNames(t, m)
	require.Len(t, archives, 2)
}

func TestMaybeDaily(t *testing.T) {
	m, db, _ := newTestManager(t, 0)
	db.MarkDirty()

	require.NoError(t, m.MaybeDaily())
	require.Len(t, archiveNames(t, m), 1)

	// same day: marker suppresses a second snapshot even with a dirty store
	db.MarkDirty()
	require.NoError(t, m.MaybeDaily())
	require.Len(t, archiveNames(t, m), 1)
}
