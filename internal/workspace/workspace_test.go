package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndCurrent(t *testing.T) {
	m := NewManager(t.TempDir())

	ws, err := m.Create("production")
	require.NoError(t, err)
	require.Len(t, ws.ID, 8)
	require.Equal(t, "production", ws.Name)
	require.DirExists(t, m.Dir(ws.ID))
	require.DirExists(t, m.BackupsDir(ws.ID))
	require.DirExists(t, m.MetaDir(ws.ID))

	// the first workspace becomes current
	cur, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, ws.ID, cur.ID)
}

func TestManager_CurrentWithoutWorkspaces(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Current()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManager_DuplicateName(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Create("test")
	require.NoError(t, err)
	_, err = m.Create("test")
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestManager_Switch(t *testing.T) {
	m := NewManager(t.TempDir())
	a, err := m.Create("a")
	require.NoError(t, err)
	b, err := m.Create("b")
	require.NoError(t, err)

	cur, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, a.ID, cur.ID)

	require.NoError(t, m.SwitchTo(b.ID))
	cur, err = m.Current()
	require.NoError(t, err)
	require.Equal(t, b.ID, cur.ID)

	require.ErrorIs(t, m.SwitchTo("deadbeef"), ErrNotFound)
}

func TestManager_Copy(t *testing.T) {
	m := NewManager(t.TempDir())
	src, err := m.Create("src")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.DBPath(src.ID), []byte("store"), 0o644))
	require.NoError(t, os.WriteFile(m.ConfigPath(src.ID), []byte("cfg"), 0o644))

	dup, err := m.Copy(src.ID, "copy")
	require.NoError(t, err)
	require.NotEqual(t, src.ID, dup.ID)

	b, err := os.ReadFile(m.DBPath(dup.ID))
	require.NoError(t, err)
	require.Equal(t, "store", string(b))

	// backups are not carried over
	entries, err := os.ReadDir(m.BackupsDir(dup.ID))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestManager_Delete(t *testing.T) {
	m := NewManager(t.TempDir())
	a, err := m.Create("a")
	require.NoError(t, err)
	b, err := m.Create("b")
	require.NoError(t, err)

	require.ErrorIs(t, m.Delete(a.ID), ErrCurrent)

	require.NoError(t, m.SwitchTo(b.ID))
	require.NoError(t, m.Delete(a.ID))
	require.NoDirExists(t, m.Dir(a.ID))
	_, err = m.Get(a.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManager_IndexSurvivesReload(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	ws, err := m.Create("persistent")
	require.NoError(t, err)

	m2 := NewManager(root)
	got, err := m2.Get(ws.ID)
	require.NoError(t, err)
	require.Equal(t, "persistent", got.Name)

	require.FileExists(t, filepath.Join(root, "index.json"))
}
