package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func testPart() *document.Document {
	return &document.Document{
		Code:    "QQQ_1000-0001",
		Type:    document.TypePart,
		Machine: "QQQ",
		Group:   "1000",
		State:   document.StateWIP,
	}
}

func TestManager_DirLayout(t *testing.T) {
	m := NewManager("/archive")

	require.Equal(t, filepath.Join("/archive", "QQQ", "1000", "wip"),
		m.Dir(document.TypePart, "QQQ", "1000", document.StateWIP))
	require.Equal(t, filepath.Join("/archive", "QQQ", "1000", "rel"),
		m.Dir(document.TypeAssembly, "QQQ", "1000", document.StateReleased))
	require.Equal(t, filepath.Join("/archive", "MACHINES", "QQQ", "rel"),
		m.Dir(document.TypeMachine, "QQQ", "", document.StateReleased))
	require.Equal(t, filepath.Join("/archive", "GROUPS", "QQQ", "1000", "obs"),
		m.Dir(document.TypeGroup, "QQQ", "1000", document.StateObsolete))
}

func TestManager_Init(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "QQQ", "1000", "wip", "QQQ_1000-0001.sldprt"), paths.Model)
	require.Equal(t, filepath.Join(root, "QQQ", "1000", "wip", "QQQ_1000-0001.slddrw"), paths.Drawing)

	for _, d := range []string{"wip", "rel", "inrev", "rev", "obs"} {
		info, err := os.Stat(filepath.Join(root, "QQQ", "1000", d))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestManager_Release(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-v0")
	writeFile(t, paths.Drawing, "drawing-v0")
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing

	rel, err := m.Release(doc)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "QQQ", "1000", "rel", "QQQ_1000-0001.sldprt"), rel.Model)
	require.Equal(t, "model-v0", readFile(t, rel.Model))
	require.NoFileExists(t, paths.Model)

	info, err := os.Stat(rel.Model)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm(), "released files are frozen")
}

func TestManager_Release_NoModel(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Release(testPart())
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestManager_RevisionRoundTrip(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-r0")
	doc.ModelPath = paths.Model
	rel, err := m.Release(doc)
	require.NoError(t, err)
	doc.State = document.StateReleased
	doc.ModelPath = rel.Model

	// stage: working copy appears, released original stays frozen in place
	staged, err := m.StageRevision(doc)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "QQQ", "1000", "inrev", "QQQ_1000-0001_R01__INREV.sldprt"), staged.Model)
	require.Equal(t, "model-r0", readFile(t, staged.Model))
	require.FileExists(t, rel.Model)
	doc.State = document.StateInRevision
	doc.InRevModelPath = staged.Model

	// the working copy is edited
	require.NoError(t, os.WriteFile(staged.Model, []byte("model-r1"), 0o644))

	// approve: old revision archived under its tag, working copy promoted
	newRel, err := m.ApproveRevision(doc)
	require.NoError(t, err)
	require.Equal(t, rel.Model, newRel.Model)
	require.Equal(t, "model-r1", readFile(t, newRel.Model))
	require.NoFileExists(t, staged.Model)

	archived := filepath.Join(root, "QQQ", "1000", "rev", "QQQ_1000-0001_R00.sldprt")
	require.Equal(t, "model-r0", readFile(t, archived))
}

func TestManager_CancelRevision(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-r0")
	doc.ModelPath = paths.Model
	rel, err := m.Release(doc)
	require.NoError(t, err)
	doc.State = document.StateReleased
	doc.ModelPath = rel.Model

	staged, err := m.StageRevision(doc)
	require.NoError(t, err)
	doc.InRevModelPath = staged.Model

	require.NoError(t, m.CancelRevision(doc))
	require.NoFileExists(t, staged.Model)
	require.Equal(t, "model-r0", readFile(t, rel.Model), "released revision untouched")
}

func TestManager_ObsoleteAndRestore(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-r0")
	doc.ModelPath = paths.Model
	rel, err := m.Release(doc)
	require.NoError(t, err)
	doc.State = document.StateReleased
	doc.ModelPath = rel.Model

	obs, err := m.SetObsolete(doc)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "QQQ", "1000", "obs", "QQQ_1000-0001.sldprt"), obs.Model)
	require.NoFileExists(t, rel.Model)
	doc.State = document.StateObsolete
	doc.ModelPath = obs.Model

	restored, err := m.Restore(doc, document.StateReleased)
	require.NoError(t, err)
	require.Equal(t, rel.Model, restored.Model)
	require.Equal(t, "model-r0", readFile(t, restored.Model))
	require.NoFileExists(t, obs.Model)

	info, err := os.Stat(restored.Model)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())
}

func TestManager_RestoreToWIPIsWritable(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model")
	doc.ModelPath = paths.Model

	obs, err := m.SetObsolete(doc)
	require.NoError(t, err)
	doc.State = document.StateObsolete
	doc.ModelPath = obs.Model

	restored, err := m.Restore(doc, document.StateWIP)
	require.NoError(t, err)
	info, err := os.Stat(restored.Model)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestManager_ApproveRevisionFailureRestoresLayout(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-r0")
	writeFile(t, paths.Drawing, "drawing-r0")
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing
	rel, err := m.Release(doc)
	require.NoError(t, err)
	doc.State = document.StateReleased
	doc.ModelPath = rel.Model
	doc.DrawingPath = rel.Drawing

	staged, err := m.StageRevision(doc)
	require.NoError(t, err)
	doc.State = document.StateInRevision
	doc.InRevModelPath = staged.Model
	doc.InRevDrawingPath = staged.Drawing

	// the last move has nothing to work with, so the whole approval fails
	require.NoError(t, os.Remove(staged.Drawing))

	_, err = m.ApproveRevision(doc)
	require.ErrorIs(t, err, ErrArchiveIO)

	// released files back in place and still frozen, nothing left in rev/
	require.Equal(t, "model-r0", readFile(t, rel.Model))
	require.Equal(t, "drawing-r0", readFile(t, rel.Drawing))
	info, err := os.Stat(rel.Model)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())
	require.NoFileExists(t, filepath.Join(root, "QQQ", "1000", "rev", "QQQ_1000-0001_R00.sldprt"))

	// working copy returned to the in-revision area, writable
	require.FileExists(t, staged.Model)
	info, err = os.Stat(staged.Model)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// with the layout intact, a retry after remediation succeeds
	writeFile(t, staged.Drawing, "drawing-r1")
	_, err = m.ApproveRevision(doc)
	require.NoError(t, err)
}

func TestManager_ObsoleteFailureKeepsReleasedLayout(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-r0")
	writeFile(t, paths.Drawing, "drawing-r0")
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing
	rel, err := m.Release(doc)
	require.NoError(t, err)
	doc.State = document.StateReleased
	doc.ModelPath = rel.Model
	doc.DrawingPath = rel.Drawing

	require.NoError(t, os.Remove(rel.Drawing))

	_, err = m.SetObsolete(doc)
	require.ErrorIs(t, err, ErrArchiveIO)

	// the model did not stay stranded in obs/; it is back in rel/, frozen
	require.Equal(t, "model-r0", readFile(t, rel.Model))
	info, err := os.Stat(rel.Model)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())
	require.NoFileExists(t, filepath.Join(root, "QQQ", "1000", "obs", "QQQ_1000-0001.sldprt"))
}

func TestManager_ReleaseRefusesDestinationCollision(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()

	paths, err := m.Init(doc)
	require.NoError(t, err)
	writeFile(t, paths.Model, "model-new")
	doc.ModelPath = paths.Model

	// something already sits at the released destination
	stray := filepath.Join(root, "QQQ", "1000", "rel", "QQQ_1000-0001.sldprt")
	writeFile(t, stray, "model-stray")

	_, err = m.Release(doc)
	require.ErrorIs(t, err, ErrArchiveIO)
	require.Equal(t, "model-new", readFile(t, paths.Model), "working file untouched")
	require.Equal(t, "model-stray", readFile(t, stray), "existing file not overwritten")
}

func TestManager_MoveMissingSourceFailsFast(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	doc := testPart()
	doc.ModelPath = filepath.Join(root, "QQQ", "1000", "wip", "gone.sldprt")

	_, err := m.Release(doc)
	require.ErrorIs(t, err, ErrArchiveIO)
}
