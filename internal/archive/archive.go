// Package archive keeps the physical CAD file layout consistent with
// document workflow state. The layout under the archive root is:
//
//	MMM/GGGG/wip     working files, writable
//	MMM/GGGG/rel     current released revision, read-only
//	MMM/GGGG/inrev   working copies of revisions in progress
//	MMM/GGGG/rev     superseded released revisions, tagged _Rnn
//	MMM/GGGG/obs     retired files
//	MACHINES/MMM/... machine layout documents, same state split
//	GROUPS/MMM/GGGG/...
//
// The archive typically lives on a network share, where moves can fail
// transiently while another client holds a file open. Every placement
// retries with exponential backoff before giving up.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/acolucci/partforge/internal/codegen"
	"github.com/acolucci/partforge/internal/domain/document"
)

var (
	// ErrArchiveIO indicates a file placement that failed after retries.
	ErrArchiveIO = errors.New("archive file operation failed")
	// ErrMissingFile indicates a placement that requires a registered file
	// the document does not have.
	ErrMissingFile = errors.New("document has no registered model file")
)

// State directory names under each scope directory.
const (
	dirWIP   = "wip"
	dirRel   = "rel"
	dirInRev = "inrev"
	dirRev   = "rev"
	dirObs   = "obs"

	dirMachines = "MACHINES"
	dirGroups   = "GROUPS"
)

const (
	filePerm     = 0o644
	readOnlyPerm = 0o444
)

// Manager places files in the archive tree. It implements document.Archiver.
type Manager struct {
	root       string
	maxRetries uint64
}

// NewManager creates an archive manager rooted at the given directory.
func NewManager(root string) *Manager {
	return &Manager{root: root, maxRetries: 4}
}

// Root returns the archive root directory.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the directory where a document's files live in the given state.
func (m *Manager) Dir(t document.Type, machine, group string, state document.State) string {
	return filepath.Join(m.scopeDir(t, machine, group), stateDir(state))
}

func (m *Manager) scopeDir(t document.Type, machine, group string) string {
	switch t {
	case document.TypeMachine:
		return filepath.Join(m.root, dirMachines, machine)
	case document.TypeGroup:
		return filepath.Join(m.root, dirGroups, machine, group)
	default:
		return filepath.Join(m.root, machine, group)
	}
}

func stateDir(state document.State) string {
	switch state {
	case document.StateReleased:
		return dirRel
	case document.StateInRevision:
		return dirInRev
	case document.StateObsolete:
		return dirObs
	default:
		return dirWIP
	}
}

// ModelExt returns the CAD model extension for a document type.
func ModelExt(t document.Type) string {
	if t == document.TypePart {
		return ".sldprt"
	}
	return ".sldasm"
}

// DrawingExt is the CAD drawing extension, shared by all document types.
const DrawingExt = ".slddrw"

// Init creates the scope's state directories and returns the canonical
// paths where the new document's working files belong.
func (m *Manager) Init(doc *document.Document) (document.Paths, error) {
	scope := m.scopeDir(doc.Type, doc.Machine, doc.Group)
	for _, d := range []string{dirWIP, dirRel, dirInRev, dirRev, dirObs} {
		if err := os.MkdirAll(filepath.Join(scope, d), 0o755); err != nil {
			return document.Paths{}, fmt.Errorf("%w: creating %s: %v", ErrArchiveIO, filepath.Join(scope, d), err)
		}
	}
	wip := filepath.Join(scope, dirWIP)
	return document.Paths{
		Model:   filepath.Join(wip, doc.Code+ModelExt(doc.Type)),
		Drawing: filepath.Join(wip, doc.Code+DrawingExt),
	}, nil
}

// moveStep is one file relocation within a transition. undoPerm is the mode
// the file gets back when a later step fails and the move is rolled back.
type moveStep struct {
	src, dst string
	perm     os.FileMode
	undoPerm os.FileMode
}

// moveAll performs the steps in order. When one fails, the completed steps
// are undone in reverse so a failed transition leaves every file under the
// directory its unchanged state implies, and the transition stays retryable.
func (m *Manager) moveAll(steps []moveStep) error {
	for i, st := range steps {
		if err := m.move(st.src, st.dst, st.perm); err != nil {
			for j := i - 1; j >= 0; j-- {
				done := steps[j]
				if undoErr := m.move(done.dst, done.src, done.undoPerm); undoErr != nil {
					return fmt.Errorf("%w (and undo of %s failed: %v)", err, done.dst, undoErr)
				}
			}
			return err
		}
	}
	return nil
}

// Release moves the registered working files into the released area and
// freezes them. The drawing is optional; the model is not.
func (m *Manager) Release(doc *document.Document) (document.Paths, error) {
	if doc.ModelPath == "" {
		return document.Paths{}, fmt.Errorf("%w: %s", ErrMissingFile, doc.Code)
	}
	rel := m.Dir(doc.Type, doc.Machine, doc.Group, document.StateReleased)
	paths := document.Paths{Model: filepath.Join(rel, doc.Code+ModelExt(doc.Type))}
	steps := []moveStep{{doc.ModelPath, paths.Model, readOnlyPerm, filePerm}}
	if doc.DrawingPath != "" {
		paths.Drawing = filepath.Join(rel, doc.Code+DrawingExt)
		steps = append(steps, moveStep{doc.DrawingPath, paths.Drawing, readOnlyPerm, filePerm})
	}
	if err := m.moveAll(steps); err != nil {
		return document.Paths{}, err
	}
	return paths, nil
}

// StageRevision copies the released files into the in-revision area under
// their working-copy names. The released originals stay frozen in place.
func (m *Manager) StageRevision(doc *document.Document) (document.Paths, error) {
	if doc.ModelPath == "" {
		return document.Paths{}, fmt.Errorf("%w: %s", ErrMissingFile, doc.Code)
	}
	inrev := m.Dir(doc.Type, doc.Machine, doc.Group, document.StateInRevision)
	if err := os.MkdirAll(inrev, 0o755); err != nil {
		return document.Paths{}, fmt.Errorf("%w: creating %s: %v", ErrArchiveIO, inrev, err)
	}
	tag := codegen.InRevTag(doc.Code, doc.Revision+1)

	paths := document.Paths{Model: filepath.Join(inrev, tag+ModelExt(doc.Type))}
	if err := m.copy(doc.ModelPath, paths.Model, filePerm); err != nil {
		return document.Paths{}, err
	}
	if doc.DrawingPath != "" {
		paths.Drawing = filepath.Join(inrev, tag+DrawingExt)
		if err := m.copy(doc.DrawingPath, paths.Drawing, filePerm); err != nil {
			m.remove(paths.Model)
			return document.Paths{}, err
		}
	}
	return paths, nil
}

// ApproveRevision archives the outgoing released files under their revision
// tag and promotes the working copies to the released area.
func (m *Manager) ApproveRevision(doc *document.Document) (document.Paths, error) {
	if doc.InRevModelPath == "" {
		return document.Paths{}, fmt.Errorf("%w: %s has no revision working copy", ErrMissingFile, doc.Code)
	}
	rel := m.Dir(doc.Type, doc.Machine, doc.Group, document.StateReleased)
	rev := filepath.Join(m.scopeDir(doc.Type, doc.Machine, doc.Group), dirRev)
	tag := codegen.RevTag(doc.Code, doc.Revision)

	// retire the outgoing revision first, then promote the working copies
	var steps []moveStep
	if doc.ModelPath != "" {
		steps = append(steps, moveStep{doc.ModelPath, filepath.Join(rev, tag+ModelExt(doc.Type)), readOnlyPerm, readOnlyPerm})
	}
	if doc.DrawingPath != "" {
		steps = append(steps, moveStep{doc.DrawingPath, filepath.Join(rev, tag+DrawingExt), readOnlyPerm, readOnlyPerm})
	}
	paths := document.Paths{Model: filepath.Join(rel, doc.Code+ModelExt(doc.Type))}
	steps = append(steps, moveStep{doc.InRevModelPath, paths.Model, readOnlyPerm, filePerm})
	if doc.InRevDrawingPath != "" {
		paths.Drawing = filepath.Join(rel, doc.Code+DrawingExt)
		steps = append(steps, moveStep{doc.InRevDrawingPath, paths.Drawing, readOnlyPerm, filePerm})
	}
	if err := m.moveAll(steps); err != nil {
		return document.Paths{}, err
	}
	return paths, nil
}

// CancelRevision discards the working copies of a revision in progress.
func (m *Manager) CancelRevision(doc *document.Document) error {
	for _, p := range []string{doc.InRevModelPath, doc.InRevDrawingPath} {
		if p == "" {
			continue
		}
		if err := m.remove(p); err != nil {
			return err
		}
	}
	return nil
}

// SetObsolete moves a document's files into the retired area. They stay
// read-only; obsolete does not mean deleted.
func (m *Manager) SetObsolete(doc *document.Document) (document.Paths, error) {
	obs := m.Dir(doc.Type, doc.Machine, doc.Group, document.StateObsolete)
	undoPerm := os.FileMode(readOnlyPerm)
	if doc.State == document.StateWIP {
		undoPerm = filePerm
	}
	var steps []moveStep
	paths := document.Paths{}
	if doc.ModelPath != "" {
		paths.Model = filepath.Join(obs, doc.Code+ModelExt(doc.Type))
		steps = append(steps, moveStep{doc.ModelPath, paths.Model, readOnlyPerm, undoPerm})
	}
	if doc.DrawingPath != "" {
		paths.Drawing = filepath.Join(obs, doc.Code+DrawingExt)
		steps = append(steps, moveStep{doc.DrawingPath, paths.Drawing, readOnlyPerm, undoPerm})
	}
	if err := m.moveAll(steps); err != nil {
		return document.Paths{}, err
	}
	return paths, nil
}

// Restore moves retired files back into the directory the target state
// dictates. Files restored to WIP become writable again.
func (m *Manager) Restore(doc *document.Document, target document.State) (document.Paths, error) {
	dest := m.Dir(doc.Type, doc.Machine, doc.Group, target)
	perm := os.FileMode(readOnlyPerm)
	if target == document.StateWIP {
		perm = filePerm
	}
	var steps []moveStep
	paths := document.Paths{}
	if doc.ModelPath != "" {
		paths.Model = filepath.Join(dest, doc.Code+ModelExt(doc.Type))
		steps = append(steps, moveStep{doc.ModelPath, paths.Model, perm, readOnlyPerm})
	}
	if doc.DrawingPath != "" {
		paths.Drawing = filepath.Join(dest, doc.Code+DrawingExt)
		steps = append(steps, moveStep{doc.DrawingPath, paths.Drawing, perm, readOnlyPerm})
	}
	if err := m.moveAll(steps); err != nil {
		return document.Paths{}, err
	}
	return paths, nil
}

// move relocates a file, retrying transient failures, and sets the final
// permissions. Falls back to copy+delete when rename fails across devices.
func (m *Manager) move(src, dst string, perm os.FileMode) error {
	op := func() error {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		// never overwrite: a file already at the destination means the
		// store and the archive disagree, and clobbering it loses data
		if _, err := os.Stat(dst); err == nil {
			return backoff.Permanent(fmt.Errorf("destination %s already exists", dst))
		}
		// frozen files are read-only; make the source movable first
		if err := os.Chmod(src, filePerm); err != nil {
			if os.IsNotExist(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			if isCrossDevice(err) {
				if err := copyFile(src, dst); err != nil {
					return err
				}
				return os.Remove(src)
			}
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, m.newBackOff()); err != nil {
		return fmt.Errorf("%w: move %s to %s: %v", ErrArchiveIO, src, dst, err)
	}
	if err := os.Chmod(dst, perm); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrArchiveIO, dst, err)
	}
	return nil
}

func (m *Manager) copy(src, dst string, perm os.FileMode) error {
	op := func() error {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return copyFile(src, dst)
	}
	if err := backoff.Retry(op, m.newBackOff()); err != nil {
		return fmt.Errorf("%w: copy %s to %s: %v", ErrArchiveIO, src, dst, err)
	}
	if err := os.Chmod(dst, perm); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrArchiveIO, dst, err)
	}
	return nil
}

func (m *Manager) remove(path string) error {
	op := func() error {
		if err := os.Chmod(path, filePerm); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, m.newBackOff()); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrArchiveIO, path, err)
	}
	return nil
}

func (m *Manager) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, m.maxRetries)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && linkErr.Err.Error() == "invalid cross-device link"
}
