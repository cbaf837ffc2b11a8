package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acolucci/partforge/internal/codegen"
	"github.com/acolucci/partforge/internal/domain/activity"
	"github.com/acolucci/partforge/internal/repository"
	"github.com/acolucci/partforge/internal/schema"
)

// DefaultLockTTL bounds how long a crashed session can hold a document lock.
const DefaultLockTTL = 20 * time.Minute

// Service handles document lifecycle business logic: code allocation,
// workflow transitions and the file placement that accompanies them.
// Transitions are two-phase: the archive moves files first, and the new
// state is committed only if placement succeeded.
type Service struct {
	docs       Repository
	counters   CounterRepository
	locks      LockRepository
	archive    Archiver
	backups    BackupRunner
	activities ActivityLogger
	schema     schema.Schema
	composer   codegen.Composer
	session    Session
	lockTTL    time.Duration
	logger     *slog.Logger
}

// NewService creates a new document service.
func NewService(
	docs Repository,
	counters CounterRepository,
	locks LockRepository,
	archive Archiver,
	backups BackupRunner,
	activities ActivityLogger,
	sch schema.Schema,
	composer codegen.Composer,
	session Session,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:       docs,
		counters:   counters,
		locks:      locks,
		archive:    archive,
		backups:    backups,
		activities: activities,
		schema:     sch,
		composer:   composer,
		session:    session,
		lockTTL:    DefaultLockTTL,
		logger:     logger,
	}
}

// CreateRequest describes a document creation request.
type CreateRequest struct {
	Type        Type
	Machine     string
	Group       string
	Variant     string
	Description string
}

// Create allocates the next code for the requested scope and persists a new
// WIP document. The counter value is consumed even if a later step fails;
// gaps are acceptable, reuse is not.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Document, error) {
	scope, err := s.normalizeScope(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkRegistry(ctx, scope); err != nil {
		return nil, err
	}

	dir, max := s.allocationRule(scope.Type)
	seq, err := s.counters.Allocate(ctx, scope, dir, max)
	if err != nil {
		return nil, fmt.Errorf("allocating %s number: %w", scope.Type, err)
	}

	now := time.Now()
	doc := &Document{
		Code:        s.compose(scope, seq),
		Type:        scope.Type,
		Machine:     scope.Machine,
		Group:       scope.Group,
		Variant:     scope.Variant,
		Seq:         seq,
		Revision:    0,
		State:       StateWIP,
		Description: req.Description,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, fmt.Errorf("code %s already allocated: %w", doc.Code, err)
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}

	if s.archive != nil {
		paths, err := s.archive.Init(doc)
		if err != nil {
			return nil, fmt.Errorf("preparing archive directory for %s: %w", doc.Code, err)
		}
		s.logger.Debug("archive directory ready", "code", doc.Code, "model", paths.Model)
	}

	s.logActivity(ctx, activity.ActionCreate, doc.Code, "", string(doc.State), req.Description)
	s.logger.Info("document created", "code", doc.Code, "type", doc.Type)
	return doc, nil
}

// PreviewNext returns the code the next Create for this scope would yield
// without consuming the counter. Non-binding: another session may take it.
func (s *Service) PreviewNext(ctx context.Context, req CreateRequest) (string, error) {
	scope, err := s.normalizeScope(req)
	if err != nil {
		return "", err
	}
	dir, max := s.allocationRule(scope.Type)
	seq, err := s.counters.Peek(ctx, scope, dir, max)
	if err != nil {
		return "", fmt.Errorf("peeking %s number: %w", scope.Type, err)
	}
	return s.compose(scope, seq), nil
}

// Get returns a document by code.
func (s *Service) Get(ctx context.Context, code string) (*Document, error) {
	doc, err := s.docs.Get(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// List returns documents matching the filter options.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Document, error) {
	return s.docs.List(ctx, opts)
}

// ListStateNotes returns the transition history of a document, newest first.
func (s *Service) ListStateNotes(ctx context.Context, code string, limit int) ([]StateNote, error) {
	return s.docs.ListStateNotes(ctx, code, limit)
}

// Release moves a WIP document to Released. Files move into the released
// area and become read-only before the state is committed.
func (s *Service) Release(ctx context.Context, code, note string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	next, err := transition(ctx, doc, EventRelease)
	if err != nil {
		return nil, err
	}

	paths, err := s.archive.Release(doc)
	if err != nil {
		return nil, fmt.Errorf("placing released files for %s: %w", code, err)
	}

	prev := doc.State
	doc.State = next
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing
	if err := s.commit(ctx, doc, EventRelease, prev, note, doc.Revision, doc.Revision); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.ActionRelease, code, string(prev), string(next), note)
	s.snapshot("release " + code)
	s.logger.Info("document released", "code", code, "revision", doc.Revision)
	return doc, nil
}

// StartRevision opens a revision on a Released document. A working copy is
// staged in the in-revision area; the released files stay in place and
// remain the authoritative revision until approval.
func (s *Service) StartRevision(ctx context.Context, code, note string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	next, err := transition(ctx, doc, EventStartRevision)
	if err != nil {
		return nil, err
	}

	paths, err := s.archive.StageRevision(doc)
	if err != nil {
		return nil, fmt.Errorf("staging revision copy for %s: %w", code, err)
	}

	prev := doc.State
	doc.State = next
	doc.InRevModelPath = paths.Model
	doc.InRevDrawingPath = paths.Drawing
	if err := s.commit(ctx, doc, EventStartRevision, prev, note, doc.Revision, doc.Revision); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.ActionRevise, code, string(prev), string(next), note)
	s.logger.Info("revision started", "code", code, "next_revision", doc.Revision+1)
	return doc, nil
}

// ApproveRevision promotes the working copy to the new released revision.
// The previous released files are archived under their revision tag, and
// the revision number increments exactly here.
func (s *Service) ApproveRevision(ctx context.Context, code, note string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	next, err := transition(ctx, doc, EventApprove)
	if err != nil {
		return nil, err
	}

	paths, err := s.archive.ApproveRevision(doc)
	if err != nil {
		return nil, fmt.Errorf("approving revision of %s: %w", code, err)
	}

	prev := doc.State
	before := doc.Revision
	doc.State = next
	doc.Revision = before + 1
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing
	doc.InRevModelPath = ""
	doc.InRevDrawingPath = ""
	if err := s.commit(ctx, doc, EventApprove, prev, note, before, doc.Revision); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.ActionApprove, code, string(prev), string(next), note)
	s.snapshot("approve " + code)
	s.logger.Info("revision approved", "code", code, "revision", doc.Revision)
	return doc, nil
}

// CancelRevision discards the working copy and returns the document to
// Released. The revision number does not change.
func (s *Service) CancelRevision(ctx context.Context, code, note string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	next, err := transition(ctx, doc, EventCancel)
	if err != nil {
		return nil, err
	}

	if err := s.archive.CancelRevision(doc); err != nil {
		return nil, fmt.Errorf("discarding revision copy of %s: %w", code, err)
	}

	prev := doc.State
	doc.State = next
	doc.InRevModelPath = ""
	doc.InRevDrawingPath = ""
	if err := s.commit(ctx, doc, EventCancel, prev, note, doc.Revision, doc.Revision); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.ActionCancel, code, string(prev), string(next), note)
	s.logger.Info("revision cancelled", "code", code)
	return doc, nil
}

// SetObsolete retires a document. The prior state is recorded so a restore
// can return to it. Obsoleting a document under revision first discards the
// working copy; the recorded prior state is then Released.
func (s *Service) SetObsolete(ctx context.Context, code, note string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	next, err := transition(ctx, doc, EventObsolete)
	if err != nil {
		return nil, err
	}

	prev := doc.State
	if doc.State == StateInRevision {
		if err := s.archive.CancelRevision(doc); err != nil {
			return nil, fmt.Errorf("discarding revision copy of %s: %w", code, err)
		}
		doc.State = StateReleased
		doc.InRevModelPath = ""
		doc.InRevDrawingPath = ""
	}

	paths, err := s.archive.SetObsolete(doc)
	if err != nil {
		return nil, fmt.Errorf("retiring files of %s: %w", code, err)
	}

	doc.ObsPrev = doc.State
	doc.State = next
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing
	if err := s.commit(ctx, doc, EventObsolete, prev, note, doc.Revision, doc.Revision); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.ActionObsolete, code, string(prev), string(next), note)
	s.snapshot("obsolete " + code)
	s.logger.Info("document obsoleted", "code", code, "prior_state", doc.ObsPrev)
	return doc, nil
}

// Restore returns an obsolete document to its recorded prior state. With no
// recorded state, a document with a released file goes to Released, the rest
// to WIP.
func (s *Service) Restore(ctx context.Context, code, note string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	next, err := transition(ctx, doc, EventRestore)
	if err != nil {
		return nil, err
	}

	paths, err := s.archive.Restore(doc, next)
	if err != nil {
		return nil, fmt.Errorf("restoring files of %s: %w", code, err)
	}

	prev := doc.State
	doc.State = next
	doc.ObsPrev = ""
	doc.ModelPath = paths.Model
	doc.DrawingPath = paths.Drawing
	if err := s.commit(ctx, doc, EventRestore, prev, note, doc.Revision, doc.Revision); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.ActionRestore, code, string(prev), string(next), note)
	s.snapshot("restore " + code)
	s.logger.Info("document restored", "code", code, "state", doc.State)
	return doc, nil
}

// RegisterLinkedFile attaches a CAD file to a document. The file must
// already sit in the directory the document's state dictates; files are
// registered in place, never copied in. Drawing files are recognized by
// their .slddrw extension, everything else registers as the model.
func (s *Service) RegisterLinkedFile(ctx context.Context, code, path string) (*Document, error) {
	doc, err := s.getForTransition(ctx, code)
	if err != nil {
		return nil, err
	}
	if doc.State != StateWIP && doc.State != StateInRevision {
		return nil, fmt.Errorf("%w: files can only be registered in state %s or %s, %s is %s",
			ErrInvalidTransition, StateWIP, StateInRevision, code, doc.State)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, path)
	}
	want := s.archive.Dir(doc.Type, doc.Machine, doc.Group, doc.State)
	if filepath.Dir(abs) != filepath.Clean(want) {
		return nil, fmt.Errorf("%w: %s is not in %s", ErrFileOutsideArchive, abs, want)
	}
	// a registered path feeds later transitions, which would only discover
	// a phantom file when the placement fails
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, abs, err)
	}

	drawing := strings.EqualFold(filepath.Ext(abs), ".slddrw")
	switch {
	case doc.State == StateInRevision && drawing:
		doc.InRevDrawingPath = abs
	case doc.State == StateInRevision:
		doc.InRevModelPath = abs
	case drawing:
		doc.DrawingPath = abs
	default:
		doc.ModelPath = abs
	}
	doc.ModifiedAt = time.Now()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("updating document: %w", err)
	}

	s.logActivity(ctx, activity.ActionRegisterFile, code, string(doc.State), string(doc.State), abs)
	return doc, nil
}

// Lock acquires the advisory edit lock on a document for this session.
func (s *Service) Lock(ctx context.Context, code string) (*Lock, error) {
	if _, err := s.Get(ctx, code); err != nil {
		return nil, err
	}
	lock, err := s.locks.Acquire(ctx, code, s.session, s.lockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) && lock != nil {
			return lock, fmt.Errorf("%w: %s held by %s@%s", ErrLockConflict, code, lock.OwnerUser, lock.OwnerHost)
		}
		return nil, fmt.Errorf("acquiring lock on %s: %w", code, err)
	}
	s.logActivity(ctx, activity.ActionLock, code, "", "", "")
	return lock, nil
}

// Unlock releases this session's lock on a document.
func (s *Service) Unlock(ctx context.Context, code string) error {
	if err := s.locks.Release(ctx, code, s.session.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("releasing lock on %s: %w", code, err)
	}
	s.logActivity(ctx, activity.ActionUnlock, code, "", "", "")
	return nil
}

// UnlockAll releases every lock held by this session, typically at shutdown.
func (s *Service) UnlockAll(ctx context.Context) (int, error) {
	return s.locks.ReleaseSession(ctx, s.session.ID)
}

// ActiveLocks returns all unexpired locks in the workspace.
func (s *Service) ActiveLocks(ctx context.Context, limit int) ([]Lock, error) {
	return s.locks.ListActive(ctx, limit)
}

// RegisterMachine adds a machine code to the registry.
func (s *Service) RegisterMachine(ctx context.Context, code, name string) (*Machine, error) {
	norm, err := s.schema.Validate(schema.SegMachine, code)
	if err != nil {
		return nil, err
	}
	m := &Machine{Code: norm, Name: name, CreatedAt: time.Now()}
	if err := s.docs.AddMachine(ctx, m); err != nil {
		return nil, fmt.Errorf("registering machine %s: %w", norm, err)
	}
	s.logger.Info("machine registered", "machine", norm)
	return m, nil
}

// RegisterGroup adds a group code under a registered machine.
func (s *Service) RegisterGroup(ctx context.Context, machine, code, name string) (*Group, error) {
	mmm, err := s.schema.Validate(schema.SegMachine, machine)
	if err != nil {
		return nil, err
	}
	gggg, err := s.schema.Validate(schema.SegGroup, code)
	if err != nil {
		return nil, err
	}
	ok, err := s.docs.MachineExists(ctx, mmm)
	if err != nil {
		return nil, fmt.Errorf("checking machine %s: %w", mmm, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMachine, mmm)
	}
	g := &Group{Machine: mmm, Code: gggg, Name: name, CreatedAt: time.Now()}
	if err := s.docs.AddGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("registering group %s/%s: %w", mmm, gggg, err)
	}
	s.logger.Info("group registered", "machine", mmm, "group", gggg)
	return g, nil
}

// Machines lists the registered machine codes.
func (s *Service) Machines(ctx context.Context) ([]Machine, error) {
	return s.docs.ListMachines(ctx)
}

// Groups lists the registered groups under a machine.
func (s *Service) Groups(ctx context.Context, machine string) ([]Group, error) {
	return s.docs.ListGroups(ctx, machine)
}

// getForTransition loads the document and verifies no other session holds
// its edit lock.
func (s *Service) getForTransition(ctx context.Context, code string) (*Document, error) {
	doc, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.guardLock(ctx, code); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) guardLock(ctx context.Context, code string) error {
	lock, err := s.locks.Get(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking lock on %s: %w", code, err)
	}
	if lock.OwnerID != s.session.ID {
		return fmt.Errorf("%w: %s held by %s@%s", ErrLockConflict, code, lock.OwnerUser, lock.OwnerHost)
	}
	return nil
}

// commit persists the transitioned document and its state note.
func (s *Service) commit(ctx context.Context, doc *Document, event string, from State, note string, revBefore, revAfter int) error {
	doc.ModifiedAt = time.Now()
	if err := s.docs.Update(ctx, doc); err != nil {
		return fmt.Errorf("committing %s of %s: %w", event, doc.Code, err)
	}
	sn := &StateNote{
		Code:      doc.Code,
		Event:     event,
		FromState: from,
		ToState:   doc.State,
		Note:      note,
		RevBefore: revBefore,
		RevAfter:  revAfter,
	}
	if err := s.docs.AddStateNote(ctx, sn); err != nil {
		s.logger.Warn("state note write failed", "code", doc.Code, "event", event, "error", err)
	}
	return nil
}

// normalizeScope validates the request segments against the schema and
// returns the canonical counter scope.
func (s *Service) normalizeScope(req CreateRequest) (CounterScope, error) {
	switch req.Type {
	case TypePart, TypeAssembly, TypeMachine, TypeGroup:
	default:
		return CounterScope{}, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, req.Type)
	}

	machine, err := s.schema.Validate(schema.SegMachine, req.Machine)
	if err != nil {
		return CounterScope{}, err
	}
	scope := CounterScope{Type: req.Type, Machine: machine}

	if req.Type != TypeMachine {
		scope.Group, err = s.schema.Validate(schema.SegGroup, req.Group)
		if err != nil {
			return CounterScope{}, err
		}
	}
	if req.Variant != "" {
		if req.Type.IsVersioned() {
			return CounterScope{}, fmt.Errorf("%w: %s documents have no variant", ErrInvalidInput, req.Type)
		}
		scope.Variant, err = s.schema.Validate(schema.SegVariant, req.Variant)
		if err != nil {
			return CounterScope{}, err
		}
	}
	return scope, nil
}

// checkRegistry verifies the machine and group of a scope are registered.
func (s *Service) checkRegistry(ctx context.Context, scope CounterScope) error {
	ok, err := s.docs.MachineExists(ctx, scope.Machine)
	if err != nil {
		return fmt.Errorf("checking machine %s: %w", scope.Machine, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMachine, scope.Machine)
	}
	if scope.Type == TypeMachine {
		return nil
	}
	ok, err = s.docs.GroupExists(ctx, scope.Machine, scope.Group)
	if err != nil {
		return fmt.Errorf("checking group %s/%s: %w", scope.Machine, scope.Group, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownGroup, scope.Machine, scope.Group)
	}
	return nil
}

// allocationRule returns the counter direction and upper bound for a type.
// Assemblies descend from the top of the sequence range so the two kinds
// never collide inside a shared scope.
func (s *Service) allocationRule(t Type) (Direction, int) {
	if t.IsVersioned() {
		return Ascending, s.schema.MaxValue(schema.SegVersion)
	}
	if t == TypeAssembly {
		return Descending, s.schema.MaxValue(schema.SegSequence)
	}
	return Ascending, s.schema.MaxValue(schema.SegSequence)
}

func (s *Service) compose(scope CounterScope, seq int) string {
	switch scope.Type {
	case TypeMachine:
		return s.composer.MachineCode(scope.Machine, seq, s.schema.Width(schema.SegVersion))
	case TypeGroup:
		return s.composer.GroupCode(scope.Machine, scope.Group, seq, s.schema.Width(schema.SegVersion))
	default:
		return s.composer.PartCode(scope.Machine, scope.Group, scope.Variant, seq, s.schema.Width(schema.SegSequence))
	}
}

func (s *Service) snapshot(reason string) {
	if s.backups == nil {
		return
	}
	if err := s.backups.Snapshot(reason); err != nil {
		s.logger.Warn("backup snapshot failed", "reason", reason, "error", err)
	}
}

func (s *Service) logActivity(ctx context.Context, action, code, from, to, message string) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, &activity.Entry{
		Actor:     s.session.User,
		Host:      s.session.Host,
		Action:    action,
		Code:      code,
		FromState: from,
		ToState:   to,
		Message:   message,
	})
}
