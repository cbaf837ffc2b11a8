package mocks

import (
	"context"
	"time"

	"github.com/acolucci/partforge/internal/domain/activity"
	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/stretchr/testify/mock"
)

// DocumentRepository is a mock for document.Repository.
type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *DocumentRepository) Get(ctx context.Context, code string) (*document.Document, error) {
	args := m.Called(ctx, code)
	if doc, ok := args.Get(0).(*document.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) Update(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *DocumentRepository) List(ctx context.Context, opts document.ListOptions) ([]document.Document, error) {
	args := m.Called(ctx, opts)
	if docs, ok := args.Get(0).([]document.Document); ok {
		return docs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) AddStateNote(ctx context.Context, note *document.StateNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *DocumentRepository) ListStateNotes(ctx context.Context, code string, limit int) ([]document.StateNote, error) {
	args := m.Called(ctx, code, limit)
	if notes, ok := args.Get(0).([]document.StateNote); ok {
		return notes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) AddMachine(ctx context.Context, mach *document.Machine) error {
	args := m.Called(ctx, mach)
	return args.Error(0)
}

func (m *DocumentRepository) ListMachines(ctx context.Context) ([]document.Machine, error) {
	args := m.Called(ctx)
	if machines, ok := args.Get(0).([]document.Machine); ok {
		return machines, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) MachineExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *DocumentRepository) AddGroup(ctx context.Context, g *document.Group) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *DocumentRepository) ListGroups(ctx context.Context, machine string) ([]document.Group, error) {
	args := m.Called(ctx, machine)
	if groups, ok := args.Get(0).([]document.Group); ok {
		return groups, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) GroupExists(ctx context.Context, machine, code string) (bool, error) {
	args := m.Called(ctx, machine, code)
	return args.Bool(0), args.Error(1)
}

// CounterRepository is a mock for document.CounterRepository.
type CounterRepository struct {
	mock.Mock
}

func (m *CounterRepository) Allocate(ctx context.Context, scope document.CounterScope, dir document.Direction, max int) (int, error) {
	args := m.Called(ctx, scope, dir, max)
	return args.Int(0), args.Error(1)
}

func (m *CounterRepository) Peek(ctx context.Context, scope document.CounterScope, dir document.Direction, max int) (int, error) {
	args := m.Called(ctx, scope, dir, max)
	return args.Int(0), args.Error(1)
}

// LockRepository is a mock for document.LockRepository.
type LockRepository struct {
	mock.Mock
}

func (m *LockRepository) Acquire(ctx context.Context, code string, owner document.Session, ttl time.Duration) (*document.Lock, error) {
	args := m.Called(ctx, code, owner, ttl)
	if lock, ok := args.Get(0).(*document.Lock); ok {
		return lock, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LockRepository) Get(ctx context.Context, code string) (*document.Lock, error) {
	args := m.Called(ctx, code)
	if lock, ok := args.Get(0).(*document.Lock); ok {
		return lock, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LockRepository) Release(ctx context.Context, code, sessionID string) error {
	args := m.Called(ctx, code, sessionID)
	return args.Error(0)
}

func (m *LockRepository) ReleaseSession(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *LockRepository) ListActive(ctx context.Context, limit int) ([]document.Lock, error) {
	args := m.Called(ctx, limit)
	if locks, ok := args.Get(0).([]document.Lock); ok {
		return locks, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if entries, ok := args.Get(0).([]activity.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// Archiver is a mock for document.Archiver.
type Archiver struct {
	mock.Mock
}

func (m *Archiver) Init(doc *document.Document) (document.Paths, error) {
	args := m.Called(doc)
	return args.Get(0).(document.Paths), args.Error(1)
}

func (m *Archiver) Release(doc *document.Document) (document.Paths, error) {
	args := m.Called(doc)
	return args.Get(0).(document.Paths), args.Error(1)
}

func (m *Archiver) StageRevision(doc *document.Document) (document.Paths, error) {
	args := m.Called(doc)
	return args.Get(0).(document.Paths), args.Error(1)
}

func (m *Archiver) ApproveRevision(doc *document.Document) (document.Paths, error) {
	args := m.Called(doc)
	return args.Get(0).(document.Paths), args.Error(1)
}

func (m *Archiver) CancelRevision(doc *document.Document) error {
	args := m.Called(doc)
	return args.Error(0)
}

func (m *Archiver) SetObsolete(doc *document.Document) (document.Paths, error) {
	args := m.Called(doc)
	return args.Get(0).(document.Paths), args.Error(1)
}

func (m *Archiver) Restore(doc *document.Document, prev document.State) (document.Paths, error) {
	args := m.Called(doc, prev)
	return args.Get(0).(document.Paths), args.Error(1)
}

func (m *Archiver) Dir(t document.Type, machine, group string, state document.State) string {
	args := m.Called(t, machine, group, state)
	return args.String(0)
}

// BackupRunner is a mock for document.BackupRunner.
type BackupRunner struct {
	mock.Mock
}

func (m *BackupRunner) Snapshot(reason string) error {
	args := m.Called(reason)
	return args.Error(0)
}
