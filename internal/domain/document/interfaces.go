package document

import (
	"context"
	"time"

	"github.com/acolucci/partforge/internal/domain/activity"
)

// Repository provides persistence for documents and the machine/group registry.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, code string) (*Document, error)
	Update(ctx context.Context, doc *Document) error
	List(ctx context.Context, opts ListOptions) ([]Document, error)

	AddStateNote(ctx context.Context, note *StateNote) error
	ListStateNotes(ctx context.Context, code string, limit int) ([]StateNote, error)

	AddMachine(ctx context.Context, m *Machine) error
	ListMachines(ctx context.Context) ([]Machine, error)
	MachineExists(ctx context.Context, code string) (bool, error)
	AddGroup(ctx context.Context, g *Group) error
	ListGroups(ctx context.Context, machine string) ([]Group, error)
	GroupExists(ctx context.Context, machine, code string) (bool, error)
}

// ListOptions filters document listings for tree and table views.
type ListOptions struct {
	Query           string
	Machine         string
	Group           string
	Variant         string
	Type            Type
	State           State
	IncludeObsolete bool
	Limit           int
}

// CounterRepository is the durable monotonic allocator. Allocate reserves the
// next value for a scope exactly once; Peek is read-only and non-binding.
type CounterRepository interface {
	Allocate(ctx context.Context, scope CounterScope, dir Direction, max int) (int, error)
	Peek(ctx context.Context, scope CounterScope, dir Direction, max int) (int, error)
}

// LockRepository manages advisory per-document locks with a TTL.
type LockRepository interface {
	Acquire(ctx context.Context, code string, owner Session, ttl time.Duration) (*Lock, error)
	Get(ctx context.Context, code string) (*Lock, error)
	Release(ctx context.Context, code, sessionID string) error
	ReleaseSession(ctx context.Context, sessionID string) (int, error)
	ListActive(ctx context.Context, limit int) ([]Lock, error)
}

// Archiver keeps the physical file layout consistent with workflow state.
// Every method either fully places the files for the target state or leaves
// them where they were and returns an error.
type Archiver interface {
	Init(doc *Document) (Paths, error)
	Release(doc *Document) (Paths, error)
	StageRevision(doc *Document) (Paths, error)
	ApproveRevision(doc *Document) (Paths, error)
	CancelRevision(doc *Document) error
	SetObsolete(doc *Document) (Paths, error)
	Restore(doc *Document, prev State) (Paths, error)
	Dir(t Type, machine, group string, state State) string
}

// BackupRunner snapshots the durable stores. Failures are advisory.
type BackupRunner interface {
	Snapshot(reason string) error
}

// ActivityLogger receives the structured event emitted by every workflow
// transition and allocation.
type ActivityLogger interface {
	Log(ctx context.Context, entry *activity.Entry) error
}
