package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/acolucci/partforge/internal/repository"
)

// CounterRepository implements document.CounterRepository for SQLite.
// It is the sole write path for sequence state: every allocation commits in
// its own transaction before the value is returned, so a crash can never
// lose a reservation or issue a duplicate.
type CounterRepository struct {
	db *DB
}

// NewCounterRepository creates a new CounterRepository
func NewCounterRepository(db *DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Allocate atomically reserves the next value for a scope. Ascending scopes
// count up from 1; descending scopes count down from max. When the next value
// would leave [1, max] the scope is exhausted and the cursor does not move.
func (r *CounterRepository) Allocate(ctx context.Context, scope document.CounterScope, dir document.Direction, max int) (int, error) {
	if max < 1 {
		return 0, fmt.Errorf("%w: non-positive scope maximum %d", repository.ErrInvalidInput, max)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var allocated int
	if scope.Type.IsVersioned() {
		allocated, err = r.allocateVersion(ctx, tx, scope, dir, max)
	} else {
		allocated, err = r.allocateSequence(ctx, tx, scope, dir, max)
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocation: %w", err)
	}

	r.db.MarkDirty()
	return allocated, nil
}

// Peek returns the next value without consuming it. The result is advisory:
// a concurrent Allocate can make it stale before use.
func (r *CounterRepository) Peek(ctx context.Context, scope document.CounterScope, dir document.Direction, max int) (int, error) {
	if max < 1 {
		return 0, fmt.Errorf("%w: non-positive scope maximum %d", repository.ErrInvalidInput, max)
	}

	if scope.Type.IsVersioned() {
		if dir != document.Ascending {
			return 0, fmt.Errorf("%w: version counters only ascend", repository.ErrInvalidInput)
		}
		next := 1
		err := r.db.QueryRowContext(ctx,
			`SELECT next_ver FROM ver_counters WHERE mmm = ? AND gggg = ? AND doc_type = ?`,
			scope.Machine, versionGroupKey(scope), scope.Type,
		).Scan(&next)
		if err != nil && err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to peek version counter: %w", err)
		}
		return checkBounds(next, dir, max, scope)
	}

	nextPart, nextAssy := 1, max
	err := r.db.QueryRowContext(ctx,
		`SELECT next_part, next_assy FROM seq_counters WHERE mmm = ? AND gggg = ? AND vvv = ?`,
		scope.Machine, scope.Group, scope.Variant,
	).Scan(&nextPart, &nextAssy)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to peek sequence counter: %w", err)
	}
	if dir == document.Descending {
		return checkBounds(nextAssy, dir, max, scope)
	}
	return checkBounds(nextPart, dir, max, scope)
}

func (r *CounterRepository) allocateSequence(ctx context.Context, tx *sql.Tx, scope document.CounterScope, dir document.Direction, max int) (int, error) {
	nextPart, nextAssy := 1, max
	err := tx.QueryRowContext(ctx,
		`SELECT next_part, next_assy FROM seq_counters WHERE mmm = ? AND gggg = ? AND vvv = ?`,
		scope.Machine, scope.Group, scope.Variant,
	).Scan(&nextPart, &nextAssy)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seq_counters (mmm, gggg, vvv, next_part, next_assy) VALUES (?, ?, ?, ?, ?)`,
			scope.Machine, scope.Group, scope.Variant, 1, max,
		); err != nil {
			return 0, fmt.Errorf("failed to init sequence counter: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to read sequence counter: %w", err)
	}

	var allocated int
	if dir == document.Descending {
		allocated = nextAssy
		nextAssy--
	} else {
		allocated = nextPart
		nextPart++
	}
	if _, err := checkBounds(allocated, dir, max, scope); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE seq_counters SET next_part = ?, next_assy = ? WHERE mmm = ? AND gggg = ? AND vvv = ?`,
		nextPart, nextAssy, scope.Machine, scope.Group, scope.Variant,
	); err != nil {
		return 0, fmt.Errorf("failed to advance sequence counter: %w", err)
	}
	return allocated, nil
}

func (r *CounterRepository) allocateVersion(ctx context.Context, tx *sql.Tx, scope document.CounterScope, dir document.Direction, max int) (int, error) {
	if dir != document.Ascending {
		return 0, fmt.Errorf("%w: version counters only ascend", repository.ErrInvalidInput)
	}

	gggg := versionGroupKey(scope)
	next := 1
	err := tx.QueryRowContext(ctx,
		`SELECT next_ver FROM ver_counters WHERE mmm = ? AND gggg = ? AND doc_type = ?`,
		scope.Machine, gggg, scope.Type,
	).Scan(&next)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ver_counters (mmm, gggg, doc_type, next_ver) VALUES (?, ?, ?, ?)`,
			scope.Machine, gggg, scope.Type, 1,
		); err != nil {
			return 0, fmt.Errorf("failed to init version counter: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to read version counter: %w", err)
	}

	if _, err := checkBounds(next, dir, max, scope); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ver_counters SET next_ver = ? WHERE mmm = ? AND gggg = ? AND doc_type = ?`,
		next+1, scope.Machine, gggg, scope.Type,
	); err != nil {
		return 0, fmt.Errorf("failed to advance version counter: %w", err)
	}
	return next, nil
}

// versionGroupKey keeps machine version scopes distinct from group scopes:
// machine counters ignore the group segment entirely.
func versionGroupKey(scope document.CounterScope) string {
	if scope.Type == document.TypeMachine {
		return ""
	}
	return scope.Group
}

func checkBounds(next int, dir document.Direction, max int, scope document.CounterScope) (int, error) {
	if dir == document.Descending && next < 1 {
		return 0, fmt.Errorf("%w: %s scope %s/%s below 1", repository.ErrScopeExhausted, scope.Type, scope.Machine, scope.Group)
	}
	if dir == document.Ascending && next > max {
		return 0, fmt.Errorf("%w: %s scope %s/%s beyond %d", repository.ErrScopeExhausted, scope.Type, scope.Machine, scope.Group, max)
	}
	return next, nil
}
