package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/acolucci/partforge/internal/repository"
)

// LockRepository implements document.LockRepository for SQLite. Locks are
// cooperative: they stop two users from editing the same working copy, not
// the filesystem from being touched. A TTL bounds how long a crashed session
// can hold one.
type LockRepository struct {
	db *DB
}

// NewLockRepository creates a new LockRepository
func NewLockRepository(db *DB) *LockRepository {
	return &LockRepository{db: db}
}

// Acquire takes or refreshes the lock on a document. Re-acquiring by the
// holding session extends the TTL; any other holder fails with ErrLockHeld
// and the current holder is returned alongside the error.
func (r *LockRepository) Acquire(ctx context.Context, code string, owner document.Session, ttl time.Duration) (*document.Lock, error) {
	if code == "" || owner.ID == "" {
		return nil, fmt.Errorf("%w: lock requires code and session", repository.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}

	now := time.Now()
	expires := now.Add(ttl)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// reap expired locks first
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_locks WHERE expires_at <= ?`, now); err != nil {
		return nil, fmt.Errorf("failed to reap expired locks: %w", err)
	}

	holder, err := scanLock(tx.QueryRowContext(ctx,
		`SELECT code, owner_session, owner_user, owner_host, acquired_at, updated_at, expires_at
		 FROM document_locks WHERE code = ?`, code))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read lock: %w", err)
	}

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_locks (code, owner_session, owner_user, owner_host, acquired_at, updated_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			code, owner.ID, owner.User, owner.Host, now, now, expires,
		); err != nil {
			return nil, fmt.Errorf("failed to insert lock: %w", err)
		}
		holder = &document.Lock{Code: code, OwnerID: owner.ID, OwnerUser: owner.User, OwnerHost: owner.Host, AcquiredAt: now, UpdatedAt: now, ExpiresAt: expires}

	case holder.OwnerID == owner.ID:
		if _, err := tx.ExecContext(ctx,
			`UPDATE document_locks SET owner_user = ?, owner_host = ?, updated_at = ?, expires_at = ? WHERE code = ?`,
			owner.User, owner.Host, now, expires, code,
		); err != nil {
			return nil, fmt.Errorf("failed to refresh lock: %w", err)
		}
		holder.UpdatedAt = now
		holder.ExpiresAt = expires

	default:
		// commit so the reap above sticks
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit lock reap: %w", err)
		}
		return holder, fmt.Errorf("%w: held by %s@%s", repository.ErrLockHeld, holder.OwnerUser, holder.OwnerHost)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lock: %w", err)
	}
	r.db.MarkDirty()
	return holder, nil
}

// Get returns the active lock for a document, or ErrNotFound. Expired locks
// are treated as absent.
func (r *LockRepository) Get(ctx context.Context, code string) (*document.Lock, error) {
	lock, err := scanLock(r.db.QueryRowContext(ctx,
		`SELECT code, owner_session, owner_user, owner_host, acquired_at, updated_at, expires_at
		 FROM document_locks WHERE code = ? AND expires_at > ?`, code, time.Now()))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}
	return lock, nil
}

// Release drops the lock if held by the given session.
func (r *LockRepository) Release(ctx context.Context, code, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM document_locks WHERE code = ? AND owner_session = ?`, code, sessionID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	r.db.MarkDirty()
	return nil
}

// ReleaseSession drops every lock held by a session and returns the count.
func (r *LockRepository) ReleaseSession(ctx context.Context, sessionID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM document_locks WHERE owner_session = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to release session locks: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		r.db.MarkDirty()
	}
	return int(rowsAffected), nil
}

// ListActive returns all unexpired locks, most recently touched first.
func (r *LockRepository) ListActive(ctx context.Context, limit int) ([]document.Lock, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, owner_session, owner_user, owner_host, acquired_at, updated_at, expires_at
		 FROM document_locks
		 WHERE expires_at > ?
		 ORDER BY updated_at DESC, code ASC
		 LIMIT ?`, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var locks []document.Lock
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		locks = append(locks, *lock)
	}
	return locks, rows.Err()
}

func scanLock(row rowScanner) (*document.Lock, error) {
	var lock document.Lock
	err := row.Scan(
		&lock.Code,
		&lock.OwnerID,
		&lock.OwnerUser,
		&lock.OwnerHost,
		&lock.AcquiredAt,
		&lock.UpdatedAt,
		&lock.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &lock, nil
}
