package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/acolucci/partforge/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts one activity entry.
func (r *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	if entry.Action == "" {
		return fmt.Errorf("activity entry requires an action")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (created_at, workspace_id, session_id, actor, host, action, code, from_state, to_state, status, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp,
		entry.Workspace,
		entry.SessionID,
		entry.Actor,
		entry.Host,
		entry.Action,
		entry.Code,
		entry.FromState,
		entry.ToState,
		entry.Status,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// List returns activity entries, newest first.
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	query := `
		SELECT id, created_at, workspace_id, session_id, actor, host, action, code, from_state, to_state, status, message
		FROM activity_log
	`

	args := []interface{}{}
	conditions := []string{}
	if opts.Code != "" {
		conditions = append(conditions, "code = ?")
		args = append(args, opts.Code)
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, opts.Action)
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var e activity.Entry
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Workspace,
			&e.SessionID,
			&e.Actor,
			&e.Host,
			&e.Action,
			&e.Code,
			&e.FromState,
			&e.ToState,
			&e.Status,
			&e.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}
