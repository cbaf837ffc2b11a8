package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/acolucci/partforge/internal/repository"
)

// DocumentRepository implements document.Repository for SQLite
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row. A code collision maps to
// ErrDuplicateCode: it should be impossible given exactly-once allocation,
// so hitting it means external tampering or a logic defect.
func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	query := `
		INSERT INTO documents (
			code, doc_type, mmm, gggg, vvv, seq, revision, state, obs_prev_state,
			description, model_path, drawing_path, inrev_model_path, inrev_drawing_path,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.Code,
		doc.Type,
		doc.Machine,
		doc.Group,
		doc.Variant,
		doc.Seq,
		doc.Revision,
		doc.State,
		string(doc.ObsPrev),
		doc.Description,
		doc.ModelPath,
		doc.DrawingPath,
		doc.InRevModelPath,
		doc.InRevDrawingPath,
		doc.CreatedAt,
		doc.ModifiedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateCode, doc.Code)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	r.db.MarkDirty()
	return nil
}

const documentColumns = `
	code, doc_type, mmm, gggg, vvv, seq, revision, state, obs_prev_state,
	description, model_path, drawing_path, inrev_model_path, inrev_drawing_path,
	created_at, updated_at
`

// Get retrieves a document by code
func (r *DocumentRepository) Get(ctx context.Context, code string) (*document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE code = ?`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Update rewrites the full document row. The row either commits entirely or
// not at all; a partially applied transition is never observable.
func (r *DocumentRepository) Update(ctx context.Context, doc *document.Document) error {
	query := `
		UPDATE documents
		SET revision = ?, state = ?, obs_prev_state = ?, description = ?,
		    model_path = ?, drawing_path = ?, inrev_model_path = ?, inrev_drawing_path = ?,
		    updated_at = ?
		WHERE code = ?
	`

	doc.ModifiedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		doc.Revision,
		doc.State,
		string(doc.ObsPrev),
		doc.Description,
		doc.ModelPath,
		doc.DrawingPath,
		doc.InRevModelPath,
		doc.InRevDrawingPath,
		doc.ModifiedAt,
		doc.Code,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
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

// List returns documents matching the given filters, newest first.
func (r *DocumentRepository) List(ctx context.Context, opts document.ListOptions) ([]document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`

	args := []interface{}{}
	conditions := []string{}

	if opts.Query != "" {
		conditions = append(conditions, "(code LIKE ? OR description LIKE ?)")
		pattern := "%" + opts.Query + "%"
		args = append(args, pattern, pattern)
	}
	if opts.Machine != "" {
		conditions = append(conditions, "mmm = ?")
		args = append(args, opts.Machine)
	}
	if opts.Group != "" {
		conditions = append(conditions, "gggg = ?")
		args = append(args, opts.Group)
	}
	if opts.Variant != "" {
		conditions = append(conditions, "vvv = ?")
		args = append(args, opts.Variant)
	}
	if opts.Type != "" {
		conditions = append(conditions, "doc_type = ?")
		args = append(args, opts.Type)
	}
	if opts.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, opts.State)
	}
	if !opts.IncludeObsolete && opts.State != document.StateObsolete {
		conditions = append(conditions, "state != 'OBS'")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, nil
}

// AddStateNote records a note alongside a workflow transition.
func (r *DocumentRepository) AddStateNote(ctx context.Context, note *document.StateNote) error {
	query := `
		INSERT INTO state_notes (code, event_type, from_state, to_state, note, rev_before, rev_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	result, err := r.db.ExecContext(ctx, query,
		note.Code, note.Event, note.FromState, note.ToState, note.Note,
		note.RevBefore, note.RevAfter, note.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to add state note: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		note.ID = id
	}
	r.db.MarkDirty()
	return nil
}

// ListStateNotes returns transition notes for a document, newest first.
func (r *DocumentRepository) ListStateNotes(ctx context.Context, code string, limit int) ([]document.StateNote, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
		SELECT id, code, event_type, from_state, to_state, note, rev_before, rev_after, created_at
		FROM state_notes
		WHERE code = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list state notes: %w", err)
	}
	defer rows.Close()

	var notes []document.StateNote
	for rows.Next() {
		var n document.StateNote
		if err := rows.Scan(&n.ID, &n.Code, &n.Event, &n.FromState, &n.ToState, &n.Note, &n.RevBefore, &n.RevAfter, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan state note: %w", err)
		}
		notes = append(notes, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state note rows: %w", err)
	}

	return notes, nil
}

// AddMachine registers a machine code.
func (r *DocumentRepository) AddMachine(ctx context.Context, m *document.Machine) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO machines (mmm, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(mmm) DO UPDATE SET name = excluded.name`,
		m.Code, m.Name, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add machine: %w", err)
	}
	r.db.MarkDirty()
	return nil
}

// ListMachines returns all registered machines in code order.
func (r *DocumentRepository) ListMachines(ctx context.Context) ([]document.Machine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT mmm, name, created_at FROM machines ORDER BY mmm`)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	defer rows.Close()

	var machines []document.Machine
	for rows.Next() {
		var m document.Machine
		if err := rows.Scan(&m.Code, &m.Name, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// MachineExists reports whether a machine code is registered.
func (r *DocumentRepository) MachineExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM machines WHERE mmm = ?)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check machine: %w", err)
	}
	return exists, nil
}

// AddGroup registers a group code under a machine.
func (r *DocumentRepository) AddGroup(ctx context.Context, g *document.Group) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (mmm, gggg, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(mmm, gggg) DO UPDATE SET name = excluded.name`,
		g.Machine, g.Code, g.Name, g.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to add group: %w", err)
	}
	r.db.MarkDirty()
	return nil
}

// ListGroups returns the groups registered under a machine.
func (r *DocumentRepository) ListGroups(ctx context.Context, machine string) ([]document.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mmm, gggg, name, created_at FROM groups WHERE mmm = ? ORDER BY gggg`, machine)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []document.Group
	for rows.Next() {
		var g document.Group
		if err := rows.Scan(&g.Machine, &g.Code, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GroupExists reports whether a group code is registered under a machine.
func (r *DocumentRepository) GroupExists(ctx context.Context, machine, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM groups WHERE mmm = ? AND gggg = ?)`, machine, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*document.Document, error) {
	var doc document.Document
	var obsPrev string
	err := row.Scan(
		&doc.Code,
		&doc.Type,
		&doc.Machine,
		&doc.Group,
		&doc.Variant,
		&doc.Seq,
		&doc.Revision,
		&doc.State,
		&obsPrev,
		&doc.Description,
		&doc.ModelPath,
		&doc.DrawingPath,
		&doc.InRevModelPath,
		&doc.InRevDrawingPath,
		&doc.CreatedAt,
		&doc.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ObsPrev = document.State(obsPrev)
	return &doc, nil
}
