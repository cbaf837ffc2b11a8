package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection for one workspace store.
type DB struct {
	*sql.DB

	path string

	mu    sync.Mutex
	dirty bool
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	dsn := dataSourceName
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		// Connection-scoped settings go in the DSN so every connection in
		// the database/sql pool gets them, not just the one that happens to
		// serve an Exec. _txlock=immediate takes the write lock up front so
		// two instances can never both read a counter before either writes
		// it; the generous busy timeout keeps concurrent writers queued
		// instead of failing fast on a shared filesystem.
		dsn += "?_txlock=immediate" +
			"&_pragma=busy_timeout(30000)" +
			"&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dataSourceName == ":memory:" {
		// Each pooled connection to :memory: would get its own empty
		// database; pin the pool to a single connection. Pragmas can then
		// be applied directly, there is only one connection to reach.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		// WAL is persistent in the database file, one Exec is enough.
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	return &DB{DB: db, path: dataSourceName}, nil
}

// Path returns the on-disk location of the store (":memory:" for tests).
func (db *DB) Path() string {
	return db.path
}

// MarkDirty records that the store changed since the last snapshot.
func (db *DB) MarkDirty() {
	db.mu.Lock()
	db.dirty = true
	db.mu.Unlock()
}

// ClearDirty resets the modified flag after a successful snapshot.
func (db *DB) ClearDirty() {
	db.mu.Lock()
	db.dirty = false
	db.mu.Unlock()
}

// Dirty reports whether the store changed since the last snapshot.
func (db *DB) Dirty() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.dirty
}

// BackupTo writes a consistent copy of the database file to dest. The WAL is
// checkpointed first so the main file alone is a complete snapshot.
func (db *DB) BackupTo(dest string) error {
	if db.path == ":memory:" || db.path == "" {
		return fmt.Errorf("cannot back up non-file database %q", db.path)
	}
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}
	src, err := os.Open(db.path)
	if err != nil {
		return fmt.Errorf("failed to open store for backup: %w", err)
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy store: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize backup file: %w", err)
	}
	return nil
}

// RunMigrations creates the workspace store schema.
func (db *DB) RunMigrations() error {
	migration := `
-- Machine registry
CREATE TABLE IF NOT EXISTS machines (
    mmm TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Group registry
CREATE TABLE IF NOT EXISTS groups (
    mmm TEXT NOT NULL,
    gggg TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (mmm, gggg),
    FOREIGN KEY (mmm) REFERENCES machines(mmm) ON DELETE CASCADE
);

-- Part/assembly sequence cursors. One row per scope holds both directions:
-- next_part ascends from 1, next_assy descends from the segment maximum.
CREATE TABLE IF NOT EXISTS seq_counters (
    mmm TEXT NOT NULL,
    gggg TEXT NOT NULL,
    vvv TEXT NOT NULL DEFAULT '',
    next_part INTEGER NOT NULL,
    next_assy INTEGER NOT NULL,
    PRIMARY KEY (mmm, gggg, vvv)
);

-- Machine/group version cursors, always ascending.
CREATE TABLE IF NOT EXISTS ver_counters (
    mmm TEXT NOT NULL,
    gggg TEXT NOT NULL DEFAULT '',
    doc_type TEXT NOT NULL,
    next_ver INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (mmm, gggg, doc_type)
);

-- Documents, keyed by their canonical code.
CREATE TABLE IF NOT EXISTS documents (
    code TEXT PRIMARY KEY,
    doc_type TEXT NOT NULL CHECK(doc_type IN ('PART', 'ASSY', 'MACHINE', 'GROUP')),
    mmm TEXT NOT NULL,
    gggg TEXT NOT NULL DEFAULT '',
    vvv TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL,
    revision INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'WIP' CHECK(state IN ('WIP', 'REL', 'IN_REV', 'OBS')),
    obs_prev_state TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    model_path TEXT NOT NULL DEFAULT '',
    drawing_path TEXT NOT NULL DEFAULT '',
    inrev_model_path TEXT NOT NULL DEFAULT '',
    inrev_drawing_path TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(mmm, gggg);
CREATE INDEX IF NOT EXISTS idx_documents_state ON documents(state);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);

-- Workflow transition notes
CREATE TABLE IF NOT EXISTS state_notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL,
    event_type TEXT NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    note TEXT NOT NULL,
    rev_before INTEGER NOT NULL DEFAULT 0,
    rev_after INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (code) REFERENCES documents(code)
);
CREATE INDEX IF NOT EXISTS idx_state_notes_code ON state_notes(code, created_at DESC);

-- Advisory document locks (cooperative, TTL-bounded)
CREATE TABLE IF NOT EXISTS document_locks (
    code TEXT PRIMARY KEY,
    owner_session TEXT NOT NULL,
    owner_user TEXT NOT NULL DEFAULT '',
    owner_host TEXT NOT NULL DEFAULT '',
    acquired_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_locks_expires ON document_locks(expires_at);

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    workspace_id TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL DEFAULT '',
    host TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    code TEXT NOT NULL DEFAULT '',
    from_state TEXT NOT NULL DEFAULT '',
    to_state TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'OK',
    message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_activity_time ON activity_log(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_activity_code ON activity_log(code);
CREATE INDEX IF NOT EXISTS idx_activity_action ON activity_log(action);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
