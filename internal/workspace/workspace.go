// Package workspace manages named workspaces under a common root. Each
// workspace is a directory holding its own store, config, backups and
// metadata, so test and production data never share a database file.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the workspace id is not in the index.
	ErrNotFound = errors.New("workspace not found")
	// ErrNameTaken indicates a workspace with that name already exists.
	ErrNameTaken = errors.New("workspace name already in use")
	// ErrCurrent indicates an operation illegal on the active workspace.
	ErrCurrent = errors.New("workspace is currently active")
)

const (
	indexFile  = "index.json"
	dbFile     = "pdm.db"
	configFile = "config.yaml"
	backupsDir = "backups"
	metaDir    = "meta"
)

// Workspace is one entry in the index.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type index struct {
	Current    string      `json:"current"`
	Workspaces []Workspace `json:"workspaces"`
}

// Manager maintains the workspace index and directory layout.
type Manager struct {
	root string
	mu   sync.Mutex
}

// NewManager creates a workspace manager rooted at the given directory.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Dir returns a workspace's directory.
func (m *Manager) Dir(id string) string { return filepath.Join(m.root, id) }

// DBPath returns a workspace's store file.
func (m *Manager) DBPath(id string) string { return filepath.Join(m.root, id, dbFile) }

// ConfigPath returns a workspace's config file.
func (m *Manager) ConfigPath(id string) string { return filepath.Join(m.root, id, configFile) }

// BackupsDir returns a workspace's backup directory.
func (m *Manager) BackupsDir(id string) string { return filepath.Join(m.root, id, backupsDir) }

// MetaDir returns a workspace's metadata directory.
func (m *Manager) MetaDir(id string) string { return filepath.Join(m.root, id, metaDir) }

// List returns all workspaces, oldest first.
func (m *Manager) List() ([]Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.load()
	if err != nil {
		return nil, err
	}
	out := make([]Workspace, len(idx.Workspaces))
	copy(out, idx.Workspaces)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Create adds a new empty workspace. The first workspace created becomes
// the current one.
func (m *Manager) Create(name string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.load()
	if err != nil {
		return nil, err
	}
	for _, ws := range idx.Workspaces {
		if ws.Name == name {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
	}

	ws := Workspace{ID: uuid.NewString()[:8], Name: name, CreatedAt: time.Now()}
	for _, d := range []string{m.Dir(ws.ID), m.BackupsDir(ws.ID), m.MetaDir(ws.ID)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace directory: %w", err)
		}
	}

	idx.Workspaces = append(idx.Workspaces, ws)
	if idx.Current == "" {
		idx.Current = ws.ID
	}
	if err := m.save(idx); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Get returns a workspace by id.
func (m *Manager) Get(id string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.load()
	if err != nil {
		return nil, err
	}
	return idx.find(id)
}

// Current returns the active workspace, or ErrNotFound when none exists.
func (m *Manager) Current() (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.load()
	if err != nil {
		return nil, err
	}
	if idx.Current == "" {
		return nil, fmt.Errorf("%w: no current workspace", ErrNotFound)
	}
	return idx.find(idx.Current)
}

// SwitchTo makes a workspace the current one.
func (m *Manager) SwitchTo(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.load()
	if err != nil {
		return err
	}
	if _, err := idx.find(id); err != nil {
		return err
	}
	idx.Current = id
	return m.save(idx)
}

// Copy duplicates a workspace's store and config into a new workspace.
// Backups are not copied; the new workspace starts its own history.
func (m *Manager) Copy(id, newName string) (*Workspace, error) {
	src, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	ws, err := m.Create(newName)
	if err != nil {
		return nil, err
	}
	for _, f := range []string{dbFile, configFile} {
		srcPath := filepath.Join(m.Dir(src.ID), f)
		if _, err := os.Stat(srcPath); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(srcPath, filepath.Join(m.Dir(ws.ID), f)); err != nil {
			return nil, fmt.Errorf("copying %s: %w", f, err)
		}
	}
	return ws, nil
}

// Delete removes a workspace and its directory. The current workspace
// cannot be deleted; switch away first.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.load()
	if err != nil {
		return err
	}
	if _, err := idx.find(id); err != nil {
		return err
	}
	if idx.Current == id {
		return fmt.Errorf("%w: %s", ErrCurrent, id)
	}

	kept := idx.Workspaces[:0]
	for _, ws := range idx.Workspaces {
		if ws.ID != id {
			kept = append(kept, ws)
		}
	}
	idx.Workspaces = kept
	if err := m.save(idx); err != nil {
		return err
	}
	return os.RemoveAll(m.Dir(id))
}

func (idx *index) find(id string) (*Workspace, error) {
	for i := range idx.Workspaces {
		if idx.Workspaces[i].ID == id {
			return &idx.Workspaces[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (m *Manager) load() (*index, error) {
	b, err := os.ReadFile(filepath.Join(m.root, indexFile))
	if os.IsNotExist(err) {
		return &index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading workspace index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("parsing workspace index: %w", err)
	}
	return &idx, nil
}

// save writes the index atomically: a torn index would orphan every workspace.
func (m *Manager) save(idx *index) error {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("creating workspace root: %w", err)
	}
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workspace index: %w", err)
	}
	tmp := filepath.Join(m.root, indexFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("writing workspace index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(m.root, indexFile))
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
		return err
	}
	return out.Close()
}
