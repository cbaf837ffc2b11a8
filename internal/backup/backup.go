// Package backup snapshots the workspace store into timestamped zip
// archives. Snapshots are taken on critical workflow events and at most
// once per day otherwise; a dirty flag on the store suppresses snapshots
// when nothing changed since the last one.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/acolucci/partforge/internal/sqlite"
)

// DefaultRetention is how many snapshot archives are kept before the
// oldest are pruned.
const DefaultRetention = 30

const (
	archivePrefix = "pdm_backup_"
	manifestName  = "manifest.json"
	markerName    = "last_daily_backup"
)

// Manifest describes the contents of one snapshot archive.
type Manifest struct {
	CreatedAt time.Time `json:"created_at"`
	Reason    string    `json:"reason"`
	Files     []string  `json:"files"`
}

// Manager writes and prunes snapshot archives. It implements
// document.BackupRunner.
type Manager struct {
	db         *sqlite.DB
	configPath string
	dir        string
	metaDir    string
	retention  int
	logger     *slog.Logger

	mu sync.Mutex
}

// NewManager creates a backup manager. configPath may be empty if the
// workspace has no config file yet; metaDir holds the daily marker.
func NewManager(db *sqlite.DB, configPath, dir, metaDir string, retention int, logger *slog.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:         db,
		configPath: configPath,
		dir:        dir,
		metaDir:    metaDir,
		retention:  retention,
		logger:     logger,
	}
}

// Snapshot writes one archive containing the store, the workspace config
// and a manifest. A clean store is a no-op: nothing changed since the
// last snapshot, so there is nothing worth archiving.
func (m *Manager) Snapshot(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.db.Dirty() {
		m.logger.Debug("backup skipped, store unchanged", "reason", reason)
		return nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	dest := m.nextArchivePath(time.Now())
	if err := m.writeArchive(dest, reason); err != nil {
		os.Remove(dest)
		return err
	}
	m.db.ClearDirty()
	m.logger.Info("backup written", "archive", filepath.Base(dest), "reason", reason)

	if err := m.prune(); err != nil {
		m.logger.Warn("backup pruning failed", "error", err)
	}
	return nil
}

// MaybeDaily takes a snapshot if none was taken today. Called at startup.
func (m *Manager) MaybeDaily() error {
	today := time.Now().Format("2006-01-02")
	marker := filepath.Join(m.metaDir, markerName)
	if b, err := os.ReadFile(marker); err == nil && strings.TrimSpace(string(b)) == today {
		return nil
	}
	if err := m.Snapshot("daily"); err != nil {
		return err
	}
	if err := os.MkdirAll(m.metaDir, 0o755); err != nil {
		return fmt.Errorf("creating meta directory: %w", err)
	}
	if err := os.WriteFile(marker, []byte(today+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing daily marker: %w", err)
	}
	return nil
}

// List returns the snapshot archives on disk, oldest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}
	var archives []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, archivePrefix) && strings.HasSuffix(name, ".zip") {
			archives = append(archives, filepath.Join(m.dir, name))
		}
	}
	sort.Strings(archives)
	return archives, nil
}

func (m *Manager) nextArchivePath(now time.Time) string {
	base := archivePrefix + now.Format("20060102_150405")
	dest := filepath.Join(m.dir, base+".zip")
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = filepath.Join(m.dir, fmt.Sprintf("%s_%02d.zip", base, n))
	}
}

func (m *Manager) writeArchive(dest, reason string) error {
	// checkpoint and copy the store first so the zip sees a stable file
	staging := dest + ".db.tmp"
	if err := m.db.BackupTo(staging); err != nil {
		return fmt.Errorf("staging store copy: %w", err)
	}
	defer os.Remove(staging)

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	manifest := Manifest{CreatedAt: time.Now(), Reason: reason}

	if err := addFile(w, staging, filepath.Base(m.db.Path())); err != nil {
		return err
	}
	manifest.Files = append(manifest.Files, filepath.Base(m.db.Path()))

	if m.configPath != "" {
		if _, err := os.Stat(m.configPath); err == nil {
			if err := addFile(w, m.configPath, filepath.Base(m.configPath)); err != nil {
				return err
			}
			manifest.Files = append(manifest.Files, filepath.Base(m.configPath))
		}
	}

	mf, err := w.Create(manifestName)
	if err != nil {
		return fmt.Errorf("creating manifest entry: %w", err)
	}
	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if _, err := mf.Write(b); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return f.Close()
}

func addFile(w *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stating %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	out, err := w.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}

func (m *Manager) prune() error {
	archives, err := m.List()
	if err != nil {
		return err
	}
	if len(archives) <= m.retention {
		return nil
	}
	for _, old := range archives[:len(archives)-m.retention] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("removing %s: %w", old, err)
		}
		m.logger.Debug("old backup pruned", "archive", filepath.Base(old))
	}
	return nil
}
