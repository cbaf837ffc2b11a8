package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/acolucci/partforge/internal/archive"
	"github.com/acolucci/partforge/internal/backup"
	"github.com/acolucci/partforge/internal/codegen"
	"github.com/acolucci/partforge/internal/config"
	"github.com/acolucci/partforge/internal/domain/activity"
	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/acolucci/partforge/internal/sqlite"
	"github.com/acolucci/partforge/internal/workspace"
)

// app holds the wired service graph for one command invocation.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	workspaces *workspace.Manager
	current    *workspace.Workspace
	db         *sqlite.DB
	docs       *document.Service
	activity   *activity.Service
	backups    *backup.Manager
	session    document.Session
}

// newApp loads configuration, opens the current workspace's store and
// wires the services. The first run creates a default workspace.
func newApp() (*app, error) {
	// global defaults and env first; the workspace config overlays below
	cfg, err := config.Load(os.Getenv("PARTFORGE_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	workspaces := workspace.NewManager(cfg.Workspaces.Root)
	current, err := workspaces.Current()
	if err != nil {
		current, err = workspaces.Create("default")
		if err != nil {
			return nil, fmt.Errorf("creating default workspace: %w", err)
		}
	}

	cfg, err = config.Load(workspaces.ConfigPath(current.ID))
	if err != nil {
		return nil, fmt.Errorf("loading workspace config: %w", err)
	}
	logger := newLogger(cfg.Log.Level)

	db, err := sqlite.New(workspaces.DBPath(current.ID))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	session := newSession()
	docRepo := sqlite.NewDocumentRepository(db)
	counterRepo := sqlite.NewCounterRepository(db)
	lockRepo := sqlite.NewLockRepository(db)
	activityRepo := sqlite.NewActivityRepository(db)

	activitySvc := activity.NewService(activityRepo, current.ID, session.ID, logger)
	archiveMgr := archive.NewManager(cfg.Archive.Root)
	backupMgr := backup.NewManager(db,
		workspaces.ConfigPath(current.ID),
		workspaces.BackupsDir(current.ID),
		workspaces.MetaDir(current.ID),
		cfg.Backup.Retention, logger)

	sch, err := cfg.Schema()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building code schema: %w", err)
	}
	docSvc := document.NewService(
		docRepo, counterRepo, lockRepo, archiveMgr, backupMgr, activitySvc,
		sch, codegen.NewComposer(cfg.Separators()), session, logger)

	if err := backupMgr.MaybeDaily(); err != nil {
		logger.Warn("daily backup failed", "error", err)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		workspaces: workspaces,
		current:    current,
		db:         db,
		docs:       docSvc,
		activity:   activitySvc,
		backups:    backupMgr,
		session:    session,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// withApp wraps a command handler with service wiring and teardown.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}

func newSession() document.Session {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return document.Session{ID: uuid.NewString(), User: username, Host: host}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
