package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acolucci/partforge/internal/backup"
	"github.com/acolucci/partforge/internal/config"
	"github.com/acolucci/partforge/internal/sqlite"
	"github.com/acolucci/partforge/internal/workspace"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces (each has its own store, config and backups)",
}

func init() {
	workspaceCmd.AddCommand(wsListCmd)
	workspaceCmd.AddCommand(wsCreateCmd)
	workspaceCmd.AddCommand(wsUseCmd)
	workspaceCmd.AddCommand(wsCopyCmd)
	workspaceCmd.AddCommand(wsDeleteCmd)
}

// newWorkspaceManager wires just the workspace index, without opening any
// store: workspace commands must work even when the current store is broken.
func newWorkspaceManager() (*workspace.Manager, error) {
	cfg, err := config.Load(os.Getenv("PARTFORGE_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return workspace.NewManager(cfg.Workspaces.Root), nil
}

var wsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newWorkspaceManager()
		if err != nil {
			return err
		}
		workspaces, err := m.List()
		if err != nil {
			return err
		}
		current, _ := m.Current()
		for _, ws := range workspaces {
			marker := " "
			if current != nil && ws.ID == current.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, ws.ID, ws.Name)
		}
		return nil
	},
}

var wsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new empty workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newWorkspaceManager()
		if err != nil {
			return err
		}
		ws, err := m.Create(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s created (%s)\n", ws.Name, ws.ID)
		return nil
	},
}

var wsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Switch to a workspace (the outgoing workspace is snapshotted first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newWorkspaceManager()
		if err != nil {
			return err
		}
		if current, err := m.Current(); err == nil && current.ID != args[0] {
			// advisory: a failed snapshot must not strand the user in a
			// workspace they are trying to leave
			if err := snapshotWorkspace(m, current.ID, "workspace switch"); err != nil {
				fmt.Fprintf(os.Stderr, "warning: backup of workspace %s failed: %v\n", current.ID, err)
			}
		}
		return m.SwitchTo(args[0])
	},
}

// snapshotWorkspace archives a workspace's store by id. The store's dirty
// flag lives in the process that modified it, so from here the store has to
// be treated as changed whenever its file exists at all.
func snapshotWorkspace(m *workspace.Manager, id, reason string) error {
	dbPath := m.DBPath(id)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil
	}
	db, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()
	db.MarkDirty()

	retention := backup.DefaultRetention
	if cfg, err := config.Load(m.ConfigPath(id)); err == nil {
		retention = cfg.Backup.Retention
	}
	runner := backup.NewManager(db, m.ConfigPath(id), m.BackupsDir(id), m.MetaDir(id), retention, nil)
	return runner.Snapshot(reason)
}

var wsCopyCmd = &cobra.Command{
	Use:   "copy <id> <name>",
	Short: "Duplicate a workspace's store and config under a new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newWorkspaceManager()
		if err != nil {
			return err
		}
		ws, err := m.Copy(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s created (%s)\n", ws.Name, ws.ID)
		return nil
	},
}

var wsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workspace and its data (the active workspace cannot be deleted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newWorkspaceManager()
		if err != nil {
			return err
		}
		return m.Delete(args[0])
	},
}
