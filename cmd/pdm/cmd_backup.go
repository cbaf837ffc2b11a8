package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/acolucci/partforge/internal/domain/activity"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage workspace backups",
}

func init() {
	backupCmd.AddCommand(backupNowCmd)
	backupCmd.AddCommand(backupListCmd)
}

var backupNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Take a snapshot of the current workspace",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		// manual backups always run, even on a clean store
		a.db.MarkDirty()
		return a.backups.Snapshot("manual")
	}),
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot archives, oldest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		archives, err := a.backups.List()
		if err != nil {
			return err
		}
		for _, path := range archives {
			fmt.Println(filepath.Base(path))
		}
		return nil
	}),
}

var activityCmd = &cobra.Command{
	Use:   "activity [code]",
	Short: "Show recent activity, optionally for one document",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		opts := activity.ListOptions{Limit: 50}
		if len(args) == 1 {
			opts.Code = args[0]
		}
		entries, err := a.activity.List(ctx, opts)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-14s %-24s %s@%s", e.Timestamp.Format("2006-01-02 15:04"), e.Action, e.Code, e.Actor, e.Host)
			if e.Message != "" {
				fmt.Printf("  %s", e.Message)
			}
			fmt.Println()
		}
		return nil
	}),
}
