package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "pdm",
	Short:         "Manage CAD document codes, workflow states and the file archive",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(reviseCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(obsoleteCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(locksCmd)
	rootCmd.AddCommand(machineCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(activityCmd)
}
