package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var machineCmd = &cobra.Command{
	Use:   "machine",
	Short: "Manage the machine registry",
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage the group registry",
}

func init() {
	machineCmd.AddCommand(machineAddCmd)
	machineCmd.AddCommand(machineListCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupListCmd)
}

var machineAddCmd = &cobra.Command{
	Use:   "add <code> <name>",
	Short: "Register a machine code",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		m, err := a.docs.RegisterMachine(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s registered\n", m.Code)
		return nil
	}),
}

var machineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered machines",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		machines, err := a.docs.Machines(ctx)
		if err != nil {
			return err
		}
		for _, m := range machines {
			fmt.Printf("%-6s %s\n", m.Code, m.Name)
		}
		return nil
	}),
}

var groupAddCmd = &cobra.Command{
	Use:   "add <machine> <code> <name>",
	Short: "Register a group code under a machine",
	Args:  cobra.MinimumNArgs(3),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		g, err := a.docs.RegisterGroup(ctx, args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s/%s registered\n", g.Machine, g.Code)
		return nil
	}),
}

var groupListCmd = &cobra.Command{
	Use:   "list <machine>",
	Short: "List registered groups under a machine",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		groups, err := a.docs.Groups(ctx, strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Printf("%-6s %s\n", g.Code, g.Name)
		}
		return nil
	}),
}
