package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acolucci/partforge/internal/domain/document"
)

var (
	newVariant     string
	newDescription string

	listMachine  string
	listGroup    string
	listState    string
	listQuery    string
	listObsolete bool

	transitionNote string
)

func init() {
	newCmd.Flags().StringVar(&newVariant, "variant", "", "variant code, e.g. SKL")
	newCmd.Flags().StringVarP(&newDescription, "desc", "d", "", "description")

	listCmd.Flags().StringVar(&listMachine, "machine", "", "filter by machine code")
	listCmd.Flags().StringVar(&listGroup, "group", "", "filter by group code")
	listCmd.Flags().StringVar(&listState, "state", "", "filter by state (WIP, REL, IN_REV, OBS)")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "match code or description")
	listCmd.Flags().BoolVar(&listObsolete, "obsolete", false, "include obsolete documents")

	for _, c := range []*cobra.Command{releaseCmd, reviseCmd, approveCmd, cancelCmd, obsoleteCmd, restoreCmd} {
		c.Flags().StringVarP(&transitionNote, "note", "n", "", "note recorded with the transition")
	}
}

var newCmd = &cobra.Command{
	Use:   "new <part|assy|machine|group> <machine> [group]",
	Short: "Allocate the next code and create a WIP document",
	Args:  cobra.RangeArgs(2, 3),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		req, err := createRequest(args)
		if err != nil {
			return err
		}
		req.Variant = newVariant
		req.Description = newDescription
		doc, err := a.docs.Create(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(doc.Code)
		return nil
	}),
}

var nextCmd = &cobra.Command{
	Use:   "next <part|assy|machine|group> <machine> [group]",
	Short: "Preview the next code for a scope without allocating it",
	Args:  cobra.RangeArgs(2, 3),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		req, err := createRequest(args)
		if err != nil {
			return err
		}
		req.Variant = newVariant
		code, err := a.docs.PreviewNext(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(code)
		return nil
	}),
}

var showCmd = &cobra.Command{
	Use:   "show <code>",
	Short: "Show a document's state, revision and file placement",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		doc, err := a.docs.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Code:        %s\n", doc.Code)
		fmt.Printf("Type:        %s\n", doc.Type)
		fmt.Printf("State:       %s\n", doc.State)
		fmt.Printf("Revision:    R%02d\n", doc.Revision)
		if doc.Description != "" {
			fmt.Printf("Description: %s\n", doc.Description)
		}
		if doc.ModelPath != "" {
			fmt.Printf("Model:       %s\n", doc.ModelPath)
		}
		if doc.DrawingPath != "" {
			fmt.Printf("Drawing:     %s\n", doc.DrawingPath)
		}
		if doc.InRevModelPath != "" {
			fmt.Printf("In revision: %s\n", doc.InRevModelPath)
		}
		if doc.ObsPrev != "" {
			fmt.Printf("Was:         %s\n", doc.ObsPrev)
		}
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		docs, err := a.docs.List(ctx, document.ListOptions{
			Query:           listQuery,
			Machine:         strings.ToUpper(listMachine),
			Group:           strings.ToUpper(listGroup),
			State:           document.State(strings.ToUpper(listState)),
			IncludeObsolete: listObsolete,
		})
		if err != nil {
			return err
		}
		for _, d := range docs {
			fmt.Printf("%-24s %-8s %-7s R%02d  %s\n", d.Code, d.Type, d.State, d.Revision, d.Description)
		}
		return nil
	}),
}

var attachCmd = &cobra.Command{
	Use:   "attach <code> <file>",
	Short: "Register a CAD file already saved in the document's archive directory",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		doc, err := a.docs.RegisterLinkedFile(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("registered to %s\n", doc.Code)
		return nil
	}),
}

var releaseCmd = &cobra.Command{
	Use:   "release <code>",
	Short: "Release a WIP document; its files move to the released area and freeze",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunE(func(ctx context.Context, a *app, code string) (*document.Document, error) {
		return a.docs.Release(ctx, code, transitionNote)
	}),
}

var reviseCmd = &cobra.Command{
	Use:   "revise <code>",
	Short: "Start a revision; a working copy is staged in the in-revision area",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, a *app, code string) (*document.Document, error) {
		return a.docs.StartRevision(ctx, code, transitionNote)
	}),
}

var approveCmd = &cobra.Command{
	Use:   "approve <code>",
	Short: "Approve the working copy as the new released revision",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, a *app, code string) (*document.Document, error) {
		return a.docs.ApproveRevision(ctx, code, transitionNote)
	}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <code>",
	Short: "Cancel the revision in progress and discard its working copy",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, a *app, code string) (*document.Document, error) {
		return a.docs.CancelRevision(ctx, code, transitionNote)
	}),
}

var obsoleteCmd = &cobra.Command{
	Use:   "obsolete <code>",
	Short: "Retire a document; its files move to the obsolete area",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, a *app, code string) (*document.Document, error) {
		return a.docs.SetObsolete(ctx, code, transitionNote)
	}),
}

var restoreCmd = &cobra.Command{
	Use:   "restore <code>",
	Short: "Restore an obsolete document to its prior state",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, a *app, code string) (*document.Document, error) {
		return a.docs.Restore(ctx, code, transitionNote)
	}),
}

var lockCmd = &cobra.Command{
	Use:   "lock <code>",
	Short: "Take the edit lock on a document for this session",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		lock, err := a.docs.Lock(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s locked until %s\n", lock.Code, lock.ExpiresAt.Format("15:04:05"))
		return nil
	}),
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <code>",
	Short: "Release this session's edit lock on a document",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		return a.docs.Unlock(ctx, args[0])
	}),
}

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "List active edit locks",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		locks, err := a.docs.ActiveLocks(ctx, 0)
		if err != nil {
			return err
		}
		for _, l := range locks {
			fmt.Printf("%-24s %s@%s  expires %s\n", l.Code, l.OwnerUser, l.OwnerHost, l.ExpiresAt.Format("15:04:05"))
		}
		return nil
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history <code>",
	Short: "Show a document's workflow transition history",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		notes, err := a.docs.ListStateNotes(ctx, args[0], 50)
		if err != nil {
			return err
		}
		for _, n := range notes {
			fmt.Printf("%s  %-14s %s -> %s", n.CreatedAt.Format("2006-01-02 15:04"), n.Event, n.FromState, n.ToState)
			if n.Note != "" {
				fmt.Printf("  %s", n.Note)
			}
			fmt.Println()
		}
		return nil
	}),
}

func transitionRunE(fn func(ctx context.Context, a *app, code string) (*document.Document, error)) func(*cobra.Command, []string) error {
	return withApp(func(ctx context.Context, a *app, args []string) error {
		doc, err := fn(ctx, a, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s (R%02d)\n", doc.Code, doc.State, doc.Revision)
		return nil
	})
}

func createRequest(args []string) (document.CreateRequest, error) {
	var t document.Type
	switch strings.ToLower(args[0]) {
	case "part":
		t = document.TypePart
	case "assy", "assembly":
		t = document.TypeAssembly
	case "machine":
		t = document.TypeMachine
	case "group":
		t = document.TypeGroup
	default:
		return document.CreateRequest{}, fmt.Errorf("unknown document type %q", args[0])
	}

	req := document.CreateRequest{Type: t, Machine: args[1]}
	if t != document.TypeMachine {
		if len(args) < 3 {
			return document.CreateRequest{}, fmt.Errorf("%s documents need a group code", strings.ToLower(args[0]))
		}
		req.Group = args[2]
	}
	return req, nil
}
