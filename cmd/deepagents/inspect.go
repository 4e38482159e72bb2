package main

import (
	"fmt"
	"text/tabwriter"

	"deepagents/internal/bootstrap"
	"deepagents/internal/tui"
	"deepagents/internal/vfs"

	"github.com/spf13/cobra"
)

func newSessionsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.build(bootstrap.Hooks{})
			if err != nil {
				return err
			}
			defer app.Close()

			metas, err := app.Store.ListSessions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(metas) == 0 {
				fmt.Fprintln(out, state.theme.MutedStyle.Render("(no sessions)"))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tMODEL\tTITLE")
			for _, m := range metas {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.UpdatedAt, m.Model, truncate(m.Title, 60))
			}
			return tw.Flush()
		},
	}
}

func newFilesCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "files <session>",
		Short: "List the workspace files of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(state, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snap.Order) == 0 {
				fmt.Fprintln(out, state.theme.MutedStyle.Render("(no files)"))
				return nil
			}
			for _, p := range snap.Order {
				fmt.Fprintf(out, "%s\t%d bytes\n", p, len(snap.Files[p]))
			}
			return nil
		},
	}
}

func newShowCmd(state *cliState) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <session> [path]",
		Short: "Print a workspace file (default final_report.md)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(state, args[0])
			if err != nil {
				return err
			}
			name := reportPath
			if len(args) > 1 {
				name = args[1]
			}
			content, ok := snap.Files[name]
			if !ok {
				return &vfs.NotFoundError{Path: name}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFile(name, content, raw))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print content without markdown rendering")
	return cmd
}

func newTodosCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "todos <session>",
		Short: "Show the todo list of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(state, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderTodos(snap.Todos, state.theme))
			return nil
		},
	}
}

func newDiffCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <session> <path>",
		Short: "Diff a workspace file against its mirrored copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.build(bootstrap.Hooks{})
			if err != nil {
				return err
			}
			defer app.Close()

			meta, err := app.Store.LoadSession(args[0])
			if err != nil {
				return err
			}
			snap, err := app.Store.LoadWorkspace(meta.ID)
			if err != nil {
				return err
			}
			name := args[1]
			current, ok := snap.Files[name]
			if !ok {
				return &vfs.NotFoundError{Path: name}
			}
			mirror := app.Mirror(meta.ID)
			if mirror == nil {
				return fmt.Errorf("mirror backend %q keeps no copy to diff against", app.Backend)
			}
			var mirrored string
			if mirror.Exists(name) {
				data, err := mirror.Read(name)
				if err != nil {
					return err
				}
				mirrored = string(data)
			}

			out := cmd.OutOrStdout()
			diff := tui.UnifiedDiff("mirror/"+name, "workspace/"+name, mirrored, current, 3)
			if diff == "" {
				fmt.Fprintln(out, state.theme.MutedStyle.Render("no differences"))
				return nil
			}
			fmt.Fprint(out, tui.RenderDiff(diff, state.theme))
			return nil
		},
	}
}

func loadSnapshot(state *cliState, sessionID string) (vfs.Snapshot, error) {
	app, err := state.build(bootstrap.Hooks{})
	if err != nil {
		return vfs.Snapshot{}, err
	}
	defer app.Close()

	meta, err := app.Store.LoadSession(sessionID)
	if err != nil {
		return vfs.Snapshot{}, err
	}
	return app.Store.LoadWorkspace(meta.ID)
}
