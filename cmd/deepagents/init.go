package main

import (
	"fmt"

	"deepagents/internal/bootstrap"
	"deepagents/internal/config"

	"github.com/spf13/cobra"
)

func newInitCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a project config scaffold into the workspace root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := bootstrap.ResolveWorkspaceRoot(state.cfg, state.workspace)
			if err != nil {
				return err
			}
			path, err := config.InitProjectConfigScaffold(root)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), state.theme.SuccessStyle.Render("config: "+path))
			return nil
		},
	}
}
