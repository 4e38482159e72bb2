package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"deepagents/internal/agent"
	"deepagents/internal/bootstrap"
	"deepagents/internal/chat"
	"deepagents/internal/tui"

	"github.com/spf13/cobra"
)

func newRunCmd(state *cliState) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "run [question...]",
		Short: "Research a question and print the final report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			app, err := state.build(bootstrap.Hooks{
				OnToolCall: func(call chat.ToolCall) { printToolCall(out, state.theme, call) },
			})
			if err != nil {
				return err
			}
			defer app.Close()

			session, err := openOrCreate(app, sessionID, question)
			if err != nil {
				return err
			}
			defer session.FS.Close()
			fmt.Fprintln(out, state.theme.MutedStyle.Render("session: "+session.ID))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, runErr := app.Agent.Run(ctx, session, question)
			printResult(out, state.theme, res)
			if runErr != nil {
				return fmt.Errorf("run failed: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session instead of creating one")
	return cmd
}

func openOrCreate(app *bootstrap.BuildResult, sessionID, title string) (*agent.Session, error) {
	if strings.TrimSpace(sessionID) != "" {
		return app.OpenSession(sessionID)
	}
	return app.NewSession(truncate(title, 80))
}

func printToolCall(out io.Writer, theme tui.Theme, call chat.ToolCall) {
	fmt.Fprintln(out, theme.ToolStyle.Render("→ "+call.Function.Name+" "+summarizeArgs(call.Function.Arguments)))
}

func printResult(out io.Writer, theme tui.Theme, res agent.Result) {
	switch {
	case strings.TrimSpace(res.Report) != "":
		fmt.Fprintln(out, tui.RenderMarkdown(res.Report, 100))
	case strings.TrimSpace(res.AssistantMessage) != "":
		fmt.Fprintln(out, res.AssistantMessage)
	}
	if len(res.Todos) > 0 {
		fmt.Fprintln(out, theme.TitleStyle.Render("Todos"))
		fmt.Fprintln(out, tui.RenderTodos(res.Todos, theme))
	}
	fmt.Fprintln(out, theme.MutedStyle.Render(fmt.Sprintf("%d steps, %d files", res.Steps, len(res.Files))))
}
