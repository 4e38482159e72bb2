package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"deepagents/internal/agent"
	"deepagents/internal/bootstrap"
	"deepagents/internal/chat"
	"deepagents/internal/tui"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var chatCommands = []string{
	"/files         list workspace files",
	"/todos         show the todo list",
	"/show [path]   print a workspace file (default final_report.md)",
	"/session       print the session id",
	"/help          show this help",
	"/exit          leave",
}

func newChatCmd(state *cliState) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive research session with streamed answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			theme := state.theme

			app, err := state.build(bootstrap.Hooks{
				OnTextChunk: func(chunk string) { fmt.Fprint(out, chunk) },
				OnToolCall: func(call chat.ToolCall) {
					fmt.Fprintln(out)
					printToolCall(out, theme, call)
				},
			})
			if err != nil {
				return err
			}
			defer app.Close()

			session, err := openOrCreate(app, sessionID, "chat")
			if err != nil {
				return err
			}
			defer session.FS.Close()

			input := newQuestionReader(cmd.InOrStdin(), out, filepath.Join(state.cfg.Storage.BaseDir, "chat_history"))
			defer input.Close()

			fmt.Fprintln(out, theme.TitleStyle.Render("deepagents")+" "+theme.MutedStyle.Render(session.ID+" · "+app.Model))
			fmt.Fprintln(out, theme.MutedStyle.Render("type /help for commands"))
			for {
				line, err := input.Question()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if strings.HasPrefix(line, "/") {
					if quit := handleChatCommand(out, theme, session, line); quit {
						return nil
					}
					continue
				}

				res, runErr := app.Agent.Run(cmd.Context(), session, line)
				fmt.Fprintln(out)
				if runErr != nil {
					fmt.Fprintln(out, theme.ErrorStyle.Render("error: "+runErr.Error()))
					continue
				}
				fmt.Fprintln(out, theme.MutedStyle.Render(fmt.Sprintf("%d steps, %d files, %d tokens", res.Steps, len(res.Files), res.Usage.TotalTokens)))
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session")
	return cmd
}

func handleChatCommand(out io.Writer, theme tui.Theme, session *agent.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(out, "commands:")
		for _, c := range chatCommands {
			fmt.Fprintf(out, "  %s\n", c)
		}
	case "/session":
		fmt.Fprintln(out, session.ID)
	case "/files":
		paths := session.FS.List()
		if len(paths) == 0 {
			fmt.Fprintln(out, theme.MutedStyle.Render("(no files)"))
		}
		for _, p := range paths {
			fmt.Fprintln(out, p)
		}
	case "/todos":
		fmt.Fprintln(out, tui.RenderTodos(session.FS.Todos(), theme))
	case "/show":
		name := reportPath
		if len(fields) > 1 {
			name = fields[1]
		}
		content, ok := session.FS.Store().File(name)
		if !ok {
			fmt.Fprintln(out, theme.ErrorStyle.Render("file not found: "+name))
			return false
		}
		fmt.Fprintln(out, renderFile(name, content, false))
	default:
		known := make([]string, 0, len(chatCommands))
		for _, c := range chatCommands {
			known = append(known, strings.Fields(c)[0])
		}
		sort.Strings(known)
		fmt.Fprintln(out, theme.ErrorStyle.Render("unknown command "+fields[0]+" (known: "+strings.Join(known, " ")+")"))
	}
	return false
}
