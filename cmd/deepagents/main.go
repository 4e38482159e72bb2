package main

import (
	"fmt"
	"io"
	"os"

	"deepagents/internal/bootstrap"
	"deepagents/internal/config"
	"deepagents/internal/logging"
	"deepagents/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliState holds what the persistent pre-run prepares for every command.
type cliState struct {
	configPath string
	workspace  string
	verbose    bool

	cfg      config.Config
	logger   *zap.Logger
	closeLog func() error
	theme    tui.Theme
}

func main() {
	root, state := newRootCmd()
	err := root.Execute()
	state.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *cliState) {
	state := &cliState{logger: zap.NewNop(), theme: tui.DarkTheme()}

	root := &cobra.Command{
		Use:   "deepagents",
		Short: "Research agent with a virtual file workspace",
		Long: `deepagents answers research questions with an LLM that plans with a todo
list and works inside a per-session virtual file workspace. The finished
report is written to final_report.md in that workspace.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&state.configPath, "config", "", "Path to config file (JSON/JSONC/YAML)")
	root.PersistentFlags().StringVar(&state.workspace, "cwd", "", "Workspace root override (disk mirror target)")
	root.PersistentFlags().BoolVarP(&state.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newRunCmd(state),
		newChatCmd(state),
		newSessionsCmd(state),
		newFilesCmd(state),
		newShowCmd(state),
		newTodosCmd(state),
		newDiffCmd(state),
		newInitCmd(state),
	)
	return root, state
}

func (s *cliState) init(stderr io.Writer) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	s.cfg = cfg

	logger, closeFn, err := logging.New(logging.Options{
		Path:      cfg.LogPath(),
		MaxSizeMB: cfg.Storage.LogMaxMB,
		Level:     cfg.Log.Level,
		Verbose:   s.verbose,
		Console:   stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	s.logger = logger
	s.closeLog = closeFn
	return nil
}

// build wires the application for one command invocation.
func (s *cliState) build(hooks bootstrap.Hooks) (*bootstrap.BuildResult, error) {
	return bootstrap.Build(s.cfg, s.workspace, s.logger, hooks)
}

func (s *cliState) Close() {
	if s.closeLog != nil {
		_ = s.closeLog()
		s.closeLog = nil
	}
}
