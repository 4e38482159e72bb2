package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"deepagents/internal/agent"
	"deepagents/internal/config"
	"deepagents/internal/contextmgr"
	"deepagents/internal/defaults"
	"deepagents/internal/provider"
	"deepagents/internal/security"
	"deepagents/internal/storage"
	"deepagents/internal/vfs"

	"go.uber.org/zap"
)

// Hooks 由 UI 提供的流式输出回调
// Hooks are the UI callbacks forwarded to the agent.
type Hooks struct {
	OnTextChunk  agent.TextChunkFunc
	OnToolCall   agent.ToolCallFunc
	OnToolResult agent.ToolResultFunc
}

// BuildResult 与 UI 无关的构建结果
// BuildResult is UI-agnostic; commands use it to open sessions and run the agent.
type BuildResult struct {
	Agent    *agent.Agent
	Store    *storage.SQLiteStore
	Root     *security.Root
	Model    string
	Backend  string
	Provider provider.Provider

	log *zap.Logger
}

// Build 初始化存储、provider 与 agent；调用方负责 defer result.Close()
// Build wires storage, provider and agent; caller must defer result.Close()
func Build(cfg config.Config, workspaceRoot string, log *zap.Logger, hooks Hooks) (*BuildResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rootDir, err := ResolveWorkspaceRoot(cfg, workspaceRoot)
	if err != nil {
		return nil, err
	}
	root, err := security.NewRoot(rootDir)
	if err != nil {
		return nil, fmt.Errorf("init workspace root: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	providerClient := provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		TimeoutMS:  cfg.Provider.TimeoutMS,
		MaxRetries: cfg.Provider.MaxRetries,
		Logger:     log.Named("provider"),
	})

	var tok *contextmgr.Tokenizer
	if cfg.Runtime.ContextTokenLimit > 0 {
		tok = contextmgr.NewTokenizer(cfg.Provider.Model)
	}
	a := agent.New(providerClient, agent.Options{
		MaxSteps:          cfg.Runtime.MaxSteps,
		MaxParallelTools:  cfg.Runtime.MaxParallelTools,
		ContextTokenLimit: cfg.Runtime.ContextTokenLimit,
		Tokenizer:         tok,
		SystemPrompt:      defaults.DefaultSystemPrompt,
		Subagents:         defaults.Subagents(),
		Store:             store,
		Logger:            log.Named("agent"),
		OnTextChunk:       hooks.OnTextChunk,
		OnToolCall:        hooks.OnToolCall,
		OnToolResult:      hooks.OnToolResult,
	})

	log.Debug("bootstrap complete",
		zap.String("root", root.Dir()),
		zap.String("db", cfg.DBPath()),
		zap.String("mirror", cfg.Mirror.Backend),
		zap.String("model", cfg.Provider.Model),
	)
	return &BuildResult{
		Agent:    a,
		Store:    store,
		Root:     root,
		Model:    cfg.Provider.Model,
		Backend:  cfg.Mirror.Backend,
		Provider: providerClient,
		log:      log,
	}, nil
}

// NewSession creates and persists an empty session.
func (b *BuildResult) NewSession(title string) (*agent.Session, error) {
	meta := storage.SessionMeta{
		ID:    storage.NewSessionID(),
		Title: strings.TrimSpace(title),
		Model: b.Model,
		CWD:   b.Root.Dir(),
	}
	if err := b.Store.CreateSession(meta); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	fs := vfs.New(vfs.NewStore(), b.fsOptions(meta.ID)...)
	return agent.NewSession(meta.ID, fs, nil), nil
}

// OpenSession restores a stored session's workspace and history.
func (b *BuildResult) OpenSession(id string) (*agent.Session, error) {
	meta, err := b.Store.LoadSession(id)
	if err != nil {
		return nil, err
	}
	snap, err := b.Store.LoadWorkspace(meta.ID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	history, err := b.Store.LoadMessages(meta.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	fs := vfs.New(vfs.NewStoreFrom(snap), b.fsOptions(meta.ID)...)
	return agent.NewSession(meta.ID, fs, history), nil
}

// Mirror returns the configured mirror for a session, nil for "none".
func (b *BuildResult) Mirror(sessionID string) vfs.Mirror {
	switch b.Backend {
	case config.MirrorSQLite:
		return b.Store.Mirror(sessionID)
	case config.MirrorNone:
		return nil
	default:
		return vfs.NewDiskMirror(b.Root)
	}
}

func (b *BuildResult) fsOptions(sessionID string) []vfs.Option {
	opts := []vfs.Option{vfs.WithLogger(b.log.Named("vfs").With(zap.String("session", sessionID)))}
	if m := b.Mirror(sessionID); m != nil {
		opts = append(opts, vfs.WithMirror(m))
	}
	return opts
}

func (b *BuildResult) Close() error {
	return b.Store.Close()
}

// ResolveWorkspaceRoot picks the directory disk mirrors write under: the
// explicit override, then runtime.workspace_root, then the working directory.
func ResolveWorkspaceRoot(cfg config.Config, override string) (string, error) {
	if root := strings.TrimSpace(override); root != "" {
		return root, nil
	}
	if root := strings.TrimSpace(cfg.Runtime.WorkspaceRoot); root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	return wd, nil
}
