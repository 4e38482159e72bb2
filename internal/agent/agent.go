// Package agent runs the research loop: the model plans with todos, works in
// the session workspace through tool calls and finishes with a report file.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deepagents/internal/chat"
	"deepagents/internal/contextmgr"
	"deepagents/internal/defaults"
	"deepagents/internal/provider"
	"deepagents/internal/tools"
	"deepagents/internal/vfs"

	"go.uber.org/zap"
)

var (
	ErrMaxSteps      = errors.New("max steps reached")
	ErrContextBudget = errors.New("context budget exceeded")
)

type TextChunkFunc func(chunk string)

type ToolCallFunc func(call chat.ToolCall)

type ToolResultFunc func(result chat.Message)

type Options struct {
	MaxSteps         int
	MaxParallelTools int
	// ContextTokenLimit bounds each request; 0 disables the check.
	ContextTokenLimit int
	Tokenizer         *contextmgr.Tokenizer
	SystemPrompt      string
	// Subagents are reachable through the task tool; none disables it.
	Subagents []defaults.Subagent
	Store     SessionStore
	Logger    *zap.Logger

	OnTextChunk  TextChunkFunc
	OnToolCall   ToolCallFunc
	OnToolResult ToolResultFunc
}

// Result 一次 Run 的输出
// Result is what one Run produced in the session workspace.
type Result struct {
	// Report is the content of final_report.md, empty if it was never written.
	Report           string
	AssistantMessage string
	Files            map[string]string
	Todos            []vfs.Todo
	Steps            int
	// Usage sums what the endpoint reported for this Run's model calls.
	Usage provider.Usage
}

type Agent struct {
	provider     provider.Provider
	budget       *contextmgr.Budget
	store        SessionStore
	maxSteps     int
	parallelism  int
	systemPrompt string
	subagents    []defaults.Subagent
	// delegate marks a subagent: no task tool, no todo list of its own.
	delegate bool
	log      *zap.Logger

	onTextChunk  TextChunkFunc
	onToolCall   ToolCallFunc
	onToolResult ToolResultFunc
}

func New(p provider.Provider, opts Options) *Agent {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 64
	}
	prompt := opts.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = defaults.DefaultSystemPrompt
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tok := opts.Tokenizer
	if tok == nil {
		if opts.ContextTokenLimit > 0 && p != nil {
			tok = contextmgr.NewTokenizer(p.Model())
		} else {
			tok = contextmgr.NewHeuristicTokenizer()
		}
	}
	return &Agent{
		provider:     p,
		budget:       contextmgr.NewBudget(opts.ContextTokenLimit, tok),
		store:        opts.Store,
		maxSteps:     maxSteps,
		parallelism:  opts.MaxParallelTools,
		systemPrompt: strings.TrimSpace(prompt),
		subagents:    opts.Subagents,
		log:          log,
		onTextChunk:  opts.OnTextChunk,
		onToolCall:   opts.OnToolCall,
		onToolResult: opts.OnToolResult,
	}
}

// Run 执行一轮研究：追加用户问题，循环调用模型与工具直到模型不再请求工具
// Run appends question to the session and alternates model calls and tool
// dispatch until the model answers without tool calls. The partial Result is
// returned alongside ErrMaxSteps and ErrContextBudget.
func (a *Agent) Run(ctx context.Context, session *Session, question string) (Result, error) {
	if session == nil {
		return Result{}, fmt.Errorf("session is nil")
	}
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("question is empty")
	}
	if a.provider == nil {
		return Result{}, fmt.Errorf("provider unavailable")
	}
	defer session.FS.Flush()

	if session.empty() {
		session.append(chat.Message{Role: chat.RoleSystem, Content: a.systemPrompt})
	}
	session.append(chat.Message{Role: chat.RoleUser, Content: question})

	registry := tools.NewRegistry(
		a.toolset(session),
		tools.WithParallelism(a.parallelism),
		tools.WithLogger(a.log.Named("tools")),
	)
	defs := registry.Definitions()
	log := a.log.With(zap.String("session", session.ID))
	log.Info("run started", zap.Int("max_steps", a.maxSteps), zap.Bool("subagent", a.delegate))

	var (
		lastText string
		usage    provider.Usage
	)
	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return a.result(session, lastText, step-1, usage), err
		}

		messages := session.Messages()
		est, err := a.budget.Check(messages, defs)
		if err != nil {
			log.Warn("context budget exceeded", zap.Int("step", step), zap.Stringer("estimate", est))
			return a.result(session, lastText, step-1, usage), fmt.Errorf("%w: %v", ErrContextBudget, err)
		}

		start := time.Now()
		resp, err := a.provider.Chat(ctx, provider.ChatRequest{
			Model:    a.provider.Model(),
			Messages: messages,
			Tools:    defs,
		}, a.streamCallbacks())
		if err != nil {
			return a.result(session, lastText, step-1, usage), fmt.Errorf("provider chat: %w", err)
		}
		usage = usage.Add(resp.Usage)
		log.Debug("model step",
			zap.Int("step", step),
			zap.Int("tokens", est.Total()),
			zap.Int("tool_call_tokens", est.ToolCalls),
			zap.Int("tool_result_tokens", est.ToolResults),
			zap.Int("tool_calls", len(resp.ToolCalls)),
			zap.String("finish_reason", resp.FinishReason),
			zap.Duration("elapsed", time.Since(start)),
		)

		session.append(chat.Message{Role: chat.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		if strings.TrimSpace(resp.Content) != "" {
			lastText = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			a.persist(session, log)
			log.Info("run finished", zap.Int("steps", step), zap.Int("total_tokens", usage.TotalTokens))
			return a.result(session, lastText, step, usage), nil
		}

		if a.onToolCall != nil {
			for _, call := range resp.ToolCalls {
				a.onToolCall(call)
			}
		}
		results, err := registry.Dispatch(ctx, resp.ToolCalls)
		if err != nil {
			// every tool_call_id needs an answer or the history cannot be resumed
			session.append(abortedResults(resp.ToolCalls, err)...)
			a.persist(session, log)
			return a.result(session, lastText, step, usage), err
		}
		session.append(results...)
		if a.onToolResult != nil {
			for _, msg := range results {
				a.onToolResult(msg)
			}
		}
		a.persist(session, log)
	}

	log.Warn("run stopped at max steps", zap.Int("max_steps", a.maxSteps))
	return a.result(session, lastText, a.maxSteps, usage), fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
}

func abortedResults(calls []chat.ToolCall, cause error) []chat.Message {
	out := make([]chat.Message, 0, len(calls))
	for _, call := range calls {
		out = append(out, chat.Message{
			Role:       chat.RoleTool,
			Name:       call.Function.Name,
			ToolCallID: call.ID,
			Content:    "Error: tool call aborted: " + cause.Error(),
		})
	}
	return out
}

func (a *Agent) streamCallbacks() *provider.StreamCallbacks {
	if a.onTextChunk == nil {
		return nil
	}
	return &provider.StreamCallbacks{OnTextChunk: a.onTextChunk}
}

// persist saves history and workspace; failures are logged, not returned.
func (a *Agent) persist(session *Session, log *zap.Logger) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveMessages(session.ID, session.Messages()); err != nil {
		log.Warn("save messages failed", zap.Error(err))
	}
	if err := a.store.SaveWorkspace(session.ID, session.FS.Store().Snapshot()); err != nil {
		log.Warn("save workspace failed", zap.Error(err))
	}
}

func (a *Agent) result(session *Session, lastText string, steps int, usage provider.Usage) Result {
	snap := session.FS.Store().Snapshot()
	return Result{
		Report:           snap.Files[defaults.ReportFile],
		AssistantMessage: lastText,
		Files:            snap.Files,
		Todos:            snap.Todos,
		Steps:            steps,
		Usage:            usage,
	}
}
