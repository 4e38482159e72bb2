package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"deepagents/internal/chat"
	"deepagents/internal/vfs"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultParallelism = 4

type Registry struct {
	tools       map[string]Tool
	parallelism int
	log         *zap.Logger
}

type RegistryOption func(*Registry)

// WithParallelism bounds how many tool calls of one step run at once.
func WithParallelism(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

func WithLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRegistry(ts []Tool, opts ...RegistryOption) *Registry {
	m := make(map[string]Tool, len(ts))
	for _, t := range ts {
		m[t.Name()] = t
	}
	r := &Registry{tools: m, parallelism: defaultParallelism, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WorkspaceTools returns the five tools that operate on fs.
func WorkspaceTools(fs *vfs.FS) []Tool {
	return []Tool{
		NewListFilesTool(fs),
		NewReadFileTool(fs),
		NewWriteFileTool(fs),
		NewEditFileTool(fs),
		NewUpdateTodosTool(fs),
	}
}

func (r *Registry) Definitions() []chat.ToolDef {
	out := make([]chat.ToolDef, 0, len(r.tools))
	for _, name := range r.Names() {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.Execute(ctx, args)
}

// Dispatch executes the tool calls of one model step concurrently and
// returns one tool message per call, in call order. Failed calls become
// "Error: ..." messages; only cancellation aborts the batch.
func (r *Registry) Dispatch(ctx context.Context, calls []chat.ToolCall) ([]chat.Message, error) {
	out := make([]chat.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			start := time.Now()
			result, err := r.Execute(gctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				result = "Error: " + err.Error()
			}
			r.log.Debug("tool call",
				zap.String("tool", call.Function.Name),
				zap.String("call_id", call.ID),
				zap.Duration("elapsed", time.Since(start)),
				zap.Bool("failed", err != nil),
			)
			out[i] = chat.Message{
				Role:       chat.RoleTool,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
				Content:    result,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
