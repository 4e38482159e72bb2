package agent

import (
	"context"
	"fmt"

	"deepagents/internal/defaults"
	"deepagents/internal/tools"

	"go.uber.org/zap"
)

// toolset returns the tools the model sees in session. Subagents share the
// workspace files but not the todo list, and cannot delegate further.
func (a *Agent) toolset(session *Session) []tools.Tool {
	ws := tools.WorkspaceTools(session.FS)
	if a.delegate {
		out := ws[:0]
		for _, t := range ws {
			if _, ok := t.(*tools.UpdateTodosTool); !ok {
				out = append(out, t)
			}
		}
		return out
	}
	if len(a.subagents) == 0 {
		return ws
	}
	infos := make([]tools.Subagent, 0, len(a.subagents))
	for _, s := range a.subagents {
		infos = append(infos, tools.Subagent{Name: s.Name, Description: s.Description})
	}
	runner := func(ctx context.Context, name, objective string) (string, error) {
		return a.runSubtask(ctx, session, name, objective)
	}
	return append(ws, tools.NewTaskTool(runner, infos))
}

// runSubtask runs objective as a fresh conversation with the subagent's
// prompt on a child session over the parent's workspace. The child is not
// persisted; its file writes land in the parent workspace.
func (a *Agent) runSubtask(ctx context.Context, parent *Session, name, objective string) (string, error) {
	profile, ok := a.subagent(name)
	if !ok {
		return "", fmt.Errorf("unknown subagent %q", name)
	}
	child := &Agent{
		provider:     a.provider,
		budget:       a.budget,
		maxSteps:     a.maxSteps,
		parallelism:  a.parallelism,
		systemPrompt: profile.Prompt,
		delegate:     true,
		log:          a.log.Named("subagent").With(zap.String("agent", name)),
	}
	session := NewSession(parent.ID+"/"+name, parent.FS, nil)
	res, err := child.Run(ctx, session, objective)
	if err != nil {
		return "", err
	}
	return res.AssistantMessage, nil
}

func (a *Agent) subagent(name string) (defaults.Subagent, bool) {
	for _, s := range a.subagents {
		if s.Name == name {
			return s, true
		}
	}
	return defaults.Subagent{}, false
}
