package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"deepagents/internal/chat"
)

// TaskRunner runs objective with the named subagent and returns its final
// answer.
type TaskRunner func(ctx context.Context, agent, objective string) (string, error)

// Subagent describes a delegate the model may hand a task to.
type Subagent struct {
	Name        string
	Description string
}

// TaskTool 把聚焦的子任务交给子代理，子代理与调用方共享工作区
// TaskTool hands a focused objective to a subagent that works in the same
// workspace and returns its answer as the tool result.
type TaskTool struct {
	runner TaskRunner
	agents []Subagent
}

func NewTaskTool(runner TaskRunner, agents []Subagent) *TaskTool {
	return &TaskTool{runner: runner, agents: agents}
}

func (t *TaskTool) Name() string {
	return "task"
}

func (t *TaskTool) Definition() chat.ToolDef {
	names := make([]string, 0, len(t.agents))
	var desc strings.Builder
	desc.WriteString("Launch a subagent on one focused objective. It shares your workspace files and returns its final answer. Independent tasks may be issued in parallel.\nAvailable agents:")
	for _, a := range t.agents {
		names = append(names, a.Name)
		fmt.Fprintf(&desc, "\n- %s: %s", a.Name, a.Description)
	}
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: desc.String(),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": map[string]any{
						"type": "string",
						"enum": names,
					},
					"objective": map[string]any{
						"type":        "string",
						"description": "Self-contained instructions; the subagent does not see this conversation.",
					},
				},
				"required": []string{"agent", "objective"},
			},
		},
	}
}

func (t *TaskTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Agent     string `json:"agent"`
		Objective string `json:"objective"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return "", err
	}
	agent := strings.TrimSpace(in.Agent)
	objective := strings.TrimSpace(in.Objective)
	if agent == "" || objective == "" {
		return "", fmt.Errorf("invalid arguments for %s: agent and objective are required", t.Name())
	}
	if !t.known(agent) {
		return "", fmt.Errorf("unknown subagent %q (available: %s)", agent, strings.Join(t.names(), ", "))
	}

	answer, err := t.runner(ctx, agent, objective)
	if err != nil {
		return "", fmt.Errorf("subagent %s failed: %w", agent, err)
	}
	if strings.TrimSpace(answer) == "" {
		return fmt.Sprintf("Subagent %s finished with no text output", agent), nil
	}
	return answer, nil
}

func (t *TaskTool) known(name string) bool {
	for _, a := range t.agents {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (t *TaskTool) names() []string {
	out := make([]string, 0, len(t.agents))
	for _, a := range t.agents {
		out = append(out, a.Name)
	}
	return out
}
