package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"deepagents/internal/chat"
	"deepagents/internal/vfs"
)

type UpdateTodosTool struct {
	fs *vfs.FS
}

func NewUpdateTodosTool(fs *vfs.FS) *UpdateTodosTool {
	return &UpdateTodosTool{fs: fs}
}

func (t *UpdateTodosTool) Name() string {
	return "update_todos"
}

func (t *UpdateTodosTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Replace the research plan with the full, ordered todo list. " +
				"Always send every item with its latest status; the previous list is discarded.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"todos": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"content": map[string]any{"type": "string"},
								"status": map[string]any{
									"type": "string",
									"enum": []string{string(vfs.StatusPending), string(vfs.StatusInProgress), string(vfs.StatusCompleted)},
								},
							},
							"required": []string{"content", "status"},
						},
					},
				},
				"required": []string{"todos"},
			},
		},
	}
}

func (t *UpdateTodosTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Todos *[]vfs.Todo `json:"todos"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return "", err
	}
	if in.Todos == nil {
		return "", fmt.Errorf("invalid arguments for %s: todos is required", t.Name())
	}
	if err := t.fs.UpdateTodos(*in.Todos); err != nil {
		return fromWorkspaceErr(t.Name(), err)
	}
	items := t.fs.Todos()
	if items == nil {
		items = []vfs.Todo{}
	}
	return fmt.Sprintf("Updated todo list to %s", mustJSON(items)), nil
}
