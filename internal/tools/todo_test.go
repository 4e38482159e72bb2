package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"deepagents/internal/vfs"

	"github.com/google/go-cmp/cmp"
)

func TestUpdateTodosReplacesList(t *testing.T) {
	fs, r := newWorkspace(t)

	run(t, r, "update_todos", map[string]any{
		"todos": []map[string]any{{"content": "a", "status": "pending"}},
	})
	got := run(t, r, "update_todos", map[string]any{
		"todos": []map[string]any{{"content": "b", "status": "completed"}},
	})
	if got != `Updated todo list to [{"content":"b","status":"completed"}]` {
		t.Fatalf("update_todos = %q", got)
	}
	want := []vfs.Todo{{Content: "b", Status: vfs.StatusCompleted}}
	if diff := cmp.Diff(want, fs.Todos()); diff != "" {
		t.Fatalf("Todos() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateTodosEmptyListClears(t *testing.T) {
	fs, r := newWorkspace(t)
	run(t, r, "update_todos", map[string]any{"todos": []map[string]any{{"content": "a", "status": "pending"}}})
	if got := run(t, r, "update_todos", map[string]any{"todos": []any{}}); got != "Updated todo list to []" {
		t.Fatalf("update_todos = %q", got)
	}
	if len(fs.Todos()) != 0 {
		t.Fatalf("Todos() = %v", fs.Todos())
	}
}

func TestUpdateTodosRejectsUnknownStatus(t *testing.T) {
	fs, r := newWorkspace(t)
	run(t, r, "update_todos", map[string]any{"todos": []map[string]any{{"content": "keep", "status": "in_progress"}}})

	for _, args := range []string{
		`{"todos":[{"content":"x","status":"blocked"}]}`,
		`{"todos":[{"content":"","status":"pending"}]}`,
		`{}`,
	} {
		_, err := r.Execute(context.Background(), "update_todos", json.RawMessage(args))
		if err == nil || !strings.Contains(err.Error(), "invalid arguments for update_todos") {
			t.Fatalf("args %s: err = %v", args, err)
		}
	}
	if diff := cmp.Diff([]vfs.Todo{{Content: "keep", Status: vfs.StatusInProgress}}, fs.Todos()); diff != "" {
		t.Fatalf("list changed:\n%s", diff)
	}
}
