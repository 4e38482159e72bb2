package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"deepagents/internal/chat"
	"deepagents/internal/vfs"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SessionCRUD(t *testing.T) {
	store := newTestStore(t)

	meta := SessionMeta{
		ID:    "sess_test_001",
		Title: "test session",
		Model: "gpt-4o-mini",
		CWD:   "/tmp",
	}

	// Create
	if err := store.CreateSession(meta); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Load
	loaded, err := store.LoadSession("sess_test_001")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if loaded.Title != "test session" {
		t.Fatalf("Title=%q, want %q", loaded.Title, "test session")
	}
	if loaded.CreatedAt == "" || loaded.UpdatedAt == "" {
		t.Fatalf("timestamps not filled: %+v", loaded)
	}

	// Update
	meta.Title = "updated title"
	if err := store.SaveSession(meta); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	loaded2, _ := store.LoadSession("sess_test_001")
	if loaded2.Title != "updated title" {
		t.Fatalf("Title=%q after update, want %q", loaded2.Title, "updated title")
	}

	// List
	metas, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("ListSessions count=%d, want 1", len(metas))
	}
}

func TestSQLiteStore_LoadMissingSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadSession("sess_missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err=%v, want ErrSessionNotFound", err)
	}
	if err := store.SaveSession(SessionMeta{ID: "sess_missing"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("SaveSession err=%v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteStore_Messages(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSession(SessionMeta{ID: "sess_msg_001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	messages := []chat.Message{
		{Role: chat.RoleSystem, Content: "you are a researcher"},
		{Role: chat.RoleUser, Content: "hello"},
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: chat.ToolCallFunction{Name: "write_file", Arguments: `{"file_path":"a.md","content":"x"}`},
			}},
		},
		{Role: chat.RoleTool, Name: "write_file", ToolCallID: "call_1", Content: "Updated file a.md"},
		{Role: chat.RoleAssistant, Content: "done"},
	}
	if err := store.SaveMessages("sess_msg_001", messages); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	loaded, err := store.LoadMessages("sess_msg_001")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if diff := cmp.Diff(messages, loaded); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	// Overwrite with fewer messages
	if err := store.SaveMessages("sess_msg_001", messages[:2]); err != nil {
		t.Fatalf("SaveMessages overwrite: %v", err)
	}
	loaded, _ = store.LoadMessages("sess_msg_001")
	if len(loaded) != 2 {
		t.Fatalf("after overwrite len=%d, want 2", len(loaded))
	}
}

func TestSQLiteStore_WorkspaceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateSession(SessionMeta{ID: "sess_ws"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	snap := vfs.Snapshot{
		Files: map[string]string{
			"question.txt":    "what is raft?",
			"final_report.md": "# Raft\n",
			"notes/a.md":      "",
		},
		Order: []string{"question.txt", "notes/a.md", "final_report.md"},
		Todos: []vfs.Todo{
			{Content: "search", Status: vfs.StatusCompleted},
			{Content: "write report", Status: vfs.StatusInProgress},
		},
	}
	if err := store.SaveWorkspace("sess_ws", snap); err != nil {
		t.Fatalf("SaveWorkspace: %v", err)
	}

	loaded, err := store.LoadWorkspace("sess_ws")
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if diff := cmp.Diff(snap, loaded); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces instead of merging.
	if err := store.SaveWorkspace("sess_ws", vfs.Snapshot{Files: map[string]string{"x": "1"}, Order: []string{"x"}}); err != nil {
		t.Fatalf("SaveWorkspace replace: %v", err)
	}
	loaded, _ = store.LoadWorkspace("sess_ws")
	if len(loaded.Files) != 1 || len(loaded.Todos) != 0 {
		t.Fatalf("replace left stale rows: %+v", loaded)
	}
}

func TestSQLiteStore_EmptyWorkspace(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.LoadWorkspace("sess_none")
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if len(loaded.Files) != 0 || len(loaded.Order) != 0 || len(loaded.Todos) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", loaded)
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	store1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store1.CreateSession(SessionMeta{ID: "sess_p", Title: "persist"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store1.Mirror("sess_p").Write("report.md", []byte("hello")); err != nil {
		t.Fatalf("mirror write: %v", err)
	}
	_ = store1.Close()

	store2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store2.Close()

	meta, err := store2.LoadSession("sess_p")
	if err != nil {
		t.Fatalf("LoadSession after reopen: %v", err)
	}
	if meta.Title != "persist" {
		t.Fatalf("Title=%q, want persist", meta.Title)
	}
	data, err := store2.Mirror("sess_p").Read("report.md")
	if err != nil || string(data) != "hello" {
		t.Fatalf("mirror after reopen = %q, %v", data, err)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
