package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"deepagents/internal/chat"
	"deepagents/internal/contextmgr"
	"deepagents/internal/provider"
	"deepagents/internal/vfs"

	"github.com/google/go-cmp/cmp"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []provider.ChatResponse
	err       error
	requests  []provider.ChatRequest
	// onChat runs before each response is returned.
	onChat func()
}

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest, cb *provider.StreamCallbacks) (provider.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.onChat != nil {
		p.onChat()
	}
	if p.err != nil {
		return provider.ChatResponse{}, p.err
	}
	if len(p.responses) == 0 {
		return provider.ChatResponse{Content: "done"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	if cb != nil && cb.OnTextChunk != nil && resp.Content != "" {
		cb.OnTextChunk(resp.Content)
	}
	return resp, nil
}

func (p *scriptedProvider) Model() string { return "test-model" }

type memStore struct {
	mu        sync.Mutex
	messages  map[string][]chat.Message
	snapshots map[string]vfs.Snapshot
	saves     int
}

func newMemStore() *memStore {
	return &memStore{messages: map[string][]chat.Message{}, snapshots: map[string]vfs.Snapshot{}}
}

func (s *memStore) SaveMessages(id string, msgs []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[id] = msgs
	s.saves++
	return nil
}

func (s *memStore) SaveWorkspace(id string, snap vfs.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[id] = snap
	return nil
}

func toolCall(id, name string, args map[string]any) chat.ToolCall {
	data, _ := json.Marshal(args)
	return chat.ToolCall{ID: id, Type: "function", Function: chat.ToolCallFunction{Name: name, Arguments: string(data)}}
}

func newTestSession() *Session {
	return NewSession("sess_test", vfs.New(vfs.NewStore()), nil)
}

func TestRunWritesReport(t *testing.T) {
	p := &scriptedProvider{responses: []provider.ChatResponse{
		{ToolCalls: []chat.ToolCall{
			toolCall("c1", "write_file", map[string]any{"file_path": "question.txt", "content": "what is raft?"}),
			toolCall("c2", "update_todos", map[string]any{"todos": []map[string]string{
				{"content": "research raft", "status": "in_progress"},
				{"content": "write report", "status": "pending"},
			}}),
		}},
		{ToolCalls: []chat.ToolCall{
			toolCall("c3", "write_file", map[string]any{"file_path": "final_report.md", "content": "# Raft\n\nConsensus.\n"}),
		}},
		{ToolCalls: []chat.ToolCall{
			toolCall("c4", "edit_file", map[string]any{"file_path": "final_report.md", "old_string": "Consensus.", "new_string": "A consensus algorithm."}),
		}},
		{Content: "The report is in final_report.md.", Usage: provider.Usage{PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48}},
	}}
	store := newMemStore()
	var streamed strings.Builder
	a := New(p, Options{MaxSteps: 10, Store: store, OnTextChunk: func(s string) { streamed.WriteString(s) }})
	session := newTestSession()

	res, err := a.Run(context.Background(), session, "what is raft?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Steps != 4 {
		t.Fatalf("Steps=%d, want 4", res.Steps)
	}
	if res.Report != "# Raft\n\nA consensus algorithm.\n" {
		t.Fatalf("Report=%q", res.Report)
	}
	if res.AssistantMessage != "The report is in final_report.md." || streamed.String() != res.AssistantMessage {
		t.Fatalf("AssistantMessage=%q streamed=%q", res.AssistantMessage, streamed.String())
	}
	wantTodos := []vfs.Todo{
		{Content: "research raft", Status: vfs.StatusInProgress},
		{Content: "write report", Status: vfs.StatusPending},
	}
	if diff := cmp.Diff(wantTodos, res.Todos); diff != "" {
		t.Fatalf("todos mismatch (-want +got):\n%s", diff)
	}
	if res.Usage.TotalTokens != 48 {
		t.Fatalf("Usage=%+v", res.Usage)
	}
	if len(res.Files) != 2 {
		t.Fatalf("Files=%v", res.Files)
	}

	msgs := session.Messages()
	if msgs[0].Role != chat.RoleSystem || msgs[1].Role != chat.RoleUser {
		t.Fatalf("unexpected head: %+v", msgs[:2])
	}
	// system, user, 3 x (assistant + tool results), final assistant
	if len(msgs) != 10 {
		t.Fatalf("len(messages)=%d", len(msgs))
	}
	if msgs[3].ToolCallID != "c1" || msgs[4].ToolCallID != "c2" {
		t.Fatalf("tool results out of call order: %+v %+v", msgs[3], msgs[4])
	}
	if msgs[4].Content != `Updated todo list to [{"content":"research raft","status":"in_progress"},{"content":"write report","status":"pending"}]` {
		t.Fatalf("todo record=%q", msgs[4].Content)
	}

	if store.saves != 4 {
		t.Fatalf("saves=%d, want one per step", store.saves)
	}
	if got := store.snapshots["sess_test"].Files["final_report.md"]; got != res.Report {
		t.Fatalf("persisted report=%q", got)
	}
	if len(p.requests[0].Tools) != 5 {
		t.Fatalf("tools offered=%d, want 5", len(p.requests[0].Tools))
	}
}

func TestRunToolErrorsFeedBack(t *testing.T) {
	p := &scriptedProvider{responses: []provider.ChatResponse{
		{ToolCalls: []chat.ToolCall{
			toolCall("c1", "read_file", map[string]any{"file_path": "missing.md"}),
			toolCall("c2", "web_search", map[string]any{"q": "x"}),
		}},
		{Content: "giving up"},
	}}
	a := New(p, Options{MaxSteps: 5})
	session := newTestSession()
	if _, err := a.Run(context.Background(), session, "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := session.Messages()
	if msgs[3].Content != "Error: File 'missing.md' not found" {
		t.Fatalf("read result=%q", msgs[3].Content)
	}
	if msgs[4].Content != "Error: unknown tool: web_search" {
		t.Fatalf("unknown tool result=%q", msgs[4].Content)
	}
	// The second request must carry both tool results.
	if n := len(p.requests[1].Messages); n != 5 {
		t.Fatalf("second request messages=%d, want 5", n)
	}
}

func TestRunMaxSteps(t *testing.T) {
	loop := provider.ChatResponse{ToolCalls: []chat.ToolCall{toolCall("c", "list_files", nil)}}
	p := &scriptedProvider{responses: []provider.ChatResponse{loop, loop, loop, loop}}
	a := New(p, Options{MaxSteps: 3})
	res, err := a.Run(context.Background(), newTestSession(), "q")
	if !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("err=%v, want ErrMaxSteps", err)
	}
	if res.Steps != 3 {
		t.Fatalf("Steps=%d", res.Steps)
	}
}

func TestRunContextBudget(t *testing.T) {
	p := &scriptedProvider{}
	a := New(p, Options{ContextTokenLimit: 10, Tokenizer: contextmgr.NewHeuristicTokenizer()})
	_, err := a.Run(context.Background(), newTestSession(), strings.Repeat("long question ", 50))
	if !errors.Is(err, ErrContextBudget) {
		t.Fatalf("err=%v, want ErrContextBudget", err)
	}
	if len(p.requests) != 0 {
		t.Fatalf("provider called despite budget")
	}
}

func TestRunProviderError(t *testing.T) {
	boom := errors.New("boom")
	a := New(&scriptedProvider{err: boom}, Options{})
	_, err := a.Run(context.Background(), newTestSession(), "q")
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapped boom", err)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&scriptedProvider{}, Options{}).Run(ctx, newTestSession(), "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestRunCanceledDuringToolsLeavesResumableHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &scriptedProvider{
		onChat: cancel,
		responses: []provider.ChatResponse{{ToolCalls: []chat.ToolCall{
			toolCall("c1", "list_files", nil),
			toolCall("c2", "read_file", map[string]any{"file_path": "a.md"}),
		}}},
	}
	store := newMemStore()
	_, err := New(p, Options{Store: store}).Run(ctx, newTestSession(), "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}

	saved := store.messages["sess_test"]
	answered := map[string]bool{}
	for _, m := range saved {
		if m.Role == chat.RoleTool {
			answered[m.ToolCallID] = true
			if !strings.HasPrefix(m.Content, "Error: tool call aborted") {
				t.Fatalf("tool message %q", m.Content)
			}
		}
	}
	for _, m := range saved {
		for _, c := range m.ToolCalls {
			if !answered[c.ID] {
				t.Fatalf("persisted history leaves tool call %q unanswered", c.ID)
			}
		}
	}
	if last := saved[len(saved)-1]; last.Role != chat.RoleTool || last.ToolCallID != "c2" {
		t.Fatalf("last persisted message = %+v", last)
	}
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	if _, err := New(&scriptedProvider{}, Options{}).Run(context.Background(), newTestSession(), "  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestSystemPromptOncePerSession(t *testing.T) {
	p := &scriptedProvider{}
	a := New(p, Options{SystemPrompt: "be brief"})
	session := newTestSession()
	for _, q := range []string{"first", "second"} {
		if _, err := a.Run(context.Background(), session, q); err != nil {
			t.Fatalf("Run(%q): %v", q, err)
		}
	}
	systems := 0
	for _, m := range session.Messages() {
		if m.Role == chat.RoleSystem {
			systems++
			if m.Content != "be brief" {
				t.Fatalf("system prompt=%q", m.Content)
			}
		}
	}
	if systems != 1 {
		t.Fatalf("system messages=%d, want 1", systems)
	}
}

func TestRunCallbacks(t *testing.T) {
	p := &scriptedProvider{responses: []provider.ChatResponse{
		{ToolCalls: []chat.ToolCall{toolCall("c1", "write_file", map[string]any{"file_path": "a.md", "content": "x"})}},
		{Content: "ok"},
	}}
	var calls, results []string
	a := New(p, Options{
		OnToolCall:   func(c chat.ToolCall) { calls = append(calls, c.Function.Name) },
		OnToolResult: func(m chat.Message) { results = append(results, m.Content) },
	})
	if _, err := a.Run(context.Background(), newTestSession(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"write_file"}, calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Updated file a.md"}, results); diff != "" {
		t.Fatalf("results (-want +got):\n%s", diff)
	}
}
