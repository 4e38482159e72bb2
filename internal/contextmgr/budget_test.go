package contextmgr

import (
	"errors"
	"strings"
	"testing"

	"deepagents/internal/chat"
)

func TestBudget_Check(t *testing.T) {
	b := NewBudget(50, NewHeuristicTokenizer())
	small := []chat.Message{{Role: chat.RoleUser, Content: "what is raft?"}}
	used, err := b.Check(small, nil)
	if err != nil {
		t.Fatalf("small request rejected: %v (used=%s)", err, used)
	}

	big := []chat.Message{{Role: chat.RoleTool, Content: strings.Repeat("word ", 400)}}
	used, err = b.Check(big, nil)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err=%v, want ErrBudgetExceeded (used=%s)", err, used)
	}
	if !strings.Contains(err.Error(), "tool results") {
		t.Fatalf("error lacks breakdown: %v", err)
	}
}

func TestBudget_AttributesResearchTraffic(t *testing.T) {
	b := NewBudget(0, NewHeuristicTokenizer())
	report := strings.Repeat("Raft elects a leader per term. ", 200)
	u := b.Estimate([]chat.Message{
		{Role: chat.RoleSystem, Content: "You are a researcher."},
		{Role: chat.RoleUser, Content: "what is raft?"},
		{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{
			ID:       "call_1",
			Function: chat.ToolCallFunction{Name: "write_file", Arguments: `{"file_path":"final_report.md","content":"` + report + `"}`},
		}}},
		{Role: chat.RoleTool, Name: "write_file", ToolCallID: "call_1", Content: "Updated file final_report.md"},
		{Role: chat.RoleTool, Name: "read_file", ToolCallID: "call_2", Content: report},
	}, nil)

	if u.ToolCalls <= u.Messages {
		t.Fatalf("write_file payload not attributed to tool calls: %s", u)
	}
	if u.ToolResults <= u.Messages {
		t.Fatalf("read_file output not attributed to tool results: %s", u)
	}
	if u.ToolDefs != 0 {
		t.Fatalf("ToolDefs=%d without tools", u.ToolDefs)
	}
	if u.Total() != u.Messages+u.ToolCalls+u.ToolResults {
		t.Fatalf("Total=%d does not add up: %s", u.Total(), u)
	}
}

func TestBudget_CountsToolDefinitions(t *testing.T) {
	b := NewBudget(0, NewHeuristicTokenizer())
	msgs := []chat.Message{{Role: chat.RoleUser, Content: "hi"}}
	u := b.Estimate(msgs, []chat.ToolDef{{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        "edit_file",
			Description: "Replace an exact string in a workspace file.",
			Parameters:  map[string]any{"type": "object"},
		},
	}})
	if u.ToolDefs == 0 {
		t.Fatalf("tool defs not counted: %s", u)
	}
}

func TestBudget_ZeroLimitDisablesCheck(t *testing.T) {
	b := NewBudget(0, nil)
	big := []chat.Message{{Role: chat.RoleUser, Content: strings.Repeat("x", 100000)}}
	if _, err := b.Check(big, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
