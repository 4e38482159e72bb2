package contextmgr

import (
	"encoding/json"
	"errors"
	"fmt"

	"deepagents/internal/chat"
)

// ErrBudgetExceeded reports that a request would not fit the context window.
var ErrBudgetExceeded = errors.New("context budget exceeded")

// Usage 按来源拆分的请求 token 估算
// Usage splits a request estimate by where the tokens come from. In a
// research session ToolCalls grows with write_file/edit_file payloads and
// ToolResults with read_file output.
type Usage struct {
	Messages    int // system, user and assistant text
	ToolCalls   int // arguments the model sent
	ToolResults int // tool messages fed back to the model
	ToolDefs    int
}

func (u Usage) Total() int {
	return u.Messages + u.ToolCalls + u.ToolResults + u.ToolDefs
}

func (u Usage) String() string {
	return fmt.Sprintf("%d tokens (messages %d, tool calls %d, tool results %d, tool defs %d)",
		u.Total(), u.Messages, u.ToolCalls, u.ToolResults, u.ToolDefs)
}

// Budget checks outgoing requests against a token limit.
type Budget struct {
	Limit     int
	Tokenizer *Tokenizer
}

func NewBudget(limit int, tok *Tokenizer) *Budget {
	if tok == nil {
		tok = NewHeuristicTokenizer()
	}
	return &Budget{Limit: limit, Tokenizer: tok}
}

func (b *Budget) Estimate(messages []chat.Message, tools []chat.ToolDef) Usage {
	var u Usage
	for _, msg := range messages {
		n := messageOverhead + b.Tokenizer.Text(msg.Role) + b.Tokenizer.Text(msg.Content)
		if msg.Role == chat.RoleTool {
			u.ToolResults += n + b.Tokenizer.Text(msg.Name) + b.Tokenizer.Text(msg.ToolCallID)
			continue
		}
		u.Messages += n
		for _, call := range msg.ToolCalls {
			u.ToolCalls += toolCallOverhead +
				b.Tokenizer.Text(call.ID) +
				b.Tokenizer.Text(call.Function.Name) +
				b.Tokenizer.Text(call.Function.Arguments)
		}
	}
	if len(tools) > 0 {
		if data, err := json.Marshal(tools); err == nil {
			u.ToolDefs = b.Tokenizer.Text(string(data))
		}
	}
	return u
}

// Check returns the estimate, and ErrBudgetExceeded when its total is over
// Limit. A non-positive Limit disables the check.
func (b *Budget) Check(messages []chat.Message, tools []chat.ToolDef) (Usage, error) {
	u := b.Estimate(messages, tools)
	if b.Limit > 0 && u.Total() > b.Limit {
		return u, fmt.Errorf("%w: %s > limit %d", ErrBudgetExceeded, u, b.Limit)
	}
	return u, nil
}
