package vfs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status 待办状态，仅允许三种取值
// Status is the closed set of todo states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus normalizes s and rejects anything outside the three known states.
// An empty status means pending.
func ParseStatus(s string) (Status, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "":
		return StatusPending, nil
	case string(StatusPending), string(StatusInProgress), string(StatusCompleted):
		return Status(v), nil
	default:
		return "", invalidInput("unknown todo status %q (want pending, in_progress or completed)", s)
	}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("todo status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Todo 一条计划中的工作
// Todo is one unit of planned work. Order within a list is execution order.
type Todo struct {
	Content string `json:"content"`
	Status  Status `json:"status"`
}

func (t Todo) validate() error {
	if strings.TrimSpace(t.Content) == "" {
		return invalidInput("todo content must not be empty")
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	return nil
}

func cloneTodos(items []Todo) []Todo {
	if items == nil {
		return nil
	}
	return append([]Todo(nil), items...)
}
