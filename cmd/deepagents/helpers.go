package main

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"deepagents/internal/defaults"
	"deepagents/internal/tui"
)

const reportPath = defaults.ReportFile

// summarizeArgs renders a short human form of tool-call arguments.
func summarizeArgs(raw string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return truncate(strings.TrimSpace(raw), 60)
	}
	if p, ok := args["file_path"].(string); ok {
		return p
	}
	if todos, ok := args["todos"].([]any); ok {
		return fmt.Sprintf("(%d items)", len(todos))
	}
	return ""
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// renderFile pretty-prints markdown files unless raw is set.
func renderFile(name, content string, raw bool) string {
	if raw {
		return content
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return tui.RenderMarkdown(content, 100)
	}
	return content
}
