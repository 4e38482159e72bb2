package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"deepagents/internal/chat"
	"deepagents/internal/vfs"
)

type ListFilesTool struct {
	fs *vfs.FS
}

func NewListFilesTool(fs *vfs.FS) *ListFilesTool {
	return &ListFilesTool{fs: fs}
}

func (t *ListFilesTool) Name() string {
	return "list_files"
}

func (t *ListFilesTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "List all files in the research workspace.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func (t *ListFilesTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	paths := t.fs.List()
	if paths == nil {
		paths = []string{}
	}
	return mustJSON(paths), nil
}

type ReadFileTool struct {
	fs *vfs.FS
}

func NewReadFileTool(fs *vfs.FS) *ReadFileTool {
	return &ReadFileTool{fs: fs}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Read a file from the workspace (falling back to the working directory on disk). " +
				"Output uses cat -n format: each line is prefixed by its 1-based line number. " +
				"Lines longer than 2000 characters are truncated.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{"type": "string"},
					"offset": map[string]any{
						"type":        "integer",
						"description": "0-based line to start reading from. Defaults to 0.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of lines to read. Defaults to 2000.",
					},
				},
				"required": []string{"file_path"},
			},
		},
	}
}

func (t *ReadFileTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		FilePath string `json:"file_path"`
		Offset   *int   `json:"offset"`
		Limit    *int   `json:"limit"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return "", err
	}
	offset, limit := 0, vfs.DefaultReadLimit
	if in.Offset != nil {
		offset = *in.Offset
	}
	if in.Limit != nil {
		limit = *in.Limit
	}
	out, err := t.fs.Read(in.FilePath, offset, limit)
	if err != nil {
		return fromWorkspaceErr(t.Name(), err)
	}
	return out, nil
}

type WriteFileTool struct {
	fs *vfs.FS
}

func NewWriteFileTool(fs *vfs.FS) *WriteFileTool {
	return &WriteFileTool{fs: fs}
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Write content to a file in the workspace, creating or replacing it. The file is also saved to disk when possible.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{"type": "string"},
					"content":   map[string]any{"type": "string"},
				},
				"required": []string{"file_path", "content"},
			},
		},
	}
}

func (t *WriteFileTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		FilePath string  `json:"file_path"`
		Content  *string `json:"content"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return "", err
	}
	if err := requireString(t.Name(), "content", in.Content); err != nil {
		return "", err
	}
	if err := t.fs.Write(in.FilePath, *in.Content); err != nil {
		return fromWorkspaceErr(t.Name(), err)
	}
	return fmt.Sprintf("Updated file %s", in.FilePath), nil
}

// EditFileTool replaces an exact substring. Ambiguous matches are refused
// rather than guessed, since the caller cannot inspect the resulting diff.
type EditFileTool struct {
	fs *vfs.FS
}

func NewEditFileTool(fs *vfs.FS) *EditFileTool {
	return &EditFileTool{fs: fs}
}

func (t *EditFileTool) Name() string {
	return "edit_file"
}

func (t *EditFileTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Replace an exact string in a workspace file. old_string must match exactly once " +
				"unless replace_all is true; include surrounding context to make it unique.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path":   map[string]any{"type": "string"},
					"old_string":  map[string]any{"type": "string"},
					"new_string":  map[string]any{"type": "string"},
					"replace_all": map[string]any{"type": "boolean", "description": "Replace every occurrence. Defaults to false."},
				},
				"required": []string{"file_path", "old_string", "new_string"},
			},
		},
	}
}

func (t *EditFileTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		FilePath   string  `json:"file_path"`
		OldString  string  `json:"old_string"`
		NewString  *string `json:"new_string"`
		ReplaceAll bool    `json:"replace_all"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return "", err
	}
	if err := requireString(t.Name(), "new_string", in.NewString); err != nil {
		return "", err
	}
	n, err := t.fs.Edit(in.FilePath, in.OldString, *in.NewString, in.ReplaceAll)
	if err != nil {
		return fromWorkspaceErr(t.Name(), err)
	}
	if in.ReplaceAll {
		return fmt.Sprintf("Successfully replaced %d instance(s) of the string in '%s'", n, in.FilePath), nil
	}
	return fmt.Sprintf("Successfully replaced string in '%s'", in.FilePath), nil
}
