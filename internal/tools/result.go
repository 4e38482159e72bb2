package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"deepagents/internal/vfs"
)

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("Error: marshal result: %s", err.Error())
	}
	return string(data)
}

func decodeArgs(tool string, args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", tool, err)
	}
	return nil
}

// fromWorkspaceErr turns a workspace error into the text the model sees.
// Invalid input stays a Go error so the registry reports it as a bad call.
func fromWorkspaceErr(tool string, err error) (string, error) {
	if errors.Is(err, vfs.ErrInvalidInput) {
		return "", fmt.Errorf("invalid arguments for %s: %w", tool, err)
	}
	return describeError(err), nil
}

func describeError(err error) string {
	var (
		notFound  *vfs.NotFoundError
		offset    *vfs.OffsetError
		missing   *vfs.StringNotFoundError
		ambiguous *vfs.AmbiguousMatchError
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("Error: File '%s' not found", notFound.Path)
	case errors.As(err, &offset):
		return fmt.Sprintf("Error: Line offset %d exceeds file length (%d lines)", offset.Offset, offset.Lines)
	case errors.As(err, &missing):
		return fmt.Sprintf("Error: String not found in file: '%s'", missing.Needle)
	case errors.As(err, &ambiguous):
		return fmt.Sprintf("Error: String '%s' appears %d times in file. Use replace_all=true to replace all instances, or provide a more specific string with surrounding context.", ambiguous.Needle, ambiguous.Count)
	default:
		return "Error: " + err.Error()
	}
}

func requireString(tool, field string, v *string) error {
	if v == nil {
		return fmt.Errorf("invalid arguments for %s: %s is required", tool, field)
	}
	return nil
}
