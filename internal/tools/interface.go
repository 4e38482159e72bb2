package tools

import (
	"context"
	"encoding/json"

	"deepagents/internal/chat"
)

// Tool is one operation the model can call.
//
// Execute returns the model-readable result. Outcomes the model should react
// to (missing file, ambiguous edit, ...) are part of that text; the error
// return is reserved for malformed arguments and cancellation.
type Tool interface {
	Name() string
	Definition() chat.ToolDef
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}
