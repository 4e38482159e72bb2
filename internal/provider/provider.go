// Package provider talks to the chat-completions endpoint that drives the
// research loop.
package provider

import (
	"context"

	"deepagents/internal/chat"
)

// ChatRequest is one model call: the conversation so far and the tools the
// model may call.
type ChatRequest struct {
	Model    string
	Messages []chat.Message
	Tools    []chat.ToolDef
}

// StreamCallbacks receive assistant text as it arrives.
type StreamCallbacks struct {
	OnTextChunk func(chunk string)
}

// Usage 服务端报告的 token 用量
// Usage is the token count reported by the endpoint.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

type ChatResponse struct {
	Content      string
	ToolCalls    []chat.ToolCall
	FinishReason string
	Usage        Usage
}

// Provider is the model backend of the research loop.
type Provider interface {
	// Chat returns the complete assistant turn; a non-nil cb streams text.
	Chat(ctx context.Context, req ChatRequest, cb *StreamCallbacks) (ChatResponse, error)
	Model() string
}
