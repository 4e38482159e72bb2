// Package contextmgr estimates how much of the model's context window a
// research request uses.
package contextmgr

import (
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const (
	fallbackEncoding = "cl100k_base"

	// per-message framing (role, separators) in the chat format
	messageOverhead = 4
	// per tool call framing (id, type, function wrapper)
	toolCallOverhead = 8
)

// Tokenizer 计算文本的 token 数；BPE 数据不可用时退化为估算
// Tokenizer counts tokens with the model's tiktoken encoding, or estimates
// them when the BPE data cannot be loaded (offline machines).
type Tokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTokenizer picks the encoding tiktoken associates with model and falls
// back to cl100k_base for models it does not know.
func NewTokenizer(model string) *Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		return NewHeuristicTokenizer()
	}
	return &Tokenizer{enc: enc}
}

// NewHeuristicTokenizer never loads BPE data.
func NewHeuristicTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Precise reports whether counts come from a real encoding.
func (t *Tokenizer) Precise() bool {
	return t.enc != nil
}

// Text counts the tokens of s.
func (t *Tokenizer) Text(s string) int {
	if s == "" {
		return 0
	}
	if t.enc == nil {
		return estimate(s)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.EncodeOrdinary(s))
}

// estimate assumes about four bytes per token for ASCII text and one token
// per rune elsewhere, which overshoots for most scripts.
func estimate(s string) int {
	ascii, other := 0, 0
	for i := 0; i < len(s); {
		if s[i] < utf8.RuneSelf {
			ascii++
			i++
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		other++
		i += size
	}
	n := (ascii+3)/4 + other
	if n < 1 {
		n = 1
	}
	return n
}
