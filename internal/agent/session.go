package agent

import (
	"sync"

	"deepagents/internal/chat"
	"deepagents/internal/vfs"
)

// SessionStore persists a session after every step. *storage.SQLiteStore
// satisfies it.
type SessionStore interface {
	SaveMessages(sessionID string, messages []chat.Message) error
	SaveWorkspace(sessionID string, snap vfs.Snapshot) error
}

// Session 一次研究会话：工作区与对话历史
// Session couples a workspace with its conversation history. Run must not be
// called concurrently on the same Session.
type Session struct {
	ID string
	FS *vfs.FS

	mu       sync.Mutex
	messages []chat.Message
}

func NewSession(id string, fs *vfs.FS, history []chat.Message) *Session {
	if fs == nil {
		fs = vfs.New(vfs.NewStore())
	}
	return &Session{
		ID:       id,
		FS:       fs,
		messages: append([]chat.Message(nil), history...),
	}
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.messages...)
}

func (s *Session) append(msgs ...chat.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msgs...)
	s.mu.Unlock()
}

func (s *Session) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) == 0
}
