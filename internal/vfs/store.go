package vfs

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Snapshot is an exported, immutable view of a Store used for persistence.
type Snapshot struct {
	Files map[string]string
	Order []string
	Todos []Todo
}

type state struct {
	files map[string]string
	order []string
	todos []Todo
}

// Store 会话级工作区：路径到内容的映射 + 待办列表
// Store holds one session's files and todo list.
//
// Readers load the last installed state without locking. Every mutation runs
// snapshot -> compute -> install under mu, so an update to one path can never
// drop a concurrent update to another.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[state]
}

func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&state{files: map[string]string{}})
	return s
}

// NewStoreFrom restores a store from a snapshot. Paths missing from Order are
// appended in sorted order.
func NewStoreFrom(snap Snapshot) *Store {
	files := make(map[string]string, len(snap.Files))
	for k, v := range snap.Files {
		files[k] = v
	}
	s := &Store{}
	s.cur.Store(&state{
		files: files,
		order: reorder(snap.Order, files),
		todos: cloneTodos(snap.Todos),
	})
	return s
}

func (s *Store) load() *state {
	return s.cur.Load()
}

// File looks up a single path.
func (s *Store) File(path string) (string, bool) {
	content, ok := s.load().files[path]
	return content, ok
}

// Files returns a copy of the current mapping.
func (s *Store) Files() map[string]string {
	st := s.load()
	out := make(map[string]string, len(st.files))
	for k, v := range st.files {
		out[k] = v
	}
	return out
}

// Paths returns the known paths in insertion order.
func (s *Store) Paths() []string {
	return append([]string(nil), s.load().order...)
}

func (s *Store) Todos() []Todo {
	return cloneTodos(s.load().todos)
}

func (s *Store) Snapshot() Snapshot {
	st := s.load()
	files := make(map[string]string, len(st.files))
	for k, v := range st.files {
		files[k] = v
	}
	return Snapshot{
		Files: files,
		Order: append([]string(nil), st.order...),
		Todos: cloneTodos(st.todos),
	}
}

// ReplaceFiles installs files as the whole mapping.
func (s *Store) ReplaceFiles(files map[string]string) {
	_ = s.UpdateFiles(func(current map[string]string) error {
		for k := range current {
			delete(current, k)
		}
		for k, v := range files {
			current[k] = v
		}
		return nil
	})
}

// UpdateFiles runs fn on a private copy of the mapping and installs the
// result atomically. If fn returns an error nothing is installed.
func (s *Store) UpdateFiles(fn func(files map[string]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(fn)
}

func (s *Store) updateLocked(fn func(files map[string]string) error) error {
	prev := s.load()
	next := make(map[string]string, len(prev.files)+1)
	for k, v := range prev.files {
		next[k] = v
	}
	if err := fn(next); err != nil {
		return err
	}
	s.cur.Store(&state{
		files: next,
		order: reorder(prev.order, next),
		todos: prev.todos,
	})
	return nil
}

// ReplaceTodos installs items as the whole todo list. The previous list is discarded.
func (s *Store) ReplaceTodos(items []Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.load()
	s.cur.Store(&state{
		files: prev.files,
		order: prev.order,
		todos: cloneTodos(items),
	})
}

// reorder keeps the surviving entries of prev in place and appends new keys sorted.
func reorder(prev []string, files map[string]string) []string {
	out := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, p := range prev {
		if _, ok := files[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == len(files) {
		return out
	}
	added := make([]string, 0, len(files)-len(out))
	for p := range files {
		if _, ok := seen[p]; !ok {
			added = append(added, p)
		}
	}
	sort.Strings(added)
	return append(out, added...)
}
