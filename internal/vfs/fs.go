package vfs

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultReadLimit = 2000
	MaxLineRunes     = 2000

	// EmptyFileReminder is what Read returns for an empty or whitespace-only file.
	EmptyFileReminder = "System reminder: File exists but has empty contents"
)

type Option func(*FS)

// WithMirror sets the durable storage used as read fallback and write mirror.
func WithMirror(m Mirror) Option {
	return func(f *FS) { f.mirror = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(f *FS) {
		if log != nil {
			f.log = log
		}
	}
}

// FS exposes the workspace operations used by the agent tools.
type FS struct {
	store  *Store
	mirror Mirror
	queue  *mirrorQueue
	log    *zap.Logger
}

func New(store *Store, opts ...Option) *FS {
	if store == nil {
		store = NewStore()
	}
	f := &FS{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	if f.mirror != nil {
		f.queue = newMirrorQueue(f.mirror, f.log.Named("mirror"))
	}
	return f
}

func (f *FS) Store() *Store {
	return f.store
}

// List returns the in-memory paths in stable order.
func (f *FS) List() []string {
	return f.store.Paths()
}

// Read renders lines [offset, offset+limit) of path in `%6d\t%s` form.
// Paths missing from memory are looked up in the mirror.
func (f *FS) Read(path string, offset, limit int) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", invalidInput("file_path is required")
	}
	if offset < 0 {
		return "", invalidInput("offset must be >= 0, got %d", offset)
	}
	if limit <= 0 {
		return "", invalidInput("limit must be > 0, got %d", limit)
	}

	content, ok := f.store.File(path)
	if !ok {
		var err error
		content, err = f.readMirror(path)
		if err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(content) == "" {
		return EmptyFileReminder, nil
	}

	lines := splitLines(content)
	if offset >= len(lines) {
		return "", &OffsetError{Offset: offset, Lines: len(lines)}
	}
	end := len(lines)
	if limit < end-offset {
		end = offset + limit
	}

	var b strings.Builder
	for i := offset; i < end; i++ {
		if i > offset {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i+1, truncateRunes(lines[i], MaxLineRunes))
	}
	return b.String(), nil
}

func (f *FS) readMirror(path string) (string, error) {
	if f.mirror == nil || !f.mirror.Exists(path) {
		return "", &NotFoundError{Path: path}
	}
	data, err := f.mirror.Read(path)
	if err != nil {
		f.log.Debug("mirror read failed", zap.String("path", path), zap.Error(err))
		return "", &NotFoundError{Path: path}
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// Write creates or replaces path. The mirror copy is best effort and never
// affects the result.
func (f *FS) Write(path, content string) error {
	if strings.TrimSpace(path) == "" {
		return invalidInput("file_path is required")
	}
	return f.store.UpdateFiles(func(files map[string]string) error {
		files[path] = content
		f.mirrorLocked(path, content)
		return nil
	})
}

// Edit replaces oldString with newString in an in-memory file and returns the
// number of replacements. Without replaceAll the match must be unique.
// Edit never consults the mirror.
func (f *FS) Edit(path, oldString, newString string, replaceAll bool) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, invalidInput("file_path is required")
	}
	if oldString == "" {
		return 0, invalidInput("old_string must not be empty")
	}

	replaced := 0
	err := f.store.UpdateFiles(func(files map[string]string) error {
		content, ok := files[path]
		if !ok {
			return &NotFoundError{Path: path}
		}
		count := strings.Count(content, oldString)
		switch {
		case count == 0:
			return &StringNotFoundError{Path: path, Needle: oldString}
		case count > 1 && !replaceAll:
			return &AmbiguousMatchError{Path: path, Needle: oldString, Count: count}
		}

		var updated string
		if replaceAll {
			updated = strings.ReplaceAll(content, oldString, newString)
			replaced = count
		} else {
			updated = strings.Replace(content, oldString, newString, 1)
			replaced = 1
		}
		files[path] = updated
		f.mirrorLocked(path, updated)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return replaced, nil
}

// UpdateTodos replaces the entire todo list after validating every item.
func (f *FS) UpdateTodos(items []Todo) error {
	normalized := make([]Todo, 0, len(items))
	for i, item := range items {
		if err := item.validate(); err != nil {
			return fmt.Errorf("todo %d: %w", i, err)
		}
		status, _ := ParseStatus(string(item.Status))
		normalized = append(normalized, Todo{Content: item.Content, Status: status})
	}
	f.store.ReplaceTodos(normalized)
	return nil
}

func (f *FS) Todos() []Todo {
	return f.store.Todos()
}

// mirrorLocked must be called while the store mutation lock is held so that
// mirror order follows install order.
func (f *FS) mirrorLocked(path, content string) {
	if f.queue == nil {
		return
	}
	f.queue.enqueue(path, content)
}

// Flush waits until pending mirror writes have been attempted.
func (f *FS) Flush() {
	if f.queue != nil {
		f.queue.flush()
	}
}

// Close flushes the mirror and stops its worker. The FS stays readable.
func (f *FS) Close() {
	if f.queue != nil {
		f.queue.close()
	}
}

func splitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
