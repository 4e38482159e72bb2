package vfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"deepagents/internal/security"

	"go.uber.org/zap"
)

// Mirror is the durable storage behind the workspace: a read fallback and a
// best-effort write target. Relative paths are resolved by the implementation.
type Mirror interface {
	Exists(path string) bool
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
}

// DiskMirror mirrors files below a root directory on the local filesystem.
type DiskMirror struct {
	root *security.Root
}

func NewDiskMirror(root *security.Root) *DiskMirror {
	return &DiskMirror{root: root}
}

func (m *DiskMirror) Exists(path string) bool {
	resolved, err := m.root.Resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	return err == nil && !info.IsDir()
}

func (m *DiskMirror) Read(path string) ([]byte, error) {
	resolved, err := m.root.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (m *DiskMirror) Write(path string, data []byte) error {
	resolved, err := m.root.Resolve(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

type mirrorJob struct {
	path    string
	content string
}

// mirrorQueue applies mirror writes on one background goroutine, in the
// order they were enqueued. Failures are logged and dropped.
type mirrorQueue struct {
	mirror Mirror
	log    *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []mirrorJob
	busy    bool
	closed  bool
	done    chan struct{}
}

func newMirrorQueue(m Mirror, log *zap.Logger) *mirrorQueue {
	q := &mirrorQueue{mirror: m, log: log, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *mirrorQueue) enqueue(path, content string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, mirrorJob{path: path, content: content})
	q.cond.Broadcast()
}

func (q *mirrorQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = nil
		q.busy = true
		q.mu.Unlock()

		for _, job := range batch {
			q.apply(job)
		}

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *mirrorQueue) apply(job mirrorJob) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Warn("mirror write panicked", zap.String("path", job.path), zap.Any("panic", r))
		}
	}()
	if err := q.mirror.Write(job.path, []byte(job.content)); err != nil {
		err = errors.Join(ErrMirrorWriteFailed, err)
		q.log.Warn("mirror write failed", zap.String("path", job.path), zap.Error(err))
		return
	}
	q.log.Debug("mirrored file", zap.String("path", job.path), zap.Int("bytes", len(job.content)))
}

// flush blocks until every job enqueued so far has been applied.
func (q *mirrorQueue) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 || q.busy {
		q.cond.Wait()
	}
}

func (q *mirrorQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
