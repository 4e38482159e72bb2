// Package security confines mirrored file paths to one root directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathOutsideRoot = errors.New("path outside root")
	ErrEmptyPath       = errors.New("path is empty")
)

// Root is the working directory that relative workspace paths resolve against.
type Root struct {
	dir string
}

func NewRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("root directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The root may not exist yet; it is created lazily by the first mirror write.
		resolved = abs
	}
	return &Root{dir: resolved}, nil
}

func (r *Root) Dir() string {
	return r.dir
}

// Resolve maps path to an absolute location below the root. Absolute paths
// are accepted only when they stay inside it, including after symlinks.
func (r *Root) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.dir, target)
	}
	resolved, err := evalExisting(filepath.Clean(target))
	if err != nil {
		return "", err
	}
	if !r.contains(resolved) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRoot, path)
	}
	return resolved, nil
}

// Rel returns path relative to the root, or path unchanged when it cannot be expressed that way.
func (r *Root) Rel(path string) string {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func (r *Root) contains(path string) bool {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// evalExisting resolves symlinks on the longest existing prefix of path, so
// a not-yet-created file below a symlinked directory is still checked.
func evalExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	parentResolved, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(parentResolved, filepath.Base(path)), nil
}
