package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"deepagents/internal/vfs"
)

var _ vfs.Mirror = (*FileMirror)(nil)

// FileMirror stores mirrored workspace files in the mirror_files table,
// scoped to one session.
type FileMirror struct {
	db        *sql.DB
	sessionID string
}

// Mirror returns a vfs.Mirror backed by this database for sessionID.
func (s *SQLiteStore) Mirror(sessionID string) *FileMirror {
	return &FileMirror{db: s.db, sessionID: sessionID}
}

func (m *FileMirror) Exists(p string) bool {
	key, err := mirrorKey(p)
	if err != nil {
		return false
	}
	var n int
	err = m.db.QueryRow(`SELECT COUNT(1) FROM mirror_files WHERE session_id=? AND path=?`, m.sessionID, key).Scan(&n)
	return err == nil && n > 0
}

func (m *FileMirror) Read(p string) ([]byte, error) {
	key, err := mirrorKey(p)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = m.db.QueryRow(`SELECT content FROM mirror_files WHERE session_id=? AND path=?`, m.sessionID, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("mirror file %q: %w", key, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("read mirror file: %w", err)
	}
	return data, nil
}

func (m *FileMirror) Write(p string, data []byte) error {
	key, err := mirrorKey(p)
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err = m.db.Exec(`
		INSERT INTO mirror_files (session_id, path, content, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, path) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at`,
		m.sessionID, key, data, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("write mirror file: %w", err)
	}
	return nil
}

// Paths lists mirrored paths of the session in lexical order.
func (m *FileMirror) Paths() ([]string, error) {
	rows, err := m.db.Query(`SELECT path FROM mirror_files WHERE session_id=? ORDER BY path`, m.sessionID)
	if err != nil {
		return nil, fmt.Errorf("list mirror files: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// mirrorKey normalizes p to a clean relative slash path. Keys that climb
// above the session root are rejected.
func mirrorKey(p string) (string, error) {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" {
		return "", fmt.Errorf("mirror path is empty")
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("mirror path %q escapes the session root", p)
	}
	key := strings.TrimPrefix(cleaned, "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid mirror path %q", p)
	}
	return key, nil
}
