package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deepagents/internal/chat"
	"deepagents/internal/vfs"

	_ "modernc.org/sqlite"
)

var ErrSessionNotFound = errors.New("session not found")

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore persists sessions, conversations and workspace snapshots in SQLite (WAL mode).
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		model      TEXT NOT NULL DEFAULT '',
		cwd        TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		role         TEXT NOT NULL,
		content      TEXT NOT NULL DEFAULT '',
		name         TEXT NOT NULL DEFAULT '',
		tool_call_id TEXT NOT NULL DEFAULT '',
		tool_calls   TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY(session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS workspace_files (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		path       TEXT NOT NULL,
		position   INTEGER NOT NULL,
		content    TEXT NOT NULL,
		PRIMARY KEY(session_id, path)
	);

	CREATE TABLE IF NOT EXISTS todos (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		content    TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		PRIMARY KEY(session_id, position)
	);

	CREATE TABLE IF NOT EXISTS mirror_files (
		session_id TEXT NOT NULL,
		path       TEXT NOT NULL,
		content    BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY(session_id, path)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Session Operations ---

func (s *SQLiteStore) CreateSession(meta SessionMeta) error {
	now := nowUTC()
	if strings.TrimSpace(meta.CreatedAt) == "" {
		meta.CreatedAt = now
	}
	if strings.TrimSpace(meta.UpdatedAt) == "" {
		meta.UpdatedAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, model, cwd, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Title, meta.Model, meta.CWD, meta.CreatedAt, meta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SaveSession updates the mutable fields of an existing session.
func (s *SQLiteStore) SaveSession(meta SessionMeta) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET title=?, model=?, cwd=?, updated_at=? WHERE id=?`,
		meta.Title, meta.Model, meta.CWD, nowUTC(), meta.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, meta.ID)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(id string) (SessionMeta, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SessionMeta{}, fmt.Errorf("session id is empty")
	}
	row := s.db.QueryRow(`
		SELECT id, title, model, cwd, created_at, updated_at
		FROM sessions WHERE id=?`, id)

	var meta SessionMeta
	err := row.Scan(&meta.ID, &meta.Title, &meta.Model, &meta.CWD, &meta.CreatedAt, &meta.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionMeta{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return SessionMeta{}, fmt.Errorf("load session: %w", err)
	}
	return meta, nil
}

func (s *SQLiteStore) ListSessions() ([]SessionMeta, error) {
	rows, err := s.db.Query(`
		SELECT id, title, model, cwd, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var metas []SessionMeta
	for rows.Next() {
		var meta SessionMeta
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Model, &meta.CWD, &meta.CreatedAt, &meta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// --- Message Operations ---

// SaveMessages replaces the stored conversation of a session.
func (s *SQLiteStore) SaveMessages(sessionID string, messages []chat.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM messages WHERE session_id=?", sessionID); err != nil {
		return fmt.Errorf("delete old messages: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (session_id, seq, role, content, name, tool_call_id, tool_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		toolCallsJSON := "[]"
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("marshal tool calls %d: %w", i, err)
			}
			toolCallsJSON = string(data)
		}
		if _, err := stmt.Exec(sessionID, i, msg.Role, msg.Content, msg.Name, msg.ToolCallID, toolCallsJSON); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	if err := touchSession(tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadMessages(sessionID string) ([]chat.Message, error) {
	rows, err := s.db.Query(`
		SELECT role, content, name, tool_call_id, tool_calls
		FROM messages WHERE session_id=? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		var toolCallsJSON string
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Name, &msg.ToolCallID, &toolCallsJSON); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCallsJSON != "" && toolCallsJSON != "[]" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// --- Workspace Operations ---

// SaveWorkspace replaces the stored files and todo list of a session with snap.
func (s *SQLiteStore) SaveWorkspace(sessionID string, snap vfs.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM workspace_files WHERE session_id=?", sessionID); err != nil {
		return fmt.Errorf("delete old files: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM todos WHERE session_id=?", sessionID); err != nil {
		return fmt.Errorf("delete old todos: %w", err)
	}

	fileStmt, err := tx.Prepare(`
		INSERT INTO workspace_files (session_id, path, position, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare file insert: %w", err)
	}
	defer fileStmt.Close()
	for i, path := range snap.Order {
		content, ok := snap.Files[path]
		if !ok {
			continue
		}
		if _, err := fileStmt.Exec(sessionID, path, i, content); err != nil {
			return fmt.Errorf("insert file %q: %w", path, err)
		}
	}

	todoStmt, err := tx.Prepare(`
		INSERT INTO todos (session_id, position, content, status) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare todo insert: %w", err)
	}
	defer todoStmt.Close()
	for i, item := range snap.Todos {
		if _, err := todoStmt.Exec(sessionID, i, item.Content, string(item.Status)); err != nil {
			return fmt.Errorf("insert todo %d: %w", i, err)
		}
	}

	if err := touchSession(tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadWorkspace(sessionID string) (vfs.Snapshot, error) {
	snap := vfs.Snapshot{Files: map[string]string{}}

	rows, err := s.db.Query(`
		SELECT path, content FROM workspace_files WHERE session_id=? ORDER BY position`, sessionID)
	if err != nil {
		return vfs.Snapshot{}, fmt.Errorf("query files: %w", err)
	}
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			rows.Close()
			return vfs.Snapshot{}, fmt.Errorf("scan file: %w", err)
		}
		snap.Files[path] = content
		snap.Order = append(snap.Order, path)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return vfs.Snapshot{}, err
	}
	rows.Close()

	todoRows, err := s.db.Query(`
		SELECT content, status FROM todos WHERE session_id=? ORDER BY position`, sessionID)
	if err != nil {
		return vfs.Snapshot{}, fmt.Errorf("query todos: %w", err)
	}
	defer todoRows.Close()
	for todoRows.Next() {
		var content, status string
		if err := todoRows.Scan(&content, &status); err != nil {
			return vfs.Snapshot{}, fmt.Errorf("scan todo: %w", err)
		}
		parsed, err := vfs.ParseStatus(status)
		if err != nil {
			parsed = vfs.StatusPending
		}
		snap.Todos = append(snap.Todos, vfs.Todo{Content: content, Status: parsed})
	}
	return snap, todoRows.Err()
}

// --- Helpers ---

func touchSession(tx *sql.Tx, sessionID string) error {
	if _, err := tx.Exec("UPDATE sessions SET updated_at=? WHERE id=?", nowUTC(), sessionID); err != nil {
		return fmt.Errorf("update session timestamp: %w", err)
	}
	return nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
