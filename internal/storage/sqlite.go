package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatd/internal/chat"

	_ "modernc.org/sqlite"
)

// stateKey names the single durable entry holding the JSON-serialized
// collection. There is no schema version field; malformed or absent data is
// treated as no history.
const stateKey = "chat_sessions"

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
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

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
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
	CREATE TABLE IF NOT EXISTS state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
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

// LoadCollection reads the state row. A missing row is no history; a corrupt
// row is logged and likewise treated as no history rather than failing.
func (s *SQLiteStore) LoadCollection() ([]*chat.Conversation, error) {
	row := s.db.QueryRow(`SELECT value FROM state WHERE key=?`, stateKey)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}

	var conversations []*chat.Conversation
	if err := json.Unmarshal([]byte(value), &conversations); err != nil {
		// 损坏的历史按无历史处理 / Corrupt history is treated as no history
		slog.Warn("stored conversation state is malformed, starting fresh", "error", err)
		return nil, nil
	}
	return conversations, nil
}

// SaveCollection writes the whole collection as one upsert of the state row.
func (s *SQLiteStore) SaveCollection(conversations []*chat.Conversation) error {
	if conversations == nil {
		conversations = []*chat.Conversation{}
	}
	data, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		stateKey, string(data), nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// HasCollection reports whether a state row exists, corrupt or not.
func (s *SQLiteStore) HasCollection() (bool, error) {
	row := s.db.QueryRow(`SELECT 1 FROM state WHERE key=?`, stateKey)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("probe state: %w", err)
	}
	return true, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
