package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"chatd/internal/chat"
)

// MigrateFromJSON 将旧版 JSON 会话文件迁移到 SQLite
// MigrateFromJSON imports a legacy JSON session file into the SQLite state
// row. The import runs only when no state row exists yet; the legacy file is
// left in place. Returns true when an import happened.
func MigrateFromJSON(path string, store *SQLiteStore) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, nil
	}

	// 已有状态则跳过 / Skip when state already exists
	exists, err := store.HasCollection()
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	var conversations []*chat.Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(conversations) == 0 {
		return false, nil
	}

	if err := store.SaveCollection(conversations); err != nil {
		return false, err
	}
	return true, nil
}
