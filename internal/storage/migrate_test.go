package storage

import (
	"os"
	"path/filepath"
	"testing"

	"chatd/internal/chat"
)

func writeLegacyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	return path
}

func TestMigrateFromJSON_Imports(t *testing.T) {
	store := newTestStore(t)
	path := writeLegacyFile(t, `[{"id":"conv_legacy","title":"old chat","messages":[{"role":"user","content":"hi"}]}]`)

	migrated, err := MigrateFromJSON(path, store)
	if err != nil {
		t.Fatalf("MigrateFromJSON: %v", err)
	}
	if !migrated {
		t.Fatal("MigrateFromJSON=false, want true")
	}

	loaded, err := store.LoadCollection()
	if err != nil {
		t.Fatalf("LoadCollection: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "conv_legacy" {
		t.Fatalf("loaded unexpected: %+v", loaded)
	}
}

func TestMigrateFromJSON_SkipsWhenStateExists(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveCollection([]*chat.Conversation{{ID: "conv_existing"}}); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	path := writeLegacyFile(t, `[{"id":"conv_legacy"}]`)

	migrated, err := MigrateFromJSON(path, store)
	if err != nil {
		t.Fatalf("MigrateFromJSON: %v", err)
	}
	if migrated {
		t.Fatal("MigrateFromJSON=true, want skip when state exists")
	}

	loaded, _ := store.LoadCollection()
	if len(loaded) != 1 || loaded[0].ID != "conv_existing" {
		t.Fatalf("existing state was replaced: %+v", loaded)
	}
}

func TestMigrateFromJSON_MissingFile(t *testing.T) {
	store := newTestStore(t)

	migrated, err := MigrateFromJSON(filepath.Join(t.TempDir(), "absent.json"), store)
	if err != nil {
		t.Fatalf("MigrateFromJSON: %v", err)
	}
	if migrated {
		t.Fatal("MigrateFromJSON=true for missing file")
	}
}

func TestMigrateFromJSON_MalformedFile(t *testing.T) {
	store := newTestStore(t)
	path := writeLegacyFile(t, `{broken`)

	if _, err := MigrateFromJSON(path, store); err == nil {
		t.Fatal("expected error for malformed legacy file")
	}
}

func TestMigrateFromJSON_EmptyPath(t *testing.T) {
	store := newTestStore(t)

	migrated, err := MigrateFromJSON("", store)
	if err != nil {
		t.Fatalf("MigrateFromJSON: %v", err)
	}
	if migrated {
		t.Fatal("MigrateFromJSON=true for empty path")
	}
}
