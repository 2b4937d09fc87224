package session

import (
	"path/filepath"
	"testing"
)

func TestFileHistoryStoreAppendAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	store := NewFileHistoryStore(path)

	if got := store.Entries(); len(got) != 0 {
		t.Fatalf("Entries() on empty store = %v, want empty", got)
	}
	if err := store.Append(
		HistoryEntry{Role: RoleUser, Content: "[ana]: hi"},
		HistoryEntry{Role: RoleAssistant, Content: "hello"},
	); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// A second store over the same file sees the persisted entries.
	other := NewFileHistoryStore(path)
	entries := other.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d entries, want 2", len(entries))
	}
	if entries[0].Content != "[ana]: hi" || entries[1].Role != RoleAssistant {
		t.Fatalf("Entries() = %+v", entries)
	}

	// Reload picks up external writes.
	if err := other.Append(HistoryEntry{Role: RoleUser, Content: "[bob]: more"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := len(store.Entries()); got != 3 {
		t.Fatalf("Entries() after Reload = %d, want 3", got)
	}
}

func TestLogEntryDisplayName(t *testing.T) {
	t.Parallel()

	if got := (LogEntry{User: "u1", UserName: "Ana"}).DisplayName(); got != "Ana" {
		t.Fatalf("DisplayName() = %q, want Ana", got)
	}
	if got := (LogEntry{User: "u1"}).DisplayName(); got != "u1" {
		t.Fatalf("DisplayName() = %q, want u1", got)
	}
}
