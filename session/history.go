package session

import (
	"sync"
	"time"

	"github.com/Clearner1/ZulipAgent/internal/fsstore"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryEntry is one turn of the persisted conversation history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	At      string `json:"at,omitempty"`
}

// HistoryStore is the persistent session store. Entries are append-only;
// existing entries are never rewritten.
type HistoryStore interface {
	Entries() []HistoryEntry
	Append(entries ...HistoryEntry) error
	Reload() error
}

// FileHistoryStore persists history as a JSON array written atomically on
// every append.
type FileHistoryStore struct {
	path string

	mu      sync.Mutex
	entries []HistoryEntry
	loaded  bool
}

func NewFileHistoryStore(path string) *FileHistoryStore {
	return &FileHistoryStore{path: path}
}

func (s *FileHistoryStore) Entries() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(false); err != nil {
		return nil
	}
	out := make([]HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *FileHistoryStore) Append(entries ...HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(false); err != nil {
		return err
	}
	s.entries = append(s.entries, entries...)
	return fsstore.WriteJSONAtomic(s.path, s.entries)
}

// Reload discards the in-memory copy and re-reads the file, so the working
// history reflects what is actually persisted.
func (s *FileHistoryStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(true)
}

func (s *FileHistoryStore) loadLocked(force bool) error {
	if s.loaded && !force {
		return nil
	}
	var entries []HistoryEntry
	if _, err := fsstore.ReadJSON(s.path, &entries); err != nil {
		return err
	}
	s.entries = entries
	s.loaded = true
	return nil
}

// NowStamp formats a history timestamp with UTC offset.
func NowStamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
