// Package session owns per-topic conversation state: the append-only message
// log shared with external writers, the persisted history, and the
// synchronizer that merges one into the other.
package session

import (
	"strings"
	"time"

	"github.com/Clearner1/ZulipAgent/internal/fsstore"
)

// LogEntry is one line of the per-topic JSONL message log. The log is
// written by external collaborators as well as by this process; it is never
// rewritten, only appended to.
type LogEntry struct {
	Date     string `json:"date"`
	TS       string `json:"ts"`
	User     string `json:"user"`
	UserName string `json:"userName,omitempty"`
	Text     string `json:"text"`
	IsBot    bool   `json:"isBot"`
}

// DisplayName prefers the human-readable name over the account identifier.
func (e LogEntry) DisplayName() string {
	if name := strings.TrimSpace(e.UserName); name != "" {
		return name
	}
	return strings.TrimSpace(e.User)
}

// ParsedDate parses the entry timestamp; ok is false when it is absent or
// malformed, in which case callers sort the entry as oldest.
func (e LogEntry) ParsedDate() (time.Time, bool) {
	raw := strings.TrimSpace(e.Date)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AppendLogEntry appends one record to the topic log.
func AppendLogEntry(path string, e LogEntry) error {
	return fsstore.AppendJSONLine(path, e)
}
