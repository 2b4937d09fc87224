package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Live turns are prefixed "[<timestamp with offset>] " before the
// "[name]: text" body; backfilled turns carry only the body. Stripping the
// timestamp bracket makes the two forms compare equal, which is what keeps
// Sync idempotent across runs.
var timestampPrefix = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}[^\]]*\]\s*`)

// NormalizeTurnText strips the leading timestamp bracket, if any.
func NormalizeTurnText(s string) string {
	return strings.TrimSpace(timestampPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

// ComposeTurnText is the canonical backfill form of a user turn.
func ComposeTurnText(displayName, text string) string {
	return fmt.Sprintf("[%s]: %s", displayName, text)
}

// Synchronizer merges a per-topic message log into the persisted history.
type Synchronizer struct {
	Logger *slog.Logger
}

// Sync reads the full log at logPath and appends every user turn that is not
// yet in the history, in timestamp order. Lines matching excludeID are left
// to the caller to submit as the live turn. Returns the number of entries
// appended; 0 means no state change. A missing log is a no-op.
func (s *Synchronizer) Sync(store HistoryStore, logPath string, excludeID string) (int, error) {
	file, err := os.Open(logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open topic log %s: %w", logPath, err)
	}
	defer file.Close()

	seen := make(map[string]bool)
	for _, entry := range store.Entries() {
		seen[NormalizeTurnText(entry.Content)] = true
	}

	type staged struct {
		entry HistoryEntry
		at    time.Time
	}
	var pending []staged

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			if s.Logger != nil {
				s.Logger.Debug("sync_skip_malformed_line", "path", logPath, "error", err.Error())
			}
			continue
		}
		if strings.TrimSpace(entry.User) == "" && strings.TrimSpace(entry.TS) == "" {
			continue
		}
		if excludeID != "" && entry.TS == excludeID {
			continue
		}
		if entry.IsBot {
			continue
		}
		composed := ComposeTurnText(entry.DisplayName(), entry.Text)
		if seen[composed] {
			continue
		}
		seen[composed] = true
		at, _ := entry.ParsedDate()
		pending = append(pending, staged{
			entry: HistoryEntry{Role: RoleUser, Content: composed, At: entry.Date},
			at:    at,
		})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan topic log %s: %w", logPath, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// Log line order is not trusted; history order is chronological.
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].at.Before(pending[j].at)
	})

	entries := make([]HistoryEntry, 0, len(pending))
	for _, p := range pending {
		entries = append(entries, p.entry)
	}
	if err := store.Append(entries...); err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("sync_appended", "path", logPath, "count", len(entries))
	}
	return len(entries), nil
}
