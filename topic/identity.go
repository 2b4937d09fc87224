// Package topic defines conversation thread identity and the process-wide
// registry that serializes turns per thread.
package topic

import (
	"path/filepath"
	"strings"
)

const maxTokenLen = 64

// Identity is the composite key of one conversation thread: a Zulip stream
// plus a topic within it. Both components are sanitized so the identity is
// safe to use as a map key and as directory path segments.
type Identity struct {
	Stream string
	Topic  string
}

func NewIdentity(stream, topic string) Identity {
	return Identity{
		Stream: SanitizeToken(stream),
		Topic:  SanitizeToken(topic),
	}
}

// Key is the canonical map key, "stream/topic".
func (id Identity) Key() string {
	return id.Stream + "/" + id.Topic
}

// Dir returns the thread's state directory under root.
func (id Identity) Dir(root string) string {
	return filepath.Join(root, id.Stream, id.Topic)
}

// SanitizeToken lowercases, maps anything outside [a-z0-9._-] to '-',
// collapses runs, trims edge separators, and bounds length. Empty input
// becomes "general".
func SanitizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
			}
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-.")
	if len(out) > maxTokenLen {
		out = strings.Trim(out[:maxTokenLen], "-.")
	}
	if out == "" {
		return "general"
	}
	return out
}
