// Package run executes one conversation turn per topic at a time: it
// reconciles persisted history with the topic log, rebuilds the instruction
// context, delegates to the external turn executor, and persists the outcome.
package run

import (
	"context"
	"strings"

	"github.com/Clearner1/ZulipAgent/session"
)

// SilenceSentinel suppresses output delivery for a turn. Periodic wake-ups
// with nothing to report answer with it so they produce no visible noise.
const SilenceSentinel = "[SILENT]"

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Result is what the external turn executor produced for one turn.
type Result struct {
	Text         string
	Status       Status
	ErrorMessage string
	Usage        Usage
}

// Turn is the input handed to the turn executor: fresh instructions, the
// reconciled history, and the new message.
type Turn struct {
	Instructions string
	History      []session.HistoryEntry
	Message      string
}

// TurnExecutor is the external reasoning engine. Execute may suspend for an
// unbounded duration; it must honor ctx cancellation.
type TurnExecutor interface {
	Execute(ctx context.Context, turn Turn) (Result, error)
}

// Transport delivers outbound text to the chat service.
type Transport interface {
	SendMessage(ctx context.Context, stream, topic, text string) error
}

// Gate releases a topic's run slot. The caller acquires the slot before
// invoking the runner; the runner guarantees the release.
type Gate interface {
	Release(key string)
}

// IsSilent reports whether turn output invokes the silence sentinel: the
// trimmed text is exactly the sentinel or begins with it.
func IsSilent(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == SilenceSentinel || strings.HasPrefix(trimmed, SilenceSentinel)
}
