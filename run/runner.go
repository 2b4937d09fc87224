package run

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Clearner1/ZulipAgent/internal/fsstore"
	"github.com/Clearner1/ZulipAgent/internal/notes"
	"github.com/Clearner1/ZulipAgent/session"
	"github.com/Clearner1/ZulipAgent/topic"
	"github.com/google/uuid"
)

const liveTurnTimeLayout = "2006-01-02 15:04:05 -07:00"

// Request is one live turn submission.
type Request struct {
	Text       string
	SenderName string
	// MessageID is the log ts of the message being submitted live, excluded
	// from backfill so it enters history exactly once.
	MessageID string
}

// Runner serializes all turns for one topic. The caller reserves the topic's
// run slot before calling Run; Run releases it on every exit path.
type Runner struct {
	ID         topic.Identity
	StreamName string
	TopicName  string
	BotName    string

	Store     session.HistoryStore
	LogPath   string
	NotesPath string
	Sync      *session.Synchronizer
	Turns     TurnExecutor
	Transport Transport
	Gate      Gate
	Logger    *slog.Logger

	// Now is overridable for tests.
	Now func() time.Time
}

func (r *Runner) Run(ctx context.Context, req Request) error {
	defer func() {
		if r.Gate != nil {
			r.Gate.Release(r.ID.Key())
		}
	}()
	logger := r.logger()
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	if err := fsstore.EnsureDir(filepath.Dir(r.LogPath)); err != nil {
		logger.Warn("run_ensure_dir_error", "topic", r.ID.Key(), "error", err.Error())
	}

	if r.Sync != nil {
		if _, err := r.Sync.Sync(r.Store, r.LogPath, req.MessageID); err != nil {
			logger.Warn("run_sync_error", "topic", r.ID.Key(), "error", err.Error())
		}
	}
	// Work from the persisted history, not a possibly stale cache.
	if err := r.Store.Reload(); err != nil {
		logger.Warn("run_history_reload_error", "topic", r.ID.Key(), "error", err.Error())
	}

	instructions := ""
	if strings.TrimSpace(r.NotesPath) != "" {
		snap, ok, err := notes.Load(r.NotesPath)
		if err != nil {
			logger.Warn("run_notes_error", "topic", r.ID.Key(), "error", err.Error())
		} else if ok {
			instructions = snap.Body
		}
	}

	sender := strings.TrimSpace(req.SenderName)
	if sender == "" {
		sender = "user"
	}
	startedAt := now()
	liveTurn := fmt.Sprintf("[%s] %s",
		startedAt.Format(liveTurnTimeLayout),
		session.ComposeTurnText(sender, req.Text),
	)
	if err := r.Store.Append(session.HistoryEntry{
		Role:    session.RoleUser,
		Content: liveTurn,
		At:      session.NowStamp(startedAt),
	}); err != nil {
		logger.Warn("run_history_append_error", "topic", r.ID.Key(), "error", err.Error())
	}

	res, err := r.Turns.Execute(ctx, Turn{
		Instructions: instructions,
		History:      r.Store.Entries(),
		Message:      liveTurn,
	})
	if err != nil {
		logger.Warn("run_execute_error", "topic", r.ID.Key(), "error", err.Error())
		r.notifyError(ctx, logger, err.Error())
		return fmt.Errorf("execute turn for %s: %w", r.ID.Key(), err)
	}

	text := strings.TrimSpace(res.Text)
	switch {
	case IsSilent(text):
		logger.Info("run_silent", "topic", r.ID.Key())
	case text != "":
		if err := r.Transport.SendMessage(ctx, r.StreamName, r.TopicName, text); err != nil {
			logger.Warn("run_send_error", "topic", r.ID.Key(), "error", err.Error())
		} else {
			r.persistBotTurn(logger, now(), text)
		}
	}

	if res.Status == StatusFailed {
		msg := strings.TrimSpace(res.ErrorMessage)
		if msg == "" {
			msg = "turn did not complete"
		}
		r.notifyError(ctx, logger, msg)
	}

	if res.Usage.CostUSD > 0 {
		logger.Info("run_usage",
			"topic", r.ID.Key(),
			"input_tokens", res.Usage.InputTokens,
			"output_tokens", res.Usage.OutputTokens,
			"cost_usd", fmt.Sprintf("%.6f", res.Usage.CostUSD),
		)
	}
	return nil
}

func (r *Runner) persistBotTurn(logger *slog.Logger, at time.Time, text string) {
	if err := session.AppendLogEntry(r.LogPath, session.LogEntry{
		Date:  at.Format(time.RFC3339),
		TS:    uuid.NewString(),
		User:  r.botName(),
		Text:  text,
		IsBot: true,
	}); err != nil {
		logger.Warn("run_log_append_error", "topic", r.ID.Key(), "error", err.Error())
	}
	if err := r.Store.Append(session.HistoryEntry{
		Role:    session.RoleAssistant,
		Content: text,
		At:      session.NowStamp(at),
	}); err != nil {
		logger.Warn("run_history_append_error", "topic", r.ID.Key(), "error", err.Error())
	}
}

// notifyError delivers a best-effort visible error notice; delivery failure
// is swallowed.
func (r *Runner) notifyError(ctx context.Context, logger *slog.Logger, msg string) {
	if r.Transport == nil {
		return
	}
	if err := r.Transport.SendMessage(ctx, r.StreamName, r.TopicName, "error: "+msg); err != nil {
		logger.Debug("run_error_notice_send_failed", "topic", r.ID.Key(), "error", err.Error())
	}
}

func (r *Runner) botName() string {
	if name := strings.TrimSpace(r.BotName); name != "" {
		return name
	}
	return "agent"
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
