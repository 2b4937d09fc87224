package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Clearner1/ZulipAgent/internal/statepaths"
	"github.com/Clearner1/ZulipAgent/run"
	"github.com/Clearner1/ZulipAgent/scheduler"
	"github.com/Clearner1/ZulipAgent/session"
	"github.com/Clearner1/ZulipAgent/topic"
)

// eventHost glues the scheduler and the console intake to per-topic runners.
// It owns the registry, so the busy flag checked by the scheduler and the one
// reserved before a run are the same flag.
type eventHost struct {
	registry  *topic.Registry
	transport run.Transport
	executor  run.TurnExecutor
	sync      *session.Synchronizer
	botName   string
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func (h *eventHost) IsRunning(key string) bool {
	return h.registry.IsRunning(key)
}

// HandleEvent reserves the topic and dispatches one wake-up turn. The
// scheduler checks IsRunning before handing off, but the reservation here is
// the one that counts; a lost race is reported back as ErrTopicBusy so the
// scheduler requeues the event instead of dropping it.
func (h *eventHost) HandleEvent(ctx context.Context, stream, topicName, text string) error {
	id := topic.NewIdentity(stream, topicName)
	if !h.registry.Acquire(id.Key()) {
		return fmt.Errorf("topic %s: %w", id.Key(), scheduler.ErrTopicBusy)
	}
	runner := h.runnerFor(id, stream, topicName)
	runCtx := context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := runner.Run(runCtx, run.Request{Text: text, SenderName: "system"}); err != nil {
			h.logger.Warn("run_error", "topic", id.Key(), "error", err.Error())
		}
	}()
	return nil
}

// Submit handles one live message. A busy topic gets a fixed notice instead
// of queueing; the sender can resend once the current run finishes.
func (h *eventHost) Submit(ctx context.Context, stream, topicName, sender, text string) {
	id := topic.NewIdentity(stream, topicName)
	if !h.registry.Acquire(id.Key()) {
		if err := h.transport.SendMessage(ctx, stream, topicName, "still working on the previous message, give me a moment"); err != nil {
			h.logger.Warn("busy_notice_send_error", "topic", id.Key(), "error", err.Error())
		}
		return
	}
	runner := h.runnerFor(id, stream, topicName)
	// A dispatched run finishes even if intake shuts down; Wait drains it.
	runCtx := context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := runner.Run(runCtx, run.Request{Text: text, SenderName: sender}); err != nil {
			h.logger.Warn("run_error", "topic", id.Key(), "error", err.Error())
		}
	}()
}

// Wait blocks until every run dispatched by Submit or HandleEvent has
// finished.
func (h *eventHost) Wait() {
	h.wg.Wait()
}

func (h *eventHost) runnerFor(id topic.Identity, stream, topicName string) *run.Runner {
	r := h.registry.Runner(id.Key(), func() any {
		return &run.Runner{
			ID:        id,
			BotName:   h.botName,
			Store:     session.NewFileHistoryStore(statepaths.TopicHistoryPath(id)),
			LogPath:   statepaths.TopicLogPath(id),
			NotesPath: statepaths.NotesPath(),
			Sync:      h.sync,
			Turns:     h.executor,
			Transport: h.transport,
			Gate:      h.registry,
			Logger:    h.logger,
		}
	})
	runner := r.(*run.Runner)
	// Delivery addresses the names from this hand-off, not whatever raw
	// spelling first created the cached runner. Safe to mutate: the slot is
	// reserved before runnerFor is called, so no other run is in flight.
	runner.StreamName = stream
	runner.TopicName = topicName
	return runner
}
