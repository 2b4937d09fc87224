package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Clearner1/ZulipAgent/run"
	"github.com/Clearner1/ZulipAgent/scheduler"
	"github.com/Clearner1/ZulipAgent/session"
	"github.com/Clearner1/ZulipAgent/topic"
	"github.com/spf13/viper"
)

type sentMessage struct {
	Stream string
	Topic  string
	Text   string
}

type captureTransport struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (c *captureTransport) SendMessage(_ context.Context, stream, topicName, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{Stream: stream, Topic: topicName, Text: text})
	return nil
}

func (c *captureTransport) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

type cannedExecutor struct{}

func (cannedExecutor) Execute(_ context.Context, _ run.Turn) (run.Result, error) {
	return run.Result{Text: "ok", Status: run.StatusCompleted}, nil
}

// Global viper state; these tests must not run in parallel.
func newTestHost(t *testing.T) (*eventHost, *captureTransport) {
	t.Helper()
	viper.Set("state_dir", t.TempDir())
	t.Cleanup(func() { viper.Set("state_dir", "") })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := &captureTransport{}
	return &eventHost{
		registry:  topic.NewRegistry(),
		transport: transport,
		executor:  cannedExecutor{},
		sync:      &session.Synchronizer{Logger: logger},
		botName:   "agent-bot",
		logger:    logger,
	}, transport
}

func TestHandleEventBusyReturnsSentinel(t *testing.T) {
	host, _ := newTestHost(t)
	key := topic.NewIdentity("dev", "standup").Key()
	if !host.registry.Acquire(key) {
		t.Fatalf("Acquire() = false, want true")
	}

	err := host.HandleEvent(context.Background(), "dev", "standup", "wake up")
	if !errors.Is(err, scheduler.ErrTopicBusy) {
		t.Fatalf("HandleEvent() error = %v, want ErrTopicBusy", err)
	}
}

func TestHandleEventDispatchesAndFrees(t *testing.T) {
	host, transport := newTestHost(t)

	if err := host.HandleEvent(context.Background(), "dev", "standup", "wake up"); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	host.Wait()

	msgs := transport.messages()
	if len(msgs) != 1 || msgs[0].Text != "ok" {
		t.Fatalf("transport messages = %+v, want one reply", msgs)
	}
	if host.IsRunning(topic.NewIdentity("dev", "standup").Key()) {
		t.Fatalf("busy flag still set after dispatched run finished")
	}
}

func TestDeliveryUsesNamesFromEachHandOff(t *testing.T) {
	host, transport := newTestHost(t)

	// Two raw spellings of the same topic identity share one runner; each
	// reply must go out under the spelling of its own hand-off.
	if err := host.HandleEvent(context.Background(), "Dev Ops", "Standup", "first"); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	host.Wait()
	if err := host.HandleEvent(context.Background(), "dev-ops", "standup", "second"); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	host.Wait()

	msgs := transport.messages()
	if len(msgs) != 2 {
		t.Fatalf("transport messages = %+v, want two replies", msgs)
	}
	if msgs[0].Stream != "Dev Ops" || msgs[0].Topic != "Standup" {
		t.Fatalf("first reply addressed to %s/%s, want Dev Ops/Standup", msgs[0].Stream, msgs[0].Topic)
	}
	if msgs[1].Stream != "dev-ops" || msgs[1].Topic != "standup" {
		t.Fatalf("second reply addressed to %s/%s, want dev-ops/standup", msgs[1].Stream, msgs[1].Topic)
	}
}

func TestSubmitBusySendsFixedNotice(t *testing.T) {
	host, transport := newTestHost(t)
	key := topic.NewIdentity("dev", "standup").Key()
	if !host.registry.Acquire(key) {
		t.Fatalf("Acquire() = false, want true")
	}

	host.Submit(context.Background(), "dev", "standup", "ana", "hello?")

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := transport.messages()
		if len(msgs) == 1 {
			if msgs[0].Text != "still working on the previous message, give me a moment" {
				t.Fatalf("busy notice = %q", msgs[0].Text)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("busy notice never sent; messages = %+v", msgs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
