// Package scheduler watches the trigger directory and turns trigger files
// into wake-up events. The filename is the scheduling identity: rewriting a
// file replaces its schedule, deleting it cancels the pending wake-up.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/Clearner1/ZulipAgent/topic"
	"github.com/Clearner1/ZulipAgent/trigger"
)

const (
	defaultDebounceWindow = 100 * time.Millisecond
	defaultRequeueDelay   = 10 * time.Second
	defaultReadRetries    = 3
	defaultReadRetryDelay = 100 * time.Millisecond
)

// ErrTopicBusy reports that HandleEvent could not reserve the topic's run
// slot. The scheduler requeues the event instead of dropping it.
var ErrTopicBusy = errors.New("topic is mid-run")

// Handler receives fired wake-up events. IsRunning gates delivery: a busy
// topic gets the event requeued instead of a concurrent run. HandleEvent
// reserves the topic and dispatches the run asynchronously, returning
// quickly; it returns ErrTopicBusy when the reservation is lost to a
// concurrent turn between the IsRunning check and the hand-off.
type Handler interface {
	IsRunning(topicKey string) bool
	HandleEvent(ctx context.Context, stream, topicName, text string) error
}

type Options struct {
	// Dir is the watched trigger directory, created if absent.
	Dir     string
	Handler Handler
	Logger  *slog.Logger

	// DebounceWindow coalesces bursts of filesystem notifications for the
	// same filename. Zero means the default of 100ms.
	DebounceWindow time.Duration
	// RequeueDelay is how long a fired event waits before retrying a busy
	// topic. Zero means the default of 10s.
	RequeueDelay time.Duration
	// ReadRetries is how many times a notified file is re-read before the
	// notification is abandoned. Writers are not atomic in general, so the
	// first read may race a partial write.
	ReadRetries    int
	ReadRetryDelay time.Duration
}

// handle is the single pending schedule for one filename: a one-shot wait
// timer, a busy-requeue timer, or a cron entry for periodic triggers.
type handle struct {
	timer    *time.Timer
	entry    cron.EntryID
	hasEntry bool
}

type Scheduler struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	startedAt time.Time
	handles   map[string]handle
	requeues  map[string]*time.Timer
	debounce  map[string]*time.Timer

	watcher *fsnotify.Watcher
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) (*Scheduler, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("scheduler: trigger directory is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("scheduler: handler is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = defaultDebounceWindow
	}
	if opts.RequeueDelay <= 0 {
		opts.RequeueDelay = defaultRequeueDelay
	}
	if opts.ReadRetries <= 0 {
		opts.ReadRetries = defaultReadRetries
	}
	if opts.ReadRetryDelay <= 0 {
		opts.ReadRetryDelay = defaultReadRetryDelay
	}
	return &Scheduler{
		opts:     opts,
		logger:   opts.Logger,
		handles:  make(map[string]handle),
		requeues: make(map[string]*time.Timer),
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start scans the directory once for triggers deposited while the agent was
// down, then watches it for changes. It returns after the watch loop is
// running; Stop tears it down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler: already started")
	}
	s.started = true

	if err := os.MkdirAll(s.opts.Dir, 0o700); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: create trigger dir %s: %w", s.opts.Dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: create watcher: %w", err)
	}
	if err := watcher.Add(s.opts.Dir); err != nil {
		_ = watcher.Close()
		s.mu.Unlock()
		return fmt.Errorf("scheduler: watch %s: %w", s.opts.Dir, err)
	}

	s.watcher = watcher
	s.startedAt = time.Now()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New()
	s.cron.Start()
	s.mu.Unlock()

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		s.logger.Warn("trigger_scan_error", "dir", s.opts.Dir, "error", err.Error())
	}
	for _, entry := range entries {
		if entry.IsDir() || skipName(entry.Name()) {
			continue
		}
		s.refresh(entry.Name())
	}

	s.wg.Add(1)
	go s.watchLoop()
	s.logger.Info("scheduler_started", "dir", s.opts.Dir)
	return nil
}

// Stop cancels every pending schedule and stops the watcher. Runs already
// handed off to the handler are the host's to drain. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	_ = s.watcher.Close()
	for name, t := range s.debounce {
		t.Stop()
		delete(s.debounce, name)
	}
	for name, t := range s.requeues {
		t.Stop()
		delete(s.requeues, name)
	}
	for name, h := range s.handles {
		s.cancelHandleLocked(name, h)
	}
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	<-cronDone.Done()
	s.wg.Wait()
	s.logger.Info("scheduler_stopped", "dir", s.opts.Dir)
}

func (s *Scheduler) watchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if skipName(name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.scheduleRefresh(name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("trigger_watch_error", "error", err.Error())
		}
	}
}

// scheduleRefresh debounces notifications per filename: editors and atomic
// writers emit bursts, only the settled state matters.
func (s *Scheduler) scheduleRefresh(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.debounce[name]; ok {
		t.Stop()
	}
	s.debounce[name] = time.AfterFunc(s.opts.DebounceWindow, func() {
		s.mu.Lock()
		delete(s.debounce, name)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			s.refresh(name)
		}
	})
}

// refresh re-derives the schedule for one filename from the file's current
// content. Any prior schedule for the name is canceled first, so a rewrite
// replaces and a deletion cancels.
func (s *Scheduler) refresh(name string) {
	s.mu.Lock()
	if h, ok := s.handles[name]; ok {
		s.cancelHandleLocked(name, h)
	}
	if t, ok := s.requeues[name]; ok {
		t.Stop()
		delete(s.requeues, name)
	}
	s.mu.Unlock()

	path := filepath.Join(s.opts.Dir, name)
	data, ok := s.readWithRetry(path)
	if !ok {
		return
	}

	ev, err := trigger.Decode(data)
	if err != nil {
		// The file stays; a malformed deposit is the operator's to fix.
		s.logger.Warn("trigger_invalid", "file", name, "error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	switch ev.Type {
	case trigger.TypeImmediate:
		s.logger.Info("trigger_immediate", "file", name, "stream", ev.Stream, "topic", ev.Topic)
		s.fireLocked(name, ev)
	case trigger.TypeOneShot:
		s.armOneShotLocked(name, path, ev)
	case trigger.TypePeriodic:
		s.armPeriodicLocked(name, ev)
	}
}

func (s *Scheduler) armOneShotLocked(name, path string, ev trigger.Event) {
	at, err := ev.FiresAt()
	if err != nil {
		s.logger.Warn("trigger_invalid", "file", name, "error", err.Error())
		return
	}
	delay := time.Until(at)
	if delay <= 0 {
		// Past due. A file deposited while the agent runs fires once late;
		// one that predates startup already fired in a previous life and is
		// discarded.
		if s.fileNewerThanStart(path) {
			s.logger.Info("trigger_one_shot_late", "file", name, "at", ev.At)
			s.fireLocked(name, ev)
			return
		}
		s.logger.Info("trigger_one_shot_stale", "file", name, "at", ev.At)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("trigger_remove_error", "file", name, "error", err.Error())
		}
		return
	}
	s.logger.Info("trigger_one_shot_armed", "file", name, "at", ev.At)
	s.handles[name] = handle{timer: time.AfterFunc(delay, func() {
		s.fire(name, ev)
	})}
}

func (s *Scheduler) armPeriodicLocked(name string, ev trigger.Event) {
	tz := strings.TrimSpace(ev.Timezone)
	if _, err := time.LoadLocation(tz); err != nil {
		s.logger.Warn("trigger_invalid", "file", name, "error", fmt.Sprintf("unknown timezone %q", tz))
		return
	}
	spec := "CRON_TZ=" + tz + " " + strings.TrimSpace(ev.Schedule)
	if _, err := cron.ParseStandard(spec); err != nil {
		s.logger.Warn("trigger_invalid", "file", name, "error", err.Error())
		return
	}
	id, err := s.cron.AddFunc(spec, func() {
		s.fire(name, ev)
	})
	if err != nil {
		s.logger.Warn("trigger_invalid", "file", name, "error", err.Error())
		return
	}
	s.logger.Info("trigger_periodic_armed", "file", name, "schedule", ev.Schedule, "timezone", tz)
	s.handles[name] = handle{entry: id, hasEntry: true}
}

func (s *Scheduler) fire(name string, ev trigger.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.fireLocked(name, ev)
}

// fireLocked hands one wake-up to the handler, or requeues it if the topic is
// mid-run. Requeueing repeats every RequeueDelay with no cap; the event
// eventually lands when the run finishes. The source file of a non-periodic
// trigger is deleted only once the hand-off has reserved the slot, so a lost
// reservation race never loses the event.
func (s *Scheduler) fireLocked(name string, ev trigger.Event) {
	key := topic.NewIdentity(ev.Stream, ev.Topic).Key()
	if s.opts.Handler.IsRunning(key) {
		s.requeueLocked(name, ev, key)
		return
	}

	msg := trigger.WakeMessage(name, ev)
	// A run already handed off finishes even while the scheduler shuts
	// down; the host drains it.
	err := s.opts.Handler.HandleEvent(context.WithoutCancel(s.ctx), ev.Stream, ev.Topic, msg)
	if errors.Is(err, ErrTopicBusy) {
		s.requeueLocked(name, ev, key)
		return
	}
	if err != nil {
		s.logger.Warn("trigger_handle_error", "file", name, "topic", key, "error", err.Error())
	}
	s.logger.Info("trigger_fired", "file", name, "type", string(ev.Type), "topic", key)

	if ev.Type != trigger.TypePeriodic {
		if h, ok := s.handles[name]; ok {
			s.cancelHandleLocked(name, h)
		}
		path := filepath.Join(s.opts.Dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("trigger_remove_error", "file", name, "error", err.Error())
		}
	}
}

func (s *Scheduler) requeueLocked(name string, ev trigger.Event, key string) {
	if _, waiting := s.requeues[name]; waiting {
		return
	}
	s.logger.Debug("trigger_requeued", "file", name, "topic", key)
	s.requeues[name] = time.AfterFunc(s.opts.RequeueDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.requeues, name)
		if s.stopped {
			return
		}
		s.fireLocked(name, ev)
	})
}

func (s *Scheduler) cancelHandleLocked(name string, h handle) {
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.hasEntry {
		s.cron.Remove(h.entry)
	}
	delete(s.handles, name)
}

// readWithRetry reads the file, retrying on transient emptiness: a writer may
// still be mid-write when the notification lands. A missing file is a
// cancellation, not an error.
func (s *Scheduler) readWithRetry(path string) ([]byte, bool) {
	name := filepath.Base(path)
	for attempt := 1; ; attempt++ {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("trigger_removed", "file", name)
			return nil, false
		}
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			return data, true
		}
		if attempt >= s.opts.ReadRetries {
			if err != nil {
				s.logger.Warn("trigger_read_error", "file", name, "error", err.Error())
			} else {
				s.logger.Debug("trigger_read_abandoned", "file", name)
			}
			return nil, false
		}
		time.Sleep(time.Duration(attempt) * s.opts.ReadRetryDelay)
	}
}

func (s *Scheduler) fileNewerThanStart(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().After(s.startedAt)
}

// skipName filters out dotfiles and the temp files atomic writers leave
// behind while renaming into place.
func skipName(name string) bool {
	return name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, ".tmp.")
}
