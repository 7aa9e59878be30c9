// Package watcher owns a single FS-notification subscription rooted at
// a board's .kanban/ directory and transforms raw filesystem events
// into batched board/card update notifications, with debouncing,
// overflow handling, and spot-check rescans modeled on the teacher's
// daemon.Daemon (watchFileEvents/queueChange/processPendingChanges).
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// State is one of the watcher's three lifecycle states.
type State int

const (
	Idle State = iota
	Watching
	Buffering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case Buffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// Notification is one outbound notifications/publish payload.
type Notification struct {
	URI string
}

// Sink receives notification batches from a flush.
type Sink interface {
	Publish([]Notification)
}

// Rescanner spot-checks the hot columns for card ids, used on overflow
// events (any event whose path carries no card id, see handleEvent) and
// on subscription-error recovery.
type Rescanner interface {
	RescanHotColumns(maxBatch int) ([]string, error)
}

// cardIDPattern extracts a ULID from a card filename's basename.
var cardIDPattern = regexp.MustCompile(`^([0-7][0-9A-HJKMNP-TV-Z]{25})__`)

// Config configures a Watcher.
type Config struct {
	BoardRoot   string
	BoardID     string
	DebounceMs  int
	MaxBatch    int
	Rescanner   Rescanner
	Sink        Sink
	Logger      *log.Logger
}

// Watcher is a long-running task owning one fsnotify subscription. Stop
// returns it to idle, and a later Start on the same instance opens a
// fresh subscription.
type Watcher struct {
	cfg Config

	mu              sync.Mutex
	state           State
	buffer          []string // card ids, first-seen order
	seen            map[string]bool
	overflowStreak  int
	lastFlush       time.Time

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle Watcher bound to cfg.
func New(cfg Config) *Watcher {
	if cfg.DebounceMs <= 0 {
		cfg.DebounceMs = 300
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[watcher] ", log.LstdFlags)
	}
	return &Watcher{cfg: cfg, state: Idle, seen: map[string]bool{}}
}

// SetSink installs the sink that receives notification batches from
// flushes, overriding any Sink given at construction. Safe to call
// before or after Start.
func (w *Watcher) SetSink(sink Sink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg.Sink = sink
}

// SetRescanner installs the Rescanner used on overflow and
// subscription-error recovery, overriding any Rescanner given at
// construction.
func (w *Watcher) SetRescanner(r Rescanner) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg.Rescanner = r
}

// StartResult is the payload of Start.
type StartResult struct {
	Started         bool
	AlreadyWatching bool
}

// Start transitions idle -> watching, subscribing to .kanban/ events. A
// second call on an already-running Watcher is a no-op reporting
// alreadyWatching.
func (w *Watcher) Start() (StartResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Idle {
		return StartResult{Started: false, AlreadyWatching: true}, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return StartResult{}, err
	}
	if err := fsw.Add(filepath.Join(w.cfg.BoardRoot, ".kanban")); err != nil {
		fsw.Close()
		return StartResult{}, err
	}
	w.fsw = fsw
	w.state = Watching
	w.lastFlush = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.debounceLoop(ctx)

	return StartResult{Started: true}, nil
}

// StopResult is the payload of Stop.
type StopResult struct {
	Stopped bool
}

// Stop drains the buffer, emits a final flush, and shuts down the
// subscription. Calling Stop on an idle Watcher is a no-op.
func (w *Watcher) Stop() StopResult {
	w.mu.Lock()
	if w.state == Idle {
		w.mu.Unlock()
		return StopResult{Stopped: false}
	}
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.flushLocked()
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.state = Idle
	w.mu.Unlock()

	return StopResult{Stopped: true}
}

func (w *Watcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Printf("subscription error: %v", err)
			w.handleSubscriptionError()
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	interval := time.Duration(w.cfg.DebounceMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			if time.Since(w.lastFlush) >= interval && len(w.buffer) > 0 {
				w.flushLocked()
			}
			w.mu.Unlock()
		}
	}
}

// handleEvent accumulates the card id extracted from path's basename,
// or treats an event with no extractable id as overflow.
func (w *Watcher) handleEvent(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	m := cardIDPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		w.handleOverflowLocked()
		return
	}
	w.overflowStreak = 0
	w.state = Buffering
	w.appendLocked(m[1])
}

func (w *Watcher) handleOverflowLocked() {
	w.overflowStreak++
	w.state = Buffering
	if w.cfg.Rescanner == nil {
		return
	}
	ids, err := w.cfg.Rescanner.RescanHotColumns(w.cfg.MaxBatch)
	if err != nil {
		w.cfg.Logger.Printf("overflow rescan failed: %v", err)
		return
	}
	for _, id := range ids {
		w.appendLocked(id)
	}
}

func (w *Watcher) handleSubscriptionError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg.Rescanner != nil {
		if ids, err := w.cfg.Rescanner.RescanHotColumns(w.cfg.MaxBatch); err == nil {
			for _, id := range ids {
				w.appendLocked(id)
			}
		}
	}
	w.flushLocked()
}

func (w *Watcher) appendLocked(id string) {
	if w.seen[id] {
		return
	}
	w.seen[id] = true
	w.buffer = append(w.buffer, id)
	if len(w.buffer) > w.cfg.MaxBatch {
		w.buffer = w.buffer[:w.cfg.MaxBatch]
	}
}

// flushLocked computes the notification batch via the pure doWatchFlush
// function and publishes it, clearing the buffer. Callers must hold mu.
func (w *Watcher) flushLocked() {
	notes, newLastFlush := doWatchFlush(w.cfg.BoardID, w.buffer, w.overflowStreak, time.Now(), w.lastFlush)
	w.buffer = nil
	w.seen = map[string]bool{}
	w.lastFlush = newLastFlush
	w.state = Watching
	if w.cfg.Sink != nil && len(notes) > 0 {
		w.cfg.Sink.Publish(notes)
	}
}

// State reports the watcher's current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// doWatchFlush computes the notification batch for a flush: board
// notification first, then one card notification per id in the order
// given (the watcher's buffer is already unique, first-seen ordered and
// capped at MaxBatch), unless overflowStreak >= 3 — in
// which case the flush degrades to board-only, per spec §4.8. It is a
// pure function so the flush/overflow/ordering logic is unit-testable
// without a real filesystem.
func doWatchFlush(boardID string, ids []string, overflowStreak int, now, lastFlushTs time.Time) ([]Notification, time.Time) {
	notes := []Notification{{URI: "kanban://" + boardID + "/board"}}
	if overflowStreak < 3 {
		for _, id := range ids {
			notes = append(notes, Notification{URI: "kanban://" + boardID + "/cards/" + id})
		}
	}
	return notes, now
}
