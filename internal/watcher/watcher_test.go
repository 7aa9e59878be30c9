package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".kanban"), 0o755); err != nil {
		t.Fatal(err)
	}
	return New(Config{BoardRoot: root, BoardID: "abc123"})
}

func TestDoWatchFlushOrdersBoardFirstThenCards(t *testing.T) {
	now := time.Now()
	notes, _ := doWatchFlush("abc123", []string{"ID1", "ID2"}, 0, now, now.Add(-time.Second))

	if len(notes) != 3 {
		t.Fatalf("len(notes) = %d, want 3", len(notes))
	}
	if notes[0].URI != "kanban://abc123/board" {
		t.Fatalf("notes[0] = %q, want board notification first", notes[0].URI)
	}
	if notes[1].URI != "kanban://abc123/cards/ID1" || notes[2].URI != "kanban://abc123/cards/ID2" {
		t.Fatalf("unexpected card order: %+v", notes)
	}
}

func TestDoWatchFlushOverflowStreakDegradesToBoardOnly(t *testing.T) {
	now := time.Now()
	notes, _ := doWatchFlush("abc123", []string{"ID1", "ID2"}, 3, now, now.Add(-time.Second))

	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1 (board-only)", len(notes))
	}
	if notes[0].URI != "kanban://abc123/board" {
		t.Fatalf("notes[0] = %q, want board notification", notes[0].URI)
	}
}

func TestDoWatchFlushEmptyIDsStillEmitsBoard(t *testing.T) {
	now := time.Now()
	notes, _ := doWatchFlush("abc123", nil, 0, now, now)

	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}
}

func TestStartTwiceReportsAlreadyWatching(t *testing.T) {
	w := newTestWatcher(t)

	res, err := w.Start()
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if !res.Started {
		t.Fatalf("expected Started=true on first call")
	}
	defer w.Stop()

	res2, err := w.Start()
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if res2.Started || !res2.AlreadyWatching {
		t.Fatalf("expected AlreadyWatching on second call, got %+v", res2)
	}
}

func TestStopOnIdleIsNoop(t *testing.T) {
	w := newTestWatcher(t)
	if res := w.Stop(); res.Stopped {
		t.Fatalf("expected Stopped=false on idle watcher")
	}
}
