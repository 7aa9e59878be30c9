package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/cardindex"
	"github.com/kanban-mcp/kanban/internal/columns"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/pathguard"
)

var validPriorities = map[string]bool{"P0": true, "P1": true, "P2": true, "P3": true}

// NewOptions carries the arguments for Board.New.
type NewOptions struct {
	Title     string
	Column    string // defaults to "backlog"
	Lane      string
	Priority  string // defaults to "P2"
	Size      int
	Labels    []string
	Assignees []string
	Body      string
}

// NewResult is the payload of a successful new() call.
type NewResult struct {
	ID       string
	Path     string
	Warnings []string
}

// New allocates an id, writes the card file, upserts the index, and
// notifies. Fails invalid-argument on missing title, unknown column, or
// malformed priority; retries once with a fresh id on a (vanishingly
// rare) id collision before surfacing conflict.
func (b *Board) New(opts NewOptions) (NewResult, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return NewResult{}, kerr.Invalid("title is required")
	}
	column := opts.Column
	if column == "" {
		column = "backlog"
	}
	if !b.cols.HasColumn(column) {
		return NewResult{}, kerr.Invalid("unknown column %q", column)
	}
	if strings.EqualFold(column, "done") {
		return NewResult{}, kerr.Invalid("new cards cannot be created directly in done; use done()")
	}
	priority := opts.Priority
	if priority == "" {
		priority = "P2"
	}
	if !validPriorities[priority] {
		return NewResult{}, kerr.Invalid("invalid priority %q", priority)
	}
	if opts.Size < 0 {
		return NewResult{}, kerr.Invalid("size must be non-negative")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var warnings []string
	for attempt := 0; attempt < 2; attempt++ {
		id := b.ids.Next()
		res, err := b.tryCreate(id, column, priority, opts)
		if err == nil {
			res.Warnings = warnings
			b.notify(id)
			return res, nil
		}
		if kerr.KindOf(err) == kerr.Conflict && attempt == 0 {
			warnings = append(warnings, fmt.Sprintf("id %s collided, retried with a fresh id", id))
			continue
		}
		return NewResult{}, err
	}
	return NewResult{}, kerr.Conflictf("id collision persisted after retry")
}

func (b *Board) tryCreate(id, column, priority string, opts NewOptions) (NewResult, error) {
	if _, ok, err := b.cardIdx.Lookup(id); err != nil {
		return NewResult{}, err
	} else if ok {
		return NewResult{}, kerr.Conflictf("id %s already exists", id)
	}

	dir, err := b.columnDir(column)
	if err != nil {
		return NewResult{}, err
	}
	name := pathguard.CardFilename(id, opts.Title)
	abs := filepath.Join(dir, name)
	if _, err := os.Stat(abs); err == nil {
		return NewResult{}, kerr.Conflictf("filename %s already exists", name)
	}

	now := time.Now().UTC()
	card := &cardfile.Card{
		ID:        id,
		Title:     opts.Title,
		Lane:      opts.Lane,
		Priority:  priority,
		Size:      opts.Size,
		Labels:    opts.Labels,
		Assignees: opts.Assignees,
		CreatedAt: &now,
		Body:      opts.Body,
	}

	if err := cardfile.WriteFile(abs, card.Serialize(), cardfile.AtomicWriteOptions{}); err != nil {
		return NewResult{}, err
	}

	rec := cardindex.Record{
		ID:        id,
		Title:     opts.Title,
		Column:    column,
		Lane:      opts.Lane,
		Labels:    opts.Labels,
		Assignees: opts.Assignees,
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
		Path:      b.relPathFromAbs(abs),
	}
	if err := b.cardIdx.Upsert(rec); err != nil {
		os.Remove(abs)
		return NewResult{}, err
	}

	return NewResult{ID: id, Path: rec.Path}, nil
}

// MoveResult is the payload of a successful move() call.
type MoveResult struct {
	Path     string
	Warnings []string
}

// Move relocates a card to toColumn. Moving to the same column is a
// no-op success (idempotent). Moving into "done" is rejected; callers
// must use Done so completed_at is set consistently.
func (b *Board) Move(cardID, toColumn string) (MoveResult, error) {
	if strings.EqualFold(toColumn, "done") {
		return MoveResult{}, kerr.Invalid("use done() to move a card into done")
	}
	if !b.cols.HasColumn(toColumn) {
		return MoveResult{}, kerr.Invalid("unknown column %q", toColumn)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.lookupRecord(cardID)
	if err != nil {
		return MoveResult{}, err
	}
	if strings.EqualFold(rec.Column, toColumn) {
		return MoveResult{Path: rec.Path}, nil
	}

	var warnings []string
	if limit, ok := b.cols.WIPLimit(toColumn); ok && limit > 0 {
		count, err := b.countInColumn(toColumn)
		if err != nil {
			return MoveResult{}, err
		}
		if count >= limit {
			msg := fmt.Sprintf("WIP limit %d for column %q reached", limit, toColumn)
			if b.cols.WIPEnforce == columns.WIPError {
				return MoveResult{}, kerr.Conflictf("%s", msg)
			}
			warnings = append(warnings, msg)
		}
	}

	srcAbs, err := b.guard.Resolve(rec.Path)
	if err != nil {
		return MoveResult{}, err
	}

	dstDir, err := b.columnDir(toColumn)
	if err != nil {
		return MoveResult{}, err
	}
	dstAbs := filepath.Join(dstDir, filepath.Base(srcAbs))

	if err := renameAtomic(srcAbs, dstAbs); err != nil {
		return MoveResult{}, err
	}

	now := time.Now().UTC()
	rec.Column = toColumn
	rec.Path = b.relPathFromAbs(dstAbs)
	rec.UpdatedAt = now.Format(time.RFC3339)
	if err := b.cardIdx.Upsert(rec); err != nil {
		return MoveResult{}, err
	}

	b.notify(cardID)
	return MoveResult{Path: rec.Path, Warnings: warnings}, nil
}

// countInColumn counts CardIndex rows currently in column.
func (b *Board) countInColumn(column string) (int, error) {
	records, err := b.cardIdx.Load()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		if strings.EqualFold(r.Column, column) {
			n++
		}
	}
	return n, nil
}

// renameAtomic moves src to dst, creating dst's parent directory as
// needed. os.Rename is already atomic within one filesystem, matching
// the write contract of spec §4.3.
func renameAtomic(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return kerr.Wrap(err, "create directory %q", filepath.Dir(dst))
	}
	if err := os.Rename(src, dst); err != nil {
		return kerr.Wrap(err, "rename %q to %q", src, dst)
	}
	return nil
}

// DoneResult is the payload of a successful done() call.
type DoneResult struct {
	Path        string
	CompletedAt time.Time
	Warnings    []string
}

// Done sets completed_at and moves the card under done/<partition>/.
// Calling Done twice on an already-done card is idempotent and returns
// the original completed_at unchanged.
func (b *Board) Done(cardID string) (DoneResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.lookupRecord(cardID)
	if err != nil {
		return DoneResult{}, err
	}

	srcAbs, err := b.guard.Resolve(rec.Path)
	if err != nil {
		return DoneResult{}, err
	}
	card, err := cardfile.ReadFile(srcAbs)
	if err != nil {
		return DoneResult{}, err
	}

	if strings.EqualFold(rec.Column, "done") && card.CompletedAt != nil {
		return DoneResult{Path: rec.Path, CompletedAt: *card.CompletedAt}, nil
	}

	var warnings []string
	if err := b.checkParentDonePolicy(cardID, &warnings); err != nil {
		return DoneResult{}, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	card.CompletedAt = &now
	card.MarkOptionalSeen("completed_at")

	dstDir, err := b.donePath(now)
	if err != nil {
		return DoneResult{}, err
	}
	dstAbs := filepath.Join(dstDir, filepath.Base(srcAbs))

	if err := cardfile.WriteFile(srcAbs, card.Serialize(), cardfile.AtomicWriteOptions{}); err != nil {
		return DoneResult{}, err
	}
	if !pathguard.EqualPath(srcAbs, dstAbs) {
		if err := renameAtomic(srcAbs, dstAbs); err != nil {
			return DoneResult{}, err
		}
	}

	rec.Column = "done"
	rec.Path = b.relPathFromAbs(dstAbs)
	rec.CompletedAt = now.Format(time.RFC3339)
	rec.UpdatedAt = now.Format(time.RFC3339)
	if err := b.cardIdx.Upsert(rec); err != nil {
		return DoneResult{}, err
	}

	b.notify(cardID)
	return DoneResult{Path: rec.Path, CompletedAt: now, Warnings: warnings}, nil
}

// checkParentDonePolicy implements spec §4.7's parent_done_policy: if
// cardID has children still open, enforce/warn/ignore per config.
func (b *Board) checkParentDonePolicy(cardID string, warnings *[]string) error {
	edges, err := b.relIdx.Load()
	if err != nil {
		return err
	}
	children := make([]string, 0)
	for _, e := range edges {
		if e.Type == "parent" && strings.EqualFold(e.To, cardID) {
			children = append(children, e.From)
		}
	}
	if len(children) == 0 {
		return nil
	}

	var openChildren []string
	for _, childID := range children {
		rec, ok, err := b.cardIdx.Lookup(childID)
		if err != nil {
			return err
		}
		if ok && !strings.EqualFold(rec.Column, "done") {
			openChildren = append(openChildren, childID)
		}
	}
	if len(openChildren) == 0 {
		return nil
	}

	switch b.cols.ParentDonePolicy {
	case columns.ParentDoneEnforce:
		return kerr.Conflictf("card has open children: %s", strings.Join(openChildren, ", "))
	case columns.ParentDoneIgnore:
		return nil
	default:
		*warnings = append(*warnings, fmt.Sprintf("card has open children: %s", strings.Join(openChildren, ", ")))
		return nil
	}
}
