package store

import (
	"time"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/notes"
)

// NotesAdd appends a note to cardID's journal and refreshes the card's
// last_note_at front-matter field and index row.
func (b *Board) NotesAdd(cardID, author, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.lookupRecord(cardID)
	if err != nil {
		return err
	}

	path, err := b.notesPath(cardID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	entry := notes.Entry{At: now.Format(time.RFC3339), Author: author, Text: text}
	if err := notes.Open(path).Append(entry); err != nil {
		return err
	}

	abs, err := b.guard.Resolve(rec.Path)
	if err != nil {
		return err
	}
	card, err := cardfile.ReadFile(abs)
	if err != nil {
		return err
	}
	card.MarkOptionalSeen("last_note_at")
	card.LastNoteAt = &now
	if err := cardfile.WriteFile(abs, card.Serialize(), cardfile.AtomicWriteOptions{}); err != nil {
		return err
	}

	rec.UpdatedAt = now.Format(time.RFC3339)
	if err := b.cardIdx.Upsert(rec); err != nil {
		return err
	}

	b.notify(cardID)
	return nil
}

// NotesList returns up to limit notes for cardID, most recent first.
func (b *Board) NotesList(cardID string, limit int) ([]notes.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.lookupRecord(cardID); err != nil {
		return nil, err
	}
	path, err := b.notesPath(cardID)
	if err != nil {
		return nil, err
	}
	return notes.Open(path).List(limit)
}
