package store

import (
	"os"
	"path/filepath"

	"github.com/kanban-mcp/kanban/internal/kerr"
)

// ColumnsTOML returns the raw bytes of columns.toml, for the
// kanban://{board}/columns resource (spec §6), which serves the
// configuration verbatim rather than a reformatted view.
func (b *Board) ColumnsTOML() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	path, err := b.guard.Resolve(filepath.Join(kanbanDir, columnsFile))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerr.Wrap(err, "read columns.toml")
	}
	return data, nil
}

// CardMarkdown renders a card's on-disk Markdown form, for the
// kanban://{board}/cards/{ULID} resource.
func (b *Board) CardMarkdown(cardID string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, err := b.lookupRecord(cardID)
	if err != nil {
		return nil, err
	}
	card, _, err := b.readCard(rec)
	if err != nil {
		return nil, err
	}
	return card.Serialize(), nil
}
