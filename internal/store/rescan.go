package store

import (
	"os"
	"sort"

	"github.com/kanban-mcp/kanban/internal/pathguard"
)

// RescanHotColumns implements watcher.Rescanner: it walks every declared
// hot column directory and returns up to maxBatch card ids found,
// sorted for determinism. Used on watcher overflow events and
// subscription-error recovery (spec §4.8).
func (b *Board) RescanHotColumns(maxBatch int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []string
	for _, col := range b.cols.HotColumns {
		dir, err := b.columnDir(col)
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if id, ok := pathguard.ParseCardFilename(e.Name()); ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	if maxBatch > 0 && len(ids) > maxBatch {
		ids = ids[:maxBatch]
	}
	return ids, nil
}
