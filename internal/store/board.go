// Package store composes PathGuard, IdGen, CardFile, ColumnsConfig,
// CardIndex, and RelationsIndex into the board-level operations spec §4.7
// names: new, move, done, update, list, get, tree, relations.set, plus
// the maintenance operations (rebuild, compact, lint) spec §6's CLI
// surface exposes.
package store

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/cardindex"
	"github.com/kanban-mcp/kanban/internal/columns"
	"github.com/kanban-mcp/kanban/internal/idgen"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/pathguard"
	"github.com/kanban-mcp/kanban/internal/relations"
)

const (
	kanbanDir   = ".kanban"
	columnsFile = "columns.toml"
	cardsFile   = "cards.ndjson"
	relFile     = "relations.ndjson"
)

// Notifier receives the URIs that changed as a result of a mutation, in
// the order spec §5 requires: card file written, then index updated,
// then notification emitted. The store calls Notify once per mutating
// operation with every affected URI already in board-then-cards order;
// batching/debouncing across calls is the Watcher's job, not the
// store's.
type Notifier interface {
	Notify(uris []string)
}

type noopNotifier struct{}

func (noopNotifier) Notify([]string) {}

// Board is a single-writer handle onto one board directory. All mutating
// operations serialize through mu; reads take the read lock and observe
// a consistent snapshot for the duration of the call (spec §5).
type Board struct {
	mu sync.RWMutex

	guard   *pathguard.Guard
	cols    *columns.Config
	cardIdx *cardindex.Index
	relIdx  *relations.Index
	ids     *idgen.Generator

	notifier Notifier
}

// Open loads a board rooted at root: resolves the path, loads
// columns.toml, and binds the card/relations indices. It does not
// perform any FS mutation.
func Open(root string) (*Board, error) {
	guard, err := pathguard.New(root)
	if err != nil {
		return nil, err
	}

	colsPath, err := guard.Resolve(filepath.Join(kanbanDir, columnsFile))
	if err != nil {
		return nil, err
	}
	cols, err := columns.Load(colsPath)
	if err != nil {
		return nil, err
	}

	cardsPath, err := guard.Resolve(filepath.Join(kanbanDir, cardsFile))
	if err != nil {
		return nil, err
	}
	relPath, err := guard.Resolve(filepath.Join(kanbanDir, relFile))
	if err != nil {
		return nil, err
	}

	return &Board{
		guard:    guard,
		cols:     cols,
		cardIdx:  cardindex.Open(cardsPath),
		relIdx:   relations.Open(relPath),
		ids:      idgen.New(),
		notifier: noopNotifier{},
	}, nil
}

// SetNotifier installs the sink that receives changed-URI batches from
// mutating operations. Must be called before any mutation if the caller
// wants notifications; defaults to a no-op sink.
func (b *Board) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	b.notifier = n
}

// BoardID returns the opaque board identifier derived from the
// canonical root (spec §3).
func (b *Board) BoardID() string { return b.guard.BoardID() }

// Columns exposes the loaded columns.toml for callers that need WIP
// limits or partition settings (e.g. the CLI, the resources layer).
func (b *Board) Columns() *columns.Config { return b.cols }

func (b *Board) boardURI() string { return "kanban://" + b.BoardID() + "/board" }

func (b *Board) cardURI(id string) string {
	return "kanban://" + b.BoardID() + "/cards/" + strings.ToUpper(id)
}

// notify emits the board URI followed by one URI per id, in first-seen
// order, matching the ordering the Watcher's flush logic also produces
// (spec §4.8, §5).
func (b *Board) notify(ids ...string) {
	uris := make([]string, 0, len(ids)+1)
	uris = append(uris, b.boardURI())
	seen := map[string]bool{}
	for _, id := range ids {
		u := b.cardURI(id)
		if seen[u] {
			continue
		}
		seen[u] = true
		uris = append(uris, u)
	}
	b.notifier.Notify(uris)
}

// columnDir returns the absolute path to a hot column's directory.
func (b *Board) columnDir(column string) (string, error) {
	return b.guard.Resolve(filepath.Join(kanbanDir, column))
}

// donePath computes the partitioned path under done/ for completedAt,
// per spec §3's done.partition rules.
func (b *Board) donePath(completedAt time.Time) (string, error) {
	var rel string
	switch b.cols.DonePartition {
	case columns.PartitionMonth:
		rel = filepath.Join(kanbanDir, "done", completedAt.UTC().Format("2006"), completedAt.UTC().Format("01"))
	case columns.PartitionQuarter:
		q := (int(completedAt.UTC().Month())-1)/3 + 1
		rel = filepath.Join(kanbanDir, "done", completedAt.UTC().Format("2006"), "Q"+strconv.Itoa(q))
	default:
		rel = filepath.Join(kanbanDir, "done")
	}
	return b.guard.Resolve(rel)
}

// notesPath returns the absolute path to a card's notes journal.
func (b *Board) notesPath(id string) (string, error) {
	return b.guard.Resolve(filepath.Join(kanbanDir, "notes", strings.ToUpper(id)+".ndjson"))
}

// relPathFromAbs converts an absolute path under the board root into the
// board-relative slash-separated path stored in CardIndex records.
func (b *Board) relPathFromAbs(abs string) string {
	rel, err := filepath.Rel(b.guard.Root(), abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// readCard loads and parses the card file for rec.
func (b *Board) readCard(rec cardindex.Record) (*cardfile.Card, string, error) {
	abs, err := b.guard.Resolve(rec.Path)
	if err != nil {
		return nil, "", err
	}
	card, err := cardfile.ReadFile(abs)
	if err != nil {
		return nil, "", err
	}
	return card, abs, nil
}

// lookupRecord finds a CardIndex record by id or returns not-found.
func (b *Board) lookupRecord(id string) (cardindex.Record, error) {
	rec, ok, err := b.cardIdx.Lookup(id)
	if err != nil {
		return cardindex.Record{}, err
	}
	if !ok {
		return cardindex.Record{}, kerr.NotFoundf("card %q not found", id)
	}
	return rec, nil
}

// validIDSet loads the card index and returns the set of known ids, for
// relations validation (I6).
func (b *Board) validIDSet() (map[string]bool, []cardindex.Record, error) {
	records, err := b.cardIdx.Load()
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[strings.ToUpper(r.ID)] = true
	}
	return set, records, nil
}

// columnSortIndex returns the declaration order of a record's column,
// for the list operation's sort key; unknown columns sort last.
func (b *Board) columnSortIndex(column string) int {
	if i, ok := b.cols.Order(column); ok {
		return i
	}
	return len(b.cols.Columns)
}

func sortRecordsForList(records []cardindex.Record, order func(string) int) {
	sort.SliceStable(records, func(i, j int) bool {
		oi, oj := order(records[i].Column), order(records[j].Column)
		if oi != oj {
			return oi < oj
		}
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
}
