package store

import (
	"sort"
	"strings"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/cardindex"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/relations"
)

// ListQuery carries list()'s filter and pagination arguments.
type ListQuery struct {
	Columns     []string
	Lane        string
	Assignee    string
	Label       string
	Priority    string
	Query       string
	IncludeDone bool
	Offset      int
	Limit       int // defaults to 200
}

// ListResult is the payload of a successful list() call.
type ListResult struct {
	Items      []cardindex.Record
	NextOffset *int
}

// List reads CardIndex, filters in memory, and sorts by (column order,
// created_at asc, id asc). query matches a substring against id and
// title always; it additionally falls back to a body read only when the
// caller supplied both query and (includeDone or an unfiltered column
// set), per spec §4.7 — a deliberate degrade-to-index-only otherwise.
func (b *Board) List(q ListQuery) (ListResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	if q.Offset < 0 {
		return ListResult{}, kerr.Invalid("offset must be non-negative")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	records, err := b.cardIdx.Load()
	if err != nil {
		return ListResult{}, err
	}

	columnSet := map[string]bool{}
	for _, c := range q.Columns {
		columnSet[strings.ToLower(c)] = true
	}
	bodySearch := q.Query != "" && (q.IncludeDone || len(q.Columns) == 0)

	filtered := records[:0:0]
	for _, r := range records {
		if len(columnSet) > 0 && !columnSet[strings.ToLower(r.Column)] {
			continue
		}
		if !q.IncludeDone && strings.EqualFold(r.Column, "done") {
			continue
		}
		if q.Lane != "" && !strings.EqualFold(r.Lane, q.Lane) {
			continue
		}
		if q.Assignee != "" && !containsFold(r.Assignees, q.Assignee) {
			continue
		}
		if q.Label != "" && !containsFold(r.Labels, q.Label) {
			continue
		}
		if q.Priority != "" {
			card, _, err := b.readCard(r)
			if err != nil {
				continue
			}
			if !strings.EqualFold(card.Priority, q.Priority) {
				continue
			}
		}
		if q.Query != "" && !b.matchesQuery(r, q.Query, bodySearch) {
			continue
		}
		filtered = append(filtered, r)
	}

	sortRecordsForList(filtered, func(col string) int { return b.columnSortIndex(col) })

	total := len(filtered)
	if q.Offset >= total {
		return ListResult{Items: nil, NextOffset: nil}, nil
	}
	end := q.Offset + limit
	if end > total {
		end = total
	}
	page := filtered[q.Offset:end]

	var next *int
	if end < total {
		n := end
		next = &n
	}
	return ListResult{Items: page, NextOffset: next}, nil
}

func containsFold(ss []string, target string) bool {
	for _, s := range ss {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}

func (b *Board) matchesQuery(r cardindex.Record, query string, bodySearch bool) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(r.ID), q) || strings.Contains(strings.ToLower(r.Title), q) {
		return true
	}
	if !bodySearch {
		return false
	}
	card, _, err := b.readCard(r)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(card.Body), q)
}

// GetResult is the payload of a successful get() call.
type GetResult struct {
	Card   *cardfile.Card
	Column string
	Path   string
}

// Get returns the full card (front matter + body) plus its resolved
// column and path. It backs the kanban/get tool and the
// cards/{ULID}/state resource read.
func (b *Board) Get(cardID string) (GetResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, err := b.lookupRecord(cardID)
	if err != nil {
		return GetResult{}, err
	}
	card, _, err := b.readCard(rec)
	if err != nil {
		return GetResult{}, err
	}
	return GetResult{Card: card, Column: rec.Column, Path: rec.Path}, nil
}

// TreeNode is one node of tree()'s BFS result.
type TreeNode struct {
	ID       string
	Title    string
	Column   string
	Children []*TreeNode
}

// Tree performs a BFS from root via parent -> children resolved from
// RelationsIndex, to depth levels (0 returns the root alone). Children
// at each level are ordered by (created_at asc, id asc).
func (b *Board) Tree(root string, depth int) (*TreeNode, error) {
	if depth < 0 {
		return nil, kerr.Invalid("depth must be non-negative")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	records, err := b.cardIdx.Load()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]cardindex.Record, len(records))
	for _, r := range records {
		byID[strings.ToUpper(r.ID)] = r
	}

	rootRec, ok := byID[strings.ToUpper(root)]
	if !ok {
		return nil, kerr.NotFoundf("card %q not found", root)
	}

	edges, err := b.relIdx.Load()
	if err != nil {
		return nil, err
	}
	children := relations.ChildrenOf(edges)

	return buildTree(rootRec, depth, byID, children), nil
}

func buildTree(rec cardindex.Record, depth int, byID map[string]cardindex.Record, children map[string][]string) *TreeNode {
	node := &TreeNode{ID: rec.ID, Title: rec.Title, Column: rec.Column}
	if depth == 0 {
		return node
	}
	childIDs := append([]string(nil), children[strings.ToUpper(rec.ID)]...)
	sort.SliceStable(childIDs, func(i, j int) bool {
		ci, cj := byID[strings.ToUpper(childIDs[i])], byID[strings.ToUpper(childIDs[j])]
		if ci.CreatedAt != cj.CreatedAt {
			return ci.CreatedAt < cj.CreatedAt
		}
		return ci.ID < cj.ID
	})
	for _, cid := range childIDs {
		childRec, ok := byID[strings.ToUpper(cid)]
		if !ok {
			continue
		}
		node.Children = append(node.Children, buildTree(childRec, depth-1, byID, children))
	}
	return node
}
