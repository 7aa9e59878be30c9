// Package relations maintains .kanban/relations.ndjson: the parent
// (tree), depends (DAG), and relates (weak) edge sets between cards, with
// diff-applied mutation, invariant enforcement, and a front-matter-
// authoritative fallback full reindex (spec §4.6, §9).
package relations

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/kerr"
)

// EdgeType is one of the three relation kinds.
type EdgeType string

const (
	Parent  EdgeType = "parent"
	Depends EdgeType = "depends"
	Relates EdgeType = "relates"
)

// WildcardTo marks a remove entry that expands to "every parent edge
// with this From", per spec §4.6's wildcard remove.
const WildcardTo = "*"

// Edge is one line of relations.ndjson.
type Edge struct {
	Type EdgeType `json:"type"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

func (e Edge) key() string { return string(e.Type) + "\x00" + e.From + "\x00" + e.To }

// Index wraps one relations.ndjson file on disk.
type Index struct {
	path string
}

// Open returns an Index bound to path; it does not need to exist yet.
func Open(path string) *Index {
	return &Index{path: path}
}

// Load reads every edge currently on disk.
func (idx *Index) Load() ([]Edge, error) {
	f, err := os.Open(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kerr.Wrap(err, "open relations index %q", idx.path)
	}
	defer f.Close()

	var edges []Edge
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Edge
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, kerr.Wrap(err, "parse relations index line")
		}
		e.From = strings.ToUpper(e.From)
		if e.To != WildcardTo {
			e.To = strings.ToUpper(e.To)
		}
		edges = append(edges, e)
	}
	if err := sc.Err(); err != nil {
		return nil, kerr.Wrap(err, "scan relations index %q", idx.path)
	}
	sortEdges(edges)
	return edges, nil
}

// Save rewrites the whole index atomically, sorted by (type, from, to).
func (idx *Index) Save(edges []Edge) error {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sortEdges(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		line, err := json.Marshal(e)
		if err != nil {
			return kerr.Wrap(err, "marshal relations edge")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return cardfile.WriteFile(idx.path, buf.Bytes(), cardfile.AtomicWriteOptions{})
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Type != edges[j].Type {
			return edges[i].Type < edges[j].Type
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}

// ApplyResult carries the new edge set and the set of child ids whose
// parent changed (added, removed, or replaced), for the caller to patch
// each child's front-matter "parent" field.
type ApplyResult struct {
	Edges          []Edge
	ParentChildIDs []string // ids whose resolved parent differs from before
	NewParentOf    map[string]string // id -> new parent id, "" meaning cleared
}

// Apply computes and validates the result of adding/removing edges,
// without touching the filesystem. validIDs must contain every id that
// resolves to an existing card (I6); current is the edge set currently
// on disk. Apply returns a *kerr.Error with Kind=Conflict on any
// invariant violation (I3, I4, I5) and leaves current conceptually
// untouched — callers persist ApplyResult.Edges only on success.
func Apply(current []Edge, add, remove []Edge, validIDs map[string]bool) (ApplyResult, error) {
	if err := validateBatch(add, remove, validIDs); err != nil {
		return ApplyResult{}, err
	}

	before := parentOf(current)

	working := make(map[string]Edge, len(current))
	for _, e := range current {
		working[e.key()] = e
	}

	for _, r := range remove {
		if r.Type == Parent && r.To == WildcardTo {
			for k, e := range working {
				if e.Type == Parent && e.From == r.From {
					delete(working, k)
				}
			}
			continue
		}
		delete(working, r.key())
	}

	for _, a := range add {
		working[a.key()] = a
	}

	result := make([]Edge, 0, len(working))
	for _, e := range working {
		result = append(result, e)
	}
	sortEdges(result)

	if err := checkParentUnique(result); err != nil {
		return ApplyResult{}, err
	}
	if err := checkParentForest(result); err != nil {
		return ApplyResult{}, err
	}
	if err := checkDependsDAG(result); err != nil {
		return ApplyResult{}, err
	}

	after := parentOf(result)
	var changed []string
	newParent := map[string]string{}
	seen := map[string]bool{}
	for child := range before {
		seen[child] = true
	}
	for child := range after {
		seen[child] = true
	}
	for child := range seen {
		if before[child] != after[child] {
			changed = append(changed, child)
			newParent[child] = after[child]
		}
	}
	sort.Strings(changed)

	return ApplyResult{Edges: result, ParentChildIDs: changed, NewParentOf: newParent}, nil
}

func validateBatch(add, remove []Edge, validIDs map[string]bool) error {
	validateEdge := func(e Edge, allowWildcard bool) error {
		if e.Type != Parent && e.Type != Depends && e.Type != Relates {
			return kerr.Invalid("unknown relation type %q", e.Type)
		}
		if e.From == "" {
			return kerr.Invalid("edge missing from")
		}
		if e.To == "" {
			return kerr.Invalid("edge missing to")
		}
		if e.To == WildcardTo {
			if !allowWildcard || e.Type != Parent {
				return kerr.Invalid("wildcard to=\"*\" only valid in remove with type=parent")
			}
			if !validIDs[e.From] {
				return kerr.NotFoundf("unknown card %q", e.From)
			}
			return nil
		}
		if !validIDs[e.From] {
			return kerr.NotFoundf("unknown card %q", e.From)
		}
		if !validIDs[e.To] {
			return kerr.NotFoundf("unknown card %q", e.To)
		}
		if e.Type == Parent && e.From == e.To {
			return kerr.Conflictf("card %q cannot be its own parent", e.From)
		}
		return nil
	}

	for _, a := range add {
		if err := validateEdge(a, false); err != nil {
			return err
		}
	}
	for _, r := range remove {
		if err := validateEdge(r, true); err != nil {
			return err
		}
	}
	return nil
}

// parentOf returns, for every child with a parent edge, its parent id.
func parentOf(edges []Edge) map[string]string {
	m := map[string]string{}
	for _, e := range edges {
		if e.Type == Parent {
			m[e.From] = e.To
		}
	}
	return m
}

// checkParentUnique enforces I3: at most one parent edge per child.
func checkParentUnique(edges []Edge) error {
	count := map[string]int{}
	for _, e := range edges {
		if e.Type == Parent {
			count[e.From]++
			if count[e.From] > 1 {
				return kerr.Conflictf("card %q would have more than one parent", e.From)
			}
		}
	}
	return nil
}

// checkParentForest enforces I4: the parent graph has no cycle and no
// self-parent, via DFS from every node that has a parent edge.
func checkParentForest(edges []Edge) error {
	parent := parentOf(edges)
	for start := range parent {
		visited := map[string]bool{start: true}
		cur := start
		for {
			next, ok := parent[cur]
			if !ok {
				break
			}
			if visited[next] {
				return kerr.Conflictf("parent edges form a cycle involving %q", next)
			}
			visited[next] = true
			cur = next
		}
	}
	return nil
}

// checkDependsDAG enforces I5 via Kahn's algorithm: the depends edges,
// interpreted from->to as "from depends on to", must admit a topological
// order.
func checkDependsDAG(edges []Edge) error {
	indegree := map[string]int{}
	adj := map[string][]string{}
	nodes := map[string]bool{}

	for _, e := range edges {
		if e.Type != Depends {
			continue
		}
		nodes[e.From] = true
		nodes[e.To] = true
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	var queue []string
	for n := range nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	visitedCount := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visitedCount++
		var next []string
		for _, m := range adj[n] {
			indegree[m]--
			if indegree[m] == 0 {
				next = append(next, m)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if visitedCount != len(nodes) {
		return kerr.Conflictf("depends edges contain a cycle")
	}
	return nil
}

// CardRef is the minimal view of a card Reindex needs: its own id and
// the three relation-bearing front-matter fields.
type CardRef struct {
	ID        string
	Parent    string
	DependsOn []string
	RelatesTo []string
}

// Reindex rebuilds the full edge set from front matter alone, per spec
// §4.6/§9: front matter is the source of truth, the NDJSON is a cache.
// A relates_to entry never implies its reverse; callers wanting a
// bidirectional relation must declare both directions (see DESIGN.md).
func Reindex(cards []CardRef) []Edge {
	var edges []Edge
	for _, c := range cards {
		if c.Parent != "" {
			edges = append(edges, Edge{Type: Parent, From: c.ID, To: c.Parent})
		}
		for _, dep := range c.DependsOn {
			edges = append(edges, Edge{Type: Depends, From: c.ID, To: dep})
		}
		for _, rel := range c.RelatesTo {
			edges = append(edges, Edge{Type: Relates, From: c.ID, To: rel})
		}
	}
	sortEdges(edges)
	return dedupe(edges)
}

func dedupe(edges []Edge) []Edge {
	seen := map[string]bool{}
	out := edges[:0]
	for _, e := range edges {
		if seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		out = append(out, e)
	}
	return out
}

// ChildrenOf groups parent edges by their To (parent) id, for tree BFS
// (spec §4.7's tree operation): children[parentID] lists every id with
// a parent edge pointing at parentID.
func ChildrenOf(edges []Edge) map[string][]string {
	m := map[string][]string{}
	for _, e := range edges {
		if e.Type == Parent {
			m[e.To] = append(m[e.To], e.From)
		}
	}
	return m
}
