package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/cardindex"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/pathguard"
	"github.com/kanban-mcp/kanban/internal/relations"
)

// RebuildOptions controls which columns Rebuild walks.
type RebuildOptions struct {
	Cold bool // also scan every declared column outside hot_columns, done/ included
}

// Rebuild walks the board's column directories, parsing every
// "<ULID>__*.md" file and emitting one CardIndex record per card,
// sorted by id for determinism (spec §4.5's rebuild()). Hot columns are
// always scanned; cold columns (every declared column outside
// hot_columns, such as done/) only when opts.Cold is set.
func (b *Board) Rebuild(opts RebuildOptions) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dirs, err := b.columnsToScan(opts.Cold)
	if err != nil {
		return 0, err
	}

	var records []cardindex.Record
	for _, d := range dirs {
		found, err := b.scanColumnDir(d.abs, d.column)
		if err != nil {
			return 0, err
		}
		records = append(records, found...)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	if err := b.cardIdx.Save(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

type columnScanTarget struct {
	column string
	abs    string
}

func (b *Board) columnsToScan(cold bool) ([]columnScanTarget, error) {
	var targets []columnScanTarget
	seen := map[string]bool{}
	for _, key := range b.cols.HotColumns {
		if seen[strings.ToLower(key)] {
			continue
		}
		seen[strings.ToLower(key)] = true
		abs, err := b.columnDir(key)
		if err != nil {
			return nil, err
		}
		targets = append(targets, columnScanTarget{column: key, abs: abs})
	}
	if cold {
		for _, col := range b.cols.Columns {
			if seen[strings.ToLower(col.Key)] {
				continue
			}
			abs, err := b.columnDir(col.Key)
			if err != nil {
				return nil, err
			}
			targets = append(targets, columnScanTarget{column: col.Key, abs: abs})
		}
	}
	return targets, nil
}

// scanColumnDir walks dir recursively (done/ is partitioned into
// yyyy/mm or yyyy/Qn subdirectories) collecting every card file.
func (b *Board) scanColumnDir(dir, column string) ([]cardindex.Record, error) {
	var out []cardindex.Record
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, ok := pathguard.ParseCardFilename(d.Name())
		if !ok {
			return nil
		}
		card, err := cardfile.ReadFile(path)
		if err != nil {
			return kerr.Wrap(err, "rebuild: parse %q", path)
		}
		rec := cardindex.Record{
			ID:        id,
			Title:     card.Title,
			Column:    column,
			Lane:      card.Lane,
			Assignees: card.Assignees,
			Labels:    card.Labels,
			Path:      b.relPathFromAbs(path),
		}
		if card.CreatedAt != nil {
			rec.CreatedAt = card.CreatedAt.UTC().Format(time.RFC3339)
		}
		if card.CompletedAt != nil {
			rec.CompletedAt = card.CompletedAt.UTC().Format(time.RFC3339)
		}
		rec.UpdatedAt = rec.CreatedAt
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, kerr.Wrap(err, "rebuild: walk %q", dir)
	}
	return out, nil
}

// CompactResult summarizes what Compact did.
type CompactResult struct {
	Cards     int
	Relations int
}

// Compact runs a full cold-column CardIndex rebuild and a full
// RelationsIndex reindex, then rewrites both files sorted, atomically.
// It is the only place a cold scan happens outside explicit
// Rebuild(Cold: true) (spec §4.7's compact()).
func (b *Board) Compact() (CompactResult, error) {
	n, err := b.Rebuild(RebuildOptions{Cold: true})
	if err != nil {
		return CompactResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.cardIdx.Load()
	if err != nil {
		return CompactResult{}, err
	}
	refs := make([]relations.CardRef, 0, len(records))
	for _, rec := range records {
		abs, err := b.guard.Resolve(rec.Path)
		if err != nil {
			continue
		}
		card, err := cardfile.ReadFile(abs)
		if err != nil {
			continue
		}
		refs = append(refs, relations.CardRef{
			ID:        card.ID,
			Parent:    card.Parent,
			DependsOn: card.DependsOn,
			RelatesTo: card.RelatesTo,
		})
	}
	edges := relations.Reindex(refs)
	if err := b.relIdx.Save(edges); err != nil {
		return CompactResult{}, err
	}

	return CompactResult{Cards: n, Relations: len(edges)}, nil
}

// LintSeverity ranks a lint finding for the --fail-on CLI threshold.
type LintSeverity string

const (
	LintInfo  LintSeverity = "info"
	LintWarn  LintSeverity = "warn"
	LintError LintSeverity = "error"
)

// LintFinding is one invariant violation surfaced by Lint.
type LintFinding struct {
	Severity  LintSeverity
	Invariant string
	Detail    string
	Path      string
}

// Lint walks the card and relations indices and reports violations of
// I1, I3, I4, I5 and I6: a card file failing to parse, an index row
// pointing at a missing file, an edge referencing an unknown card, a
// parent cycle, a depends cycle, or more than one parent edge for the
// same child (spec §4.7's lint()). It does not check I2, I7 or I8, and
// it does not look for card files that have no index row.
func (b *Board) Lint() ([]LintFinding, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var findings []LintFinding

	records, err := b.cardIdx.Load()
	if err != nil {
		return nil, err
	}
	validIDs := map[string]bool{}
	for _, rec := range records {
		validIDs[strings.ToUpper(rec.ID)] = true
		abs, err := b.guard.Resolve(rec.Path)
		if err != nil {
			findings = append(findings, LintFinding{Severity: LintError, Invariant: "I1", Detail: err.Error(), Path: rec.Path})
			continue
		}
		if _, err := cardfile.ReadFile(abs); err != nil {
			findings = append(findings, LintFinding{Severity: LintError, Invariant: "I1", Detail: fmt.Sprintf("unreadable or malformed card file: %v", err), Path: rec.Path})
		}
	}

	edges, err := b.relIdx.Load()
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if !validIDs[e.From] || (e.To != relations.WildcardTo && !validIDs[e.To]) {
			findings = append(findings, LintFinding{
				Severity:  LintError,
				Invariant: "I6",
				Detail:    fmt.Sprintf("edge %s %s->%s references an unknown card", e.Type, e.From, e.To),
			})
		}
	}

	if err := checkParentInvariants(edges, &findings); err != nil {
		return nil, err
	}
	if err := checkDependsInvariant(edges, &findings); err != nil {
		return nil, err
	}

	return findings, nil
}

func checkParentInvariants(edges []relations.Edge, findings *[]LintFinding) error {
	count := map[string]int{}
	for _, e := range edges {
		if e.Type == relations.Parent {
			count[e.From]++
		}
	}
	for child, n := range count {
		if n > 1 {
			*findings = append(*findings, LintFinding{Severity: LintError, Invariant: "I3", Detail: fmt.Sprintf("card %s has %d parent edges", child, n)})
		}
	}

	parent := map[string]string{}
	for _, e := range edges {
		if e.Type == relations.Parent {
			parent[e.From] = e.To
		}
	}
	for start := range parent {
		visited := map[string]bool{start: true}
		cur := start
		for {
			next, ok := parent[cur]
			if !ok {
				break
			}
			if visited[next] {
				*findings = append(*findings, LintFinding{Severity: LintError, Invariant: "I4", Detail: fmt.Sprintf("parent cycle involving %s", next)})
				break
			}
			visited[next] = true
			cur = next
		}
	}
	return nil
}

func checkDependsInvariant(edges []relations.Edge, findings *[]LintFinding) error {
	indegree := map[string]int{}
	adj := map[string][]string{}
	nodes := map[string]bool{}
	for _, e := range edges {
		if e.Type != relations.Depends {
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
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
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
	if visited != len(nodes) {
		*findings = append(*findings, LintFinding{Severity: LintError, Invariant: "I5", Detail: "depends edges contain a cycle"})
	}
	return nil
}
