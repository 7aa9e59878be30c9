package store

import (
	"strings"
	"time"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/cardindex"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/relations"
)

// RelationsSetResult is the payload of a successful relations.set call.
type RelationsSetResult struct {
	Edges    []relations.Edge
	Warnings []string
}

// RelationsSet validates and applies add/remove against RelationsIndex,
// then patches every child whose resolved parent changed so the card's
// front-matter "parent" field stays the on-disk source of truth. On any
// failure after relations.Apply succeeds (I/O error, partial write) it
// falls back to a full Reindex from front matter, never leaving the edge
// set inconsistent with what was actually written (spec §4.6). If a
// card's front-matter write failed it then returns an internal error; if
// only the relations.ndjson rewrite failed it returns success with the
// fallback reported in Warnings.
func (b *Board) RelationsSet(add, remove []relations.Edge) (RelationsSetResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	validIDs, allRecords, err := b.validIDSet()
	if err != nil {
		return RelationsSetResult{}, err
	}

	current, err := b.relIdx.Load()
	if err != nil {
		return RelationsSetResult{}, err
	}

	res, err := relations.Apply(current, add, remove, validIDs)
	if err != nil {
		return RelationsSetResult{}, err
	}

	patchedIDs, err := b.patchRelationEndpoints(res, add, remove, allRecords)
	if err != nil {
		warnings, reindexErr := b.recoverByReindex(allRecords)
		if reindexErr != nil {
			return RelationsSetResult{}, kerr.Wrap(err, "relations: incremental update failed and reindex also failed")
		}
		return RelationsSetResult{}, kerr.Wrap(err, "%s", strings.Join(warnings, "; "))
	}

	if err := b.relIdx.Save(res.Edges); err != nil {
		warnings, reindexErr := b.recoverByReindex(allRecords)
		if reindexErr != nil {
			return RelationsSetResult{}, kerr.Wrap(err, "relations: incremental update failed and reindex also failed")
		}
		return RelationsSetResult{Edges: res.Edges, Warnings: warnings}, nil
	}

	var notifyIDs []string
	notifyIDs = append(notifyIDs, res.ParentChildIDs...)
	notifyIDs = append(notifyIDs, patchedIDs...)
	b.notify(notifyIDs...)

	return RelationsSetResult{Edges: res.Edges}, nil
}

// relationPatch accumulates every front-matter change one card needs as
// a result of a single relations.set call: a resolved parent change
// plus any depends_on/relates_to entries gained or lost. Front matter is
// the source of truth (spec §9); relations.ndjson is a cache rederived
// from it, so every edge relations.Apply accepted must land here too or
// it is silently dropped on the next compact/reindex.
type relationPatch struct {
	newParent            *string
	dependsAdd, dependsRemove []string
	relatesAdd, relatesRemove []string
}

// patchRelationEndpoints writes every front-matter change res/add/remove
// imply: each child whose resolved parent changed gets its "parent"
// field updated, and each depends/relates edge added or removed updates
// the "from" card's depends_on/relates_to list. Edges sharing a card are
// merged into one read-modify-write per card. It returns the ids of every
// card actually written, so callers can notify on all of them rather than
// just the parent-changed subset.
func (b *Board) patchRelationEndpoints(res relations.ApplyResult, add, remove []relations.Edge, records []cardindex.Record) ([]string, error) {
	byID := make(map[string]cardindex.Record, len(records))
	for _, r := range records {
		byID[strings.ToUpper(r.ID)] = r
	}

	patches := map[string]*relationPatch{}
	patchFor := func(id string) *relationPatch {
		id = strings.ToUpper(id)
		p, ok := patches[id]
		if !ok {
			p = &relationPatch{}
			patches[id] = p
		}
		return p
	}

	for _, childID := range res.ParentChildIDs {
		newParent := res.NewParentOf[childID]
		patchFor(childID).newParent = &newParent
	}
	for _, e := range add {
		switch e.Type {
		case relations.Depends:
			p := patchFor(e.From)
			p.dependsAdd = append(p.dependsAdd, e.To)
		case relations.Relates:
			p := patchFor(e.From)
			p.relatesAdd = append(p.relatesAdd, e.To)
		}
	}
	for _, e := range remove {
		switch e.Type {
		case relations.Depends:
			p := patchFor(e.From)
			p.dependsRemove = append(p.dependsRemove, e.To)
		case relations.Relates:
			p := patchFor(e.From)
			p.relatesRemove = append(p.relatesRemove, e.To)
		}
	}

	var writtenIDs []string
	for id, p := range patches {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		abs, err := b.guard.Resolve(rec.Path)
		if err != nil {
			return nil, err
		}
		card, err := cardfile.ReadFile(abs)
		if err != nil {
			return nil, err
		}

		if p.newParent != nil {
			card.MarkOptionalSeen("parent")
			card.Parent = *p.newParent
		}
		if len(p.dependsAdd) > 0 || len(p.dependsRemove) > 0 {
			card.DependsOn = applyStringSetDelta(card.DependsOn, p.dependsAdd, p.dependsRemove)
		}
		if len(p.relatesAdd) > 0 || len(p.relatesRemove) > 0 {
			card.RelatesTo = applyStringSetDelta(card.RelatesTo, p.relatesAdd, p.relatesRemove)
		}

		if err := cardfile.WriteFile(abs, card.Serialize(), cardfile.AtomicWriteOptions{}); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := b.cardIdx.Upsert(rec); err != nil {
			return nil, err
		}
		writtenIDs = append(writtenIDs, rec.ID)
	}
	return writtenIDs, nil
}

// applyStringSetDelta removes every id in remove, then appends every id
// in add not already present, preserving existing order (new entries
// appended, case-insensitively deduplicated since ids are ULIDs).
func applyStringSetDelta(existing, add, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, id := range remove {
		removeSet[strings.ToUpper(id)] = true
	}

	out := make([]string, 0, len(existing)+len(add))
	have := map[string]bool{}
	for _, id := range existing {
		if removeSet[strings.ToUpper(id)] {
			continue
		}
		out = append(out, id)
		have[strings.ToUpper(id)] = true
	}
	for _, id := range add {
		if have[strings.ToUpper(id)] {
			continue
		}
		out = append(out, id)
		have[strings.ToUpper(id)] = true
	}
	return out
}

// recoverByReindex re-derives the full edge set from front matter across
// every known card and persists it, per spec §4.6's failure-recovery
// path. It returns the warnings[] entry callers must surface.
func (b *Board) recoverByReindex(records []cardindex.Record) ([]string, error) {
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
		return nil, err
	}
	return []string{"relations: incremental update failed; ran full reindex"}, nil
}
