package relations

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kanban-mcp/kanban/internal/kerr"
)

func ids(ss ...string) map[string]bool {
	m := map[string]bool{}
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func TestApplyAddParentThenSecondParentConflicts(t *testing.T) {
	valid := ids("C", "P", "P2")

	res, err := Apply(nil, []Edge{{Type: Parent, From: "C", To: "P"}}, nil, valid)
	if err != nil {
		t.Fatalf("first parent add: %v", err)
	}
	if len(res.ParentChildIDs) != 1 || res.NewParentOf["C"] != "P" {
		t.Fatalf("expected C's parent change recorded, got %+v", res)
	}

	_, err = Apply(res.Edges, []Edge{{Type: Parent, From: "C", To: "P2"}}, nil, valid)
	if kindOf(err) != "conflict" {
		t.Fatalf("expected conflict adding a second parent, got %v", err)
	}
}

func TestWildcardRemoveClearsParent(t *testing.T) {
	valid := ids("C", "P")
	current := []Edge{{Type: Parent, From: "C", To: "P"}}

	res, err := Apply(current, nil, []Edge{{Type: Parent, From: "C", To: WildcardTo}}, valid)
	if err != nil {
		t.Fatalf("wildcard remove: %v", err)
	}
	if len(res.Edges) != 0 {
		t.Fatalf("expected edge removed, got %+v", res.Edges)
	}
	if res.NewParentOf["C"] != "" {
		t.Fatalf("expected cleared parent, got %q", res.NewParentOf["C"])
	}
}

func TestDependsCycleRejected(t *testing.T) {
	valid := ids("A", "B", "C")
	current := []Edge{
		{Type: Depends, From: "A", To: "B"},
		{Type: Depends, From: "B", To: "C"},
	}
	_, err := Apply(current, []Edge{{Type: Depends, From: "C", To: "A"}}, nil, valid)
	if kindOf(err) != "conflict" {
		t.Fatalf("expected conflict for depends cycle, got %v", err)
	}
}

func TestSelfParentRejected(t *testing.T) {
	valid := ids("A")
	_, err := Apply(nil, []Edge{{Type: Parent, From: "A", To: "A"}}, nil, valid)
	if kindOf(err) != "conflict" {
		t.Fatalf("expected conflict for self-parent, got %v", err)
	}
}

func TestUnknownCardRejected(t *testing.T) {
	valid := ids("A")
	_, err := Apply(nil, []Edge{{Type: Depends, From: "A", To: "ZZZ"}}, nil, valid)
	if kindOf(err) != "not-found" {
		t.Fatalf("expected not-found for unknown card, got %v", err)
	}
}

func TestIdempotentAddIsNoop(t *testing.T) {
	valid := ids("A", "B")
	current := []Edge{{Type: Relates, From: "A", To: "B"}}
	res, err := Apply(current, []Edge{{Type: Relates, From: "A", To: "B"}}, nil, valid)
	if err != nil {
		t.Fatalf("idempotent add: %v", err)
	}
	if len(res.Edges) != 1 {
		t.Fatalf("expected dedup to one edge, got %d", len(res.Edges))
	}
}

func TestReindexDoesNotImplyReverseRelates(t *testing.T) {
	cards := []CardRef{
		{ID: "A", RelatesTo: []string{"B"}},
		{ID: "B"},
	}
	edges := Reindex(cards)
	if len(edges) != 1 {
		t.Fatalf("expected exactly one relates edge, got %d: %+v", len(edges), edges)
	}
	if edges[0].From != "A" || edges[0].To != "B" {
		t.Fatalf("unexpected edge %+v", edges[0])
	}
}

func TestChildrenOf(t *testing.T) {
	edges := []Edge{
		{Type: Parent, From: "C1", To: "P"},
		{Type: Parent, From: "C2", To: "P"},
	}
	children := ChildrenOf(edges)
	if len(children["P"]) != 2 {
		t.Fatalf("expected 2 children of P, got %v", children["P"])
	}
}

func TestApplyMixedAddRemoveProducesExactEdgeSet(t *testing.T) {
	valid := ids("A", "B", "C", "D")
	current := []Edge{
		{Type: Relates, From: "A", To: "B"},
		{Type: Depends, From: "C", To: "D"},
	}
	res, err := Apply(current,
		[]Edge{{Type: Parent, From: "B", To: "A"}},
		[]Edge{{Type: Depends, From: "C", To: "D"}},
		valid,
	)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := []Edge{
		{Type: Parent, From: "B", To: "A"},
		{Type: Relates, From: "A", To: "B"},
	}
	if diff := cmp.Diff(want, res.Edges); diff != "" {
		t.Fatalf("unexpected edge set (-want +got):\n%s", diff)
	}
}

func kindOf(err error) string {
	return string(kerr.KindOf(err))
}
