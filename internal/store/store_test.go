package store

import (
	"testing"

	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/relations"
)

func TestCreateMoveDone(t *testing.T) {
	b := openTestBoard(t)

	created, err := b.New(NewOptions{Title: "Write the thing"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := b.Move(created.ID, "doing"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	rec, err := b.lookupRecord(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Column != "doing" {
		t.Fatalf("Column = %q, want doing", rec.Column)
	}

	done, err := b.Done(created.ID)
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if done.CompletedAt.IsZero() {
		t.Fatalf("expected a completed_at timestamp")
	}

	done2, err := b.Done(created.ID)
	if err != nil {
		t.Fatalf("Done idempotent: %v", err)
	}
	if !done2.CompletedAt.Equal(done.CompletedAt) {
		t.Fatalf("second Done changed completed_at: %v vs %v", done2.CompletedAt, done.CompletedAt)
	}
}

func TestRelationsSetAndWildcardRemove(t *testing.T) {
	b := openTestBoard(t)

	p, err := b.New(NewOptions{Title: "Parent"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.New(NewOptions{Title: "Child"})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := b.New(NewOptions{Title: "Other parent"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.RelationsSet([]relations.Edge{{Type: relations.Parent, From: c.ID, To: p.ID}}, nil); err != nil {
		t.Fatalf("first relations.set: %v", err)
	}
	got, err := b.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Card.Parent != p.ID {
		t.Fatalf("child parent = %q, want %q", got.Card.Parent, p.ID)
	}

	_, err = b.RelationsSet([]relations.Edge{{Type: relations.Parent, From: c.ID, To: p2.ID}}, nil)
	if kerr.KindOf(err) != kerr.Conflict {
		t.Fatalf("expected conflict adding a second parent, got %v", err)
	}

	if _, err := b.RelationsSet(nil, []relations.Edge{{Type: relations.Parent, From: c.ID, To: relations.WildcardTo}}); err != nil {
		t.Fatalf("wildcard remove: %v", err)
	}
	got, err = b.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Card.Parent != "" {
		t.Fatalf("expected cleared parent, got %q", got.Card.Parent)
	}
}

func TestDependsCycleRejectedNoMutation(t *testing.T) {
	b := openTestBoard(t)

	a, err := b.New(NewOptions{Title: "A"})
	if err != nil {
		t.Fatal(err)
	}
	bb, err := b.New(NewOptions{Title: "B"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.New(NewOptions{Title: "C"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.RelationsSet([]relations.Edge{{Type: relations.Depends, From: a.ID, To: bb.ID}}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelationsSet([]relations.Edge{{Type: relations.Depends, From: bb.ID, To: c.ID}}, nil); err != nil {
		t.Fatal(err)
	}

	before, err := b.relIdx.Load()
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.RelationsSet([]relations.Edge{{Type: relations.Depends, From: c.ID, To: a.ID}}, nil)
	if kerr.KindOf(err) != kerr.Conflict {
		t.Fatalf("expected conflict for depends cycle, got %v", err)
	}

	after, err := b.relIdx.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("expected no index mutation on rejected cycle, before=%d after=%d", len(before), len(after))
	}
}

func TestUpdateBodyAppend(t *testing.T) {
	b := openTestBoard(t)

	created, err := b.New(NewOptions{Title: "Card", Body: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Update(created.ID, UpdatePatch{Body: &BodyPatch{Text: "world"}}); err != nil {
		t.Fatal(err)
	}
	got, err := b.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Card.Body != "hello\nworld\n" {
		t.Fatalf("Body = %q, want %q", got.Card.Body, "hello\nworld\n")
	}

	if _, err := b.Update(created.ID, UpdatePatch{Body: &BodyPatch{Text: "world"}}); err != nil {
		t.Fatal(err)
	}
	got, err = b.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Card.Body != "hello\nworld\nworld\n" {
		t.Fatalf("Body = %q, want %q", got.Card.Body, "hello\nworld\nworld\n")
	}
}

func TestWIPLimitWarnVsEnforce(t *testing.T) {
	b := openTestBoard(t)
	a, err := b.New(NewOptions{Title: "A"})
	if err != nil {
		t.Fatal(err)
	}
	bb, err := b.New(NewOptions{Title: "B"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Move(a.ID, "doing"); err != nil {
		t.Fatal(err)
	}

	res, err := b.Move(bb.ID, "doing")
	if err != nil {
		t.Fatalf("expected warn, not error, got %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a WIP warning")
	}

	b.cols.WIPEnforce = "error"
	c, err := b.New(NewOptions{Title: "C"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Move(c.ID, "doing")
	if kerr.KindOf(err) != kerr.Conflict {
		t.Fatalf("expected conflict under enforce policy, got %v", err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	b := openTestBoard(t)
	for i := 0; i < 3; i++ {
		if _, err := b.New(NewOptions{Title: "Card", Lane: "infra"}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := b.List(ListQuery{Lane: "infra", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(res.Items))
	}
	if res.NextOffset == nil || *res.NextOffset != 2 {
		t.Fatalf("NextOffset = %v, want 2", res.NextOffset)
	}
}

func TestTreeBFS(t *testing.T) {
	b := openTestBoard(t)
	p, err := b.New(NewOptions{Title: "Root"})
	if err != nil {
		t.Fatal(err)
	}
	c1, err := b.New(NewOptions{Title: "Child 1"})
	if err != nil {
		t.Fatal(err)
	}
	c2, err := b.New(NewOptions{Title: "Child 2"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelationsSet([]relations.Edge{{Type: relations.Parent, From: c1.ID, To: p.ID}}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelationsSet([]relations.Edge{{Type: relations.Parent, From: c2.ID, To: p.ID}}, nil); err != nil {
		t.Fatal(err)
	}

	tree, err := b.Tree(p.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(tree.Children))
	}

	if _, err := b.Tree(p.ID, -1); kerr.KindOf(err) != kerr.InvalidArgument {
		t.Fatalf("expected invalid-argument for negative depth, got %v", err)
	}
}

func TestRebuildAndCompact(t *testing.T) {
	b := openTestBoard(t)
	created, err := b.New(NewOptions{Title: "Card"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Done(created.ID); err != nil {
		t.Fatal(err)
	}

	n, err := b.Rebuild(RebuildOptions{Cold: true})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 1 {
		t.Fatalf("Rebuild found %d cards, want 1", n)
	}

	res, err := b.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if res.Cards != 1 {
		t.Fatalf("Compact.Cards = %d, want 1", res.Cards)
	}
}

func TestLintFindsOrphanEdge(t *testing.T) {
	b := openTestBoard(t)
	if err := b.relIdx.Save([]relations.Edge{{Type: relations.Depends, From: "MISSING1", To: "MISSING2"}}); err != nil {
		t.Fatal(err)
	}

	findings, err := b.Lint()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range findings {
		if f.Invariant == "I6" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an I6 finding, got %+v", findings)
	}
}
