package cardindex

import (
	"path/filepath"
	"testing"
)

func TestUpsertThenLookup(t *testing.T) {
	idx := Open(filepath.Join(t.TempDir(), "cards.ndjson"))

	if err := idx.Upsert(Record{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Title: "A", Column: "backlog", Path: "backlog/x.md"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec, ok, err := idx.Lookup("01arz3ndektsv4rrffq69g5fav")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected record found case-insensitively")
	}
	if rec.Title != "A" {
		t.Errorf("Title = %q", rec.Title)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	idx := Open(filepath.Join(t.TempDir(), "cards.ndjson"))
	id := "01ARZ3NDEKTSV4RRFFQ69G5FAV"

	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(idx.Upsert(Record{ID: id, Title: "first", Column: "backlog", Path: "p"}))
	must(idx.Upsert(Record{ID: id, Title: "second", Column: "doing", Path: "p2"}))

	records, err := idx.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Title != "second" {
		t.Errorf("Title = %q, want second", records[0].Title)
	}
}

func TestRemove(t *testing.T) {
	idx := Open(filepath.Join(t.TempDir(), "cards.ndjson"))
	id := "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	if err := idx.Upsert(Record{ID: id, Path: "p"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Remove(id); err != nil {
		t.Fatal(err)
	}
	records, err := idx.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty index after remove, got %d", len(records))
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	idx := Open(filepath.Join(t.TempDir(), "missing.ndjson"))
	records, err := idx.Load()
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil records for missing file")
	}
}
