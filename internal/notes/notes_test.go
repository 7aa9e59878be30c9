package notes

import (
	"path/filepath"
	"testing"
)

func TestAppendThenListMostRecentFirst(t *testing.T) {
	j := Open(filepath.Join(t.TempDir(), "notes", "01ARZ3.ndjson"))

	for _, text := range []string{"first", "second", "third"} {
		if err := j.Append(Entry{At: "2026-08-06T00:00:00Z", Text: text}); err != nil {
			t.Fatalf("Append(%q): %v", text, err)
		}
	}

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Text != "third" || entries[2].Text != "first" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestListRespectsLimit(t *testing.T) {
	j := Open(filepath.Join(t.TempDir(), "notes.ndjson"))
	for i := 0; i < 5; i++ {
		if err := j.Append(Entry{Text: "n"}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := j.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestListMissingFileIsEmpty(t *testing.T) {
	j := Open(filepath.Join(t.TempDir(), "missing.ndjson"))
	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List missing: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries for missing file")
	}
}
