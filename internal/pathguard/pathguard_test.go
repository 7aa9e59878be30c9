package pathguard

import (
	"path/filepath"
	"testing"
)

func TestResolveConfinesToRoot(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := g.Resolve("backlog/card.md"); err != nil {
		t.Fatalf("Resolve within root: %v", err)
	}

	if _, err := g.Resolve("../escape.md"); err == nil {
		t.Fatalf("expected permission-denied for escaping path")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":    "hello-world",
		"  leading/trail  ": "leading-trail",
		"":                 "card",
		"CON":              "con-x",
		"com1-report":       "com1-report",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCardFilenameRoundTrip(t *testing.T) {
	id := "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	name := CardFilename(id, "Fix the bug")
	got, ok := ParseCardFilename(name)
	if !ok {
		t.Fatalf("ParseCardFilename(%q) not ok", name)
	}
	if got != id {
		t.Errorf("got %q, want %q", got, id)
	}
}

func TestEqualPathCaseFold(t *testing.T) {
	if !EqualPath("/A/B/C.MD", filepath.Clean("/a/b/c.md")) {
		t.Errorf("expected case-fold equal")
	}
}
