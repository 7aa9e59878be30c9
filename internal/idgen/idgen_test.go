package idgen

import "testing"

func TestNextIsUpperAnd26Chars(t *testing.T) {
	g := New()
	id := g.Next()
	if len(id) != 26 {
		t.Fatalf("len(id) = %d, want 26", len(id))
	}
	for _, r := range id {
		if r >= 'a' && r <= 'z' {
			t.Fatalf("id %q contains lower-case", id)
		}
	}
	if _, ok := Parse(id); !ok {
		t.Fatalf("Parse(%q) not ok", id)
	}
}

func TestNextIsMonotonic(t *testing.T) {
	g := New()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		cur := g.Next()
		if cur <= prev {
			t.Fatalf("id %q not strictly greater than %q", cur, prev)
		}
		prev = cur
	}
}

func TestShortID(t *testing.T) {
	id := "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	if got := ShortID(id); got != "Q69G5FAV" && len(got) != 8 {
		t.Fatalf("ShortID(%q) = %q", id, got)
	}
	if got := ShortID(id); len(got) != 8 {
		t.Fatalf("expected 8 chars, got %d: %q", len(got), got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, ok := Parse("not-a-ulid"); ok {
		t.Fatalf("expected malformed id to be rejected")
	}
}
