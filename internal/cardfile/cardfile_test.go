package cardfile

import (
	"strings"
	"testing"
	"time"
)

const sample = `---
id: 01arz3ndektsv4rrffq69g5fav
title: Fix the thing
lane: backend
priority: P1
size: 3
assignees:
  - alice
custom_field: keep-me
created_at: 2026-01-02T15:04:05Z
---
Body text here.
`

func TestParseBasicFields(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.ID != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Errorf("ID = %q, want upper-cased", c.ID)
	}
	if c.Title != "Fix the thing" {
		t.Errorf("Title = %q", c.Title)
	}
	if c.Size != 3 {
		t.Errorf("Size = %d", c.Size)
	}
	if len(c.Assignees) != 1 || c.Assignees[0] != "alice" {
		t.Errorf("Assignees = %v", c.Assignees)
	}
	if c.Body != "Body text here.\n" {
		t.Errorf("Body = %q", c.Body)
	}
}

func TestRoundTripPreservesUnknownKeys(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := c.Serialize()
	if !strings.Contains(string(out), "custom_field: keep-me") {
		t.Errorf("unknown key dropped on round trip:\n%s", out)
	}

	c2, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if c2.Title != c.Title || c2.ID != c.ID {
		t.Errorf("round trip changed known fields")
	}
}

func TestCRLFNormalizedToLF(t *testing.T) {
	withCRLF := strings.ReplaceAll(sample, "\n", "\r\n")
	c, err := Parse([]byte(withCRLF))
	if err != nil {
		t.Fatalf("Parse CRLF: %v", err)
	}
	out := c.Serialize()
	if strings.Contains(string(out), "\r\n") {
		t.Errorf("serialized output contains CRLF")
	}
}

func TestExplicitNullRoundTrips(t *testing.T) {
	c, err := Parse([]byte(`---
id: 01ARZ3NDEKTSV4RRFFQ69G5FAV
title: t
lane: l
priority: P2
size: 0
parent: null
---
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Parent != "" {
		t.Errorf("Parent = %q, want empty", c.Parent)
	}
	out := c.Serialize()
	if !strings.Contains(string(out), "parent: null") {
		t.Errorf("explicit null not preserved:\n%s", out)
	}
}

func TestMissingDelimiterRejected(t *testing.T) {
	if _, err := Parse([]byte("no front matter here")); err == nil {
		t.Fatalf("expected error for missing front matter")
	}
}

func TestCompletedAtTimezoneNormalizedToUTC(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	c := &Card{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Title: "t", Lane: "l", Priority: "P0", CompletedAt: &ts}
	out := string(c.Serialize())
	if !strings.Contains(out, "2026-03-01T09:00:00Z") {
		t.Errorf("expected UTC-normalized timestamp, got:\n%s", out)
	}
}
