package dispatch

import "testing"

func TestNormalizeAcceptsBothSurfaceForms(t *testing.T) {
	cases := map[string]string{
		"kanban/new":            "kanban_new",
		"kanban_new":            "kanban_new",
		"kanban/relations.set":  "kanban_relations_set",
		"kanban_relations_set":  "kanban_relations_set",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatchUnknownToolIsInvalidArgument(t *testing.T) {
	d := New(nil, nil)
	// doNew etc. would panic on a nil board; exercise only the lookup
	// failure path, which never reaches a handler.
	_, err := d.Dispatch("kanban/nonexistent", nil)
	if err == nil {
		t.Fatalf("expected an error for an unknown tool")
	}
}

func TestToolsListsCanonicalNames(t *testing.T) {
	d := New(nil, nil)
	tools := d.Tools()
	found := map[string]bool{}
	for _, name := range tools {
		found[name] = true
	}
	for _, want := range []string{"kanban/new", "kanban/relations.set", "kanban/watch.start"} {
		if !found[want] {
			t.Errorf("expected %q in tool catalog, got %v", want, tools)
		}
	}
}
