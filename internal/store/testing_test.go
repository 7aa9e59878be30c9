package store

import (
	"os"
	"path/filepath"
	"testing"
)

const testColumnsTOML = `
[[columns]]
key = "backlog"
title = "Backlog"

[[columns]]
key = "doing"
title = "Doing"
wip_limit = 1

[[columns]]
key = "done"
title = "Done"

[done]
partition = "none"

[board]
wip_enforce = "warn"
parent_done_policy = "warn"
`

func openTestBoard(t *testing.T) *Board {
	t.Helper()
	root := t.TempDir()
	colsDir := filepath.Join(root, ".kanban")
	if err := os.MkdirAll(colsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(colsDir, "columns.toml"), []byte(testColumnsTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}
