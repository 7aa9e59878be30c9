package columns

import "testing"

const sample = `
[[columns]]
key = "backlog"
title = "Backlog"
wip_limit = 0

[[columns]]
key = "doing"
title = "Doing"
wip_limit = 2

[[columns]]
key = "done"
title = "Done"
wip_limit = 0

[done]
partition = "yyyy-mm"

[watch]
debounce_ms = 500

[writer]
auto_rename_on_conflict = true
`

func TestParseDefaultsApplied(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.DebounceMs != 500 {
		t.Errorf("DebounceMs = %d, want 500 (explicit)", cfg.DebounceMs)
	}
	if cfg.MaxBatch != 50 {
		t.Errorf("MaxBatch = %d, want default 50", cfg.MaxBatch)
	}
	if got, want := cfg.HotColumns, []string{"backlog", "doing"}; len(got) != len(want) {
		t.Errorf("HotColumns = %v, want %v", got, want)
	}
	if !cfg.AutoRenameOnConflict {
		t.Errorf("AutoRenameOnConflict not honored")
	}
	if cfg.RenameSuffix != "-dup" {
		t.Errorf("RenameSuffix = %q, want default -dup", cfg.RenameSuffix)
	}
	if cfg.WIPEnforce != WIPWarn {
		t.Errorf("WIPEnforce = %q, want default warn", cfg.WIPEnforce)
	}
}

func TestMissingDoneColumnRejected(t *testing.T) {
	_, err := Parse([]byte(`
[[columns]]
key = "backlog"
title = "Backlog"
`))
	if err == nil {
		t.Fatalf("expected error for missing done column")
	}
}

func TestWIPLimit(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	limit, ok := cfg.WIPLimit("doing")
	if !ok || limit != 2 {
		t.Errorf("WIPLimit(doing) = %d,%v want 2,true", limit, ok)
	}
	if _, ok := cfg.WIPLimit("nope"); ok {
		t.Errorf("expected unknown column to report ok=false")
	}
}
