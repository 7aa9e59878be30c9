package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kanban-mcp/kanban/internal/config"
	"github.com/kanban-mcp/kanban/internal/store"
)

var severityRank = map[store.LintSeverity]int{
	store.LintInfo:  0,
	store.LintWarn:  1,
	store.LintError: 2,
}

var severityColor = map[store.LintSeverity]string{
	store.LintInfo:  "\x1b[36m",
	store.LintWarn:  "\x1b[33m",
	store.LintError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

var lintCmd = &cobra.Command{
	Use:     "lint",
	GroupID: "maintenance",
	Short:   "Report invariant violations (I1, I3-I6) found in the board",
	Long: `lint walks the card index and relations index and reports every
violation it finds: unreadable card files, index rows pointing at
missing files, edges referencing unknown cards, parent cycles, and
depends cycles.

Exits 1 if any finding is at least as severe as --fail-on (default
"error").`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}

		findings, err := board.Lint()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		threshold, ok := severityRank[store.LintSeverity(cfg.FailOn)]
		if !ok {
			threshold = severityRank[store.LintError]
		}

		colorize := term.IsTerminal(int(os.Stdout.Fd()))

		fail := false
		for _, f := range findings {
			label := string(f.Severity)
			if colorize {
				label = severityColor[f.Severity] + label + colorReset
			}
			fmt.Printf("[%s] %s %s %s\n", label, f.Invariant, f.Path, f.Detail)
			if severityRank[f.Severity] >= threshold {
				fail = true
			}
		}
		if len(findings) == 0 {
			fmt.Println("lint: no findings")
		}
		if fail {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}
