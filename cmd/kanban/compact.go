package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanban-mcp/kanban/internal/config"
	"github.com/kanban-mcp/kanban/internal/store"
)

var compactCmd = &cobra.Command{
	Use:     "compact",
	GroupID: "maintenance",
	Short:   "Rebuild and rewrite both index files sorted",
	Long: `compact runs a full cold-column reindex and a full relations
reindex, then atomically rewrites cards.ndjson and relations.ndjson in
sorted order. This is the only place a cold scan happens outside
"reindex --cold".`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}

		res, err := board.Compact()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("compact: %d cards, %d relations\n", res.Cards, res.Relations)
	},
}

func init() {
	rootCmd.AddCommand(compactCmd)
}
