package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanban-mcp/kanban/internal/config"
	"github.com/kanban-mcp/kanban/internal/store"
)

var reindexCmd = &cobra.Command{
	Use:     "reindex",
	GroupID: "maintenance",
	Short:   "Rebuild the card index from the files on disk",
	Long: `reindex walks every hot column (and, with --cold, every other
declared column, the done/ tree included) and regenerates .kanban/cards.ndjson from the "<ULID>__*.md" files
it finds.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)
		cold, _ := cmd.Flags().GetBool("cold")

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}

		n, err := board.Rebuild(store.RebuildOptions{Cold: cold})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("reindex: %d cards indexed\n", n)
	},
}

func init() {
	reindexCmd.Flags().Bool("cold", false, "also scan the columns outside hot_columns, done/ included")
	rootCmd.AddCommand(reindexCmd)
}
