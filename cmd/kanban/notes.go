package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanban-mcp/kanban/internal/config"
	"github.com/kanban-mcp/kanban/internal/store"
)

var notesAddCmd = &cobra.Command{
	Use:     "notes-add <cardId> <text>",
	GroupID: "maintenance",
	Short:   "Append a note to a card's journal",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)
		author, _ := cmd.Flags().GetString("author")

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}
		if err := board.NotesAdd(args[0], author, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var notesListCmd = &cobra.Command{
	Use:     "notes-list <cardId>",
	GroupID: "maintenance",
	Short:   "List a card's most recent notes",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)
		limit, _ := cmd.Flags().GetInt("limit")

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}
		entries, err := board.NotesList(args[0], limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if e.Author != "" {
				fmt.Printf("%s %s: %s\n", e.At, e.Author, e.Text)
			} else {
				fmt.Printf("%s %s\n", e.At, e.Text)
			}
		}
	},
}

func init() {
	notesAddCmd.Flags().String("author", "", "note author")
	notesListCmd.Flags().Int("limit", 3, "max notes to print, most recent first")
	rootCmd.AddCommand(notesAddCmd, notesListCmd)
}
