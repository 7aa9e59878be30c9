package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanban-mcp/kanban/internal/config"
	"github.com/kanban-mcp/kanban/internal/store"
)

var updateFMCmd = &cobra.Command{
	Use:     "update-fm <cardId>",
	GroupID: "maintenance",
	Short:   "Patch a card's front matter from the command line",
	Long: `update-fm wraps the same update() operation the kanban/update MCP
tool calls, for scripting front-matter edits outside the MCP channel.
Only the flags actually given are applied; the rest of the card's front
matter is left untouched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)

		var patch store.FrontMatterPatch
		if cmd.Flags().Changed("title") {
			s, _ := cmd.Flags().GetString("title")
			patch.Title = &s
		}
		if cmd.Flags().Changed("lane") {
			s, _ := cmd.Flags().GetString("lane")
			patch.Lane = &s
		}
		if cmd.Flags().Changed("priority") {
			s, _ := cmd.Flags().GetString("priority")
			patch.Priority = &s
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			patch.Status = &s
		}
		if cmd.Flags().Changed("size") {
			n, _ := cmd.Flags().GetInt("size")
			patch.Size = &n
		}
		if cmd.Flags().Changed("assignees") {
			ss, _ := cmd.Flags().GetStringSlice("assignees")
			patch.Assignees = &ss
		}
		if cmd.Flags().Changed("labels") {
			ss, _ := cmd.Flags().GetStringSlice("labels")
			patch.Labels = &ss
		}

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}
		res, err := board.Update(args[0], store.UpdatePatch{FM: patch})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(res.Path)
	},
}

func init() {
	updateFMCmd.Flags().String("title", "", "new title")
	updateFMCmd.Flags().String("lane", "", "new lane")
	updateFMCmd.Flags().String("priority", "", "new priority")
	updateFMCmd.Flags().String("status", "", "new status")
	updateFMCmd.Flags().Int("size", 0, "new size")
	updateFMCmd.Flags().StringSlice("assignees", nil, "new assignees, comma-separated (replaces the existing list)")
	updateFMCmd.Flags().StringSlice("labels", nil, "new labels, comma-separated (replaces the existing list)")
	rootCmd.AddCommand(updateFMCmd)
}
