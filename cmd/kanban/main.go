// Command kanban serves one board's state over MCP and exposes the
// maintenance operations (lint, reindex, compact, notes, update-fm) as
// plain CLI subcommands, mirroring the teacher's bd command-group
// structure.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "A file-backed Kanban board, served over MCP",
	Long: `kanban serves a Markdown+front-matter Kanban board over an MCP
control channel, and exposes maintenance operations (lint, reindex,
compact, notes) as plain subcommands for scripting and CI.`,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "serve", Title: "Serving:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance:"},
	)

	rootCmd.PersistentFlags().String("board", ".", "path to the board root (directory containing .kanban/)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().Bool("openai", false, "advertise flat tool names (kanban_new) instead of namespaced (kanban/new)")
	rootCmd.PersistentFlags().String("fail-on", "error", "lint exits 1 if any finding is at least this severity: info|warn|error")

	v.BindPFlag("board", rootCmd.PersistentFlags().Lookup("board"))
	v.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("openai", rootCmd.PersistentFlags().Lookup("openai"))
	v.BindPFlag("fail-on", rootCmd.PersistentFlags().Lookup("fail-on"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
