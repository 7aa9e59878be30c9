package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kanban-mcp/kanban/internal/config"
	"github.com/kanban-mcp/kanban/internal/logging"
	"github.com/kanban-mcp/kanban/internal/mcpserver"
	"github.com/kanban-mcp/kanban/internal/store"
	"github.com/kanban-mcp/kanban/internal/watcher"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	GroupID: "serve",
	Short:   "Serve one board over MCP on stdio",
	Long: `mcp opens the board at --board and serves it over MCP on stdin/stdout:
the tool catalog (kanban/new, move, done, update, list, get, tree,
relations.set, watch.start, watch.stop) plus the manual, board, columns,
and per-card resources.

By default a filesystem watcher observes .kanban/ and pushes
notifications/publish events as cards change out from under the
server; set KANBAN_MCP_WATCH=0 to disable it.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load(v)

		board, err := store.Open(cfg.Board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening board %q: %v\n", cfg.Board, err)
			os.Exit(1)
		}

		// The watcher is always constructed so the watch.start/watch.stop
		// tools have something to operate on; KANBAN_MCP_WATCH=0 just
		// skips the initial Start, leaving it idle until a client calls
		// kanban/watch.start.
		watch := watcher.New(watcher.Config{
			BoardRoot: cfg.Board,
			BoardID:   board.BoardID(),
			Rescanner: board,
			Logger:    logging.New(logging.Options{Prefix: "watcher", FilePath: cfg.LogFile}),
		})
		if cfg.Watch {
			if _, err := watch.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: starting watcher: %v\n", err)
				os.Exit(1)
			}
		}
		defer watch.Stop()

		s := mcpserver.New(board, watch, mcpserver.Options{OpenAICompat: cfg.OpenAICompat})

		if err := server.ServeStdio(s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
