// Package mcpserver is the composition root wiring internal/store,
// internal/watcher, and internal/dispatch into a
// github.com/mark3labs/mcp-go MCP server: one server.AddTool per entry
// in the dispatcher's catalog, one server.AddResource per URI spec §6
// names, and the dual content/flat-keys response shape spec §4.9
// requires. No business logic lives here — only wiring, schema, and
// the kerr-to-JSON-RPC mapping.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kanban-mcp/kanban/internal/dispatch"
	"github.com/kanban-mcp/kanban/internal/store"
	"github.com/kanban-mcp/kanban/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options configures server construction.
type Options struct {
	// OpenAICompat advertises the flat tool-name form ("kanban_new")
	// instead of the namespaced form ("kanban/new") when true, per
	// spec §4.9.
	OpenAICompat bool
}

// New builds the MCP server around board and watch: registers the full
// tool catalog plus the manual/board/columns/cards resources, and wires
// watcher notifications into the server's outbound notification
// channel.
func New(board *store.Board, watch *watcher.Watcher, opts Options) *server.MCPServer {
	d := dispatch.New(board, watch)

	s := server.NewMCPServer(
		"kanban-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)

	registerTools(s, d, opts.OpenAICompat)
	registerResources(s, board)

	sink := &notifySink{server: s}
	board.SetNotifier(sink)
	watch.SetSink(sink)
	watch.SetRescanner(board)

	return s
}
