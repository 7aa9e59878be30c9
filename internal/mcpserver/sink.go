package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kanban-mcp/kanban/internal/watcher"
)

// notifySink adapts store.Notifier and watcher.Sink to the MCP server's
// outbound notification channel. Every URI becomes one
// "notifications/publish" message with {event:"resource/updated", uri}
// (spec §6), in the order it was handed in.
type notifySink struct {
	server *server.MCPServer
}

// Notify implements store.Notifier for mutation-triggered notifications.
func (n *notifySink) Notify(uris []string) {
	for _, uri := range uris {
		n.publish(uri)
	}
}

// Publish implements watcher.Sink for FS-watch-triggered notifications.
func (n *notifySink) Publish(notes []watcher.Notification) {
	for _, note := range notes {
		n.publish(note.URI)
	}
}

func (n *notifySink) publish(uri string) {
	n.server.SendNotificationToAllClients("notifications/publish", map[string]any{
		"event": "resource/updated",
		"uri":   uri,
	})
}
