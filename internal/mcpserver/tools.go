package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kanban-mcp/kanban/internal/dispatch"
	"github.com/kanban-mcp/kanban/internal/kerr"
)

// registerTools registers d's full catalog with s, advertising each
// tool under its flat form when openaiCompat is set, namespaced
// otherwise (spec §4.9). Dispatch accepts either form regardless, so
// the advertised form only affects what tools/list reports.
func registerTools(s *server.MCPServer, d *dispatch.Dispatcher, openaiCompat bool) {
	for _, canonical := range d.Tools() {
		advertised := canonical
		if openaiCompat {
			advertised = dispatch.Normalize(canonical)
		}
		def := toolDefinition(advertised, canonical)
		s.AddTool(def, toolHandler(d, canonical))
	}
}

func toolHandler(d *dispatch.Dispatcher, canonical string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := d.Dispatch(canonical, dispatch.Args(req.GetArguments()))
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}
}

// successResult shapes a payload per spec §4.9: a content[{type:"text"}]
// block carrying the stringified JSON, plus the same payload as
// StructuredContent so a client reading the typed result sees the
// fields directly rather than re-parsing the text block.
func successResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, kerr.Wrap(err, "marshal tool result")
	}
	res := mcp.NewToolResultText(string(data))
	res.StructuredContent = payload
	return res, nil
}

// errorResult maps a kerr-tagged error to the wire envelope spec §7
// describes ({code:-32000, message:<kind>, data:{detail}}), carried as
// an isError tool result: mcp-go reports tool-call failures in-band
// (CallToolResult.IsError) rather than as a transport-level JSON-RPC
// error, so the envelope is serialized into the text content instead
// of the outer JSON-RPC error object.
func errorResult(err error) *mcp.CallToolResult {
	envelope := map[string]any{
		"code":    -32000,
		"message": string(kerr.KindOf(err)),
		"data":    map[string]string{"detail": kerr.DetailOf(err)},
	}
	data, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	res := mcp.NewToolResultText(string(data))
	res.IsError = true
	res.StructuredContent = envelope
	return res
}

// toolDefinition builds the JSON-schema argument description for
// canonical (always one of the spec §4.9/§4.7 catalog entries),
// advertised under name.
func toolDefinition(name, canonical string) mcp.Tool {
	switch canonical {
	case "kanban/new":
		return mcp.NewTool(name,
			mcp.WithDescription("Create a new card in the given column (default backlog)."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Card title.")),
			mcp.WithString("column", mcp.Description("Target column key, defaults to backlog.")),
			mcp.WithString("lane", mcp.Description("Swimlane, if any.")),
			mcp.WithString("priority", mcp.Description("Priority, e.g. P0..P3.")),
			mcp.WithNumber("size", mcp.Description("Relative size/points.")),
			mcp.WithArray("labels", mcp.Description("Labels to attach."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("assignees", mcp.Description("Assignees to attach."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("body", mcp.Description("Markdown body text.")),
		)
	case "kanban/move":
		return mcp.NewTool(name,
			mcp.WithDescription("Move a card to a different column."),
			mcp.WithString("cardId", mcp.Required(), mcp.Description("ULID of the card to move.")),
			mcp.WithString("column", mcp.Required(), mcp.Description("Destination column key (not 'done'; use kanban/done).")),
		)
	case "kanban/done":
		return mcp.NewTool(name,
			mcp.WithDescription("Mark a card complete and file it under the done partition."),
			mcp.WithString("cardId", mcp.Required(), mcp.Description("ULID of the card to complete.")),
		)
	case "kanban/update":
		return mcp.NewTool(name,
			mcp.WithDescription("Patch a card's front matter and/or body."),
			mcp.WithString("cardId", mcp.Required(), mcp.Description("ULID of the card to update.")),
			mcp.WithObject("patch", mcp.Required(), mcp.Description(
				"{fm:{title?,lane?,priority?,status?,size?,assignees?,labels?,"+
					"next_steps?,blockers?,resume_hint?}, body?:{text,replace?}}. "+
					"Missing keys leave the existing value; explicit null clears a "+
					"scalar; explicit [] clears an array.")),
		)
	case "kanban/list":
		return mcp.NewTool(name,
			mcp.WithDescription("List cards with filters and pagination."),
			mcp.WithArray("columns", mcp.Description("Restrict to these columns."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("lane", mcp.Description("Filter by lane.")),
			mcp.WithString("assignee", mcp.Description("Filter by assignee.")),
			mcp.WithString("label", mcp.Description("Filter by label.")),
			mcp.WithString("priority", mcp.Description("Filter by priority.")),
			mcp.WithString("query", mcp.Description("Substring match against id/title (and body in some cases).")),
			mcp.WithBoolean("includeDone", mcp.Description("Include the done column, default false.")),
			mcp.WithNumber("offset", mcp.Description("Pagination offset, default 0.")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 200.")),
		)
	case "kanban/get":
		return mcp.NewTool(name,
			mcp.WithDescription("Fetch one card in full, including its body."),
			mcp.WithString("cardId", mcp.Required(), mcp.Description("ULID of the card to fetch.")),
		)
	case "kanban/tree":
		return mcp.NewTool(name,
			mcp.WithDescription("Walk a card's parent/child subtree breadth-first."),
			mcp.WithString("root", mcp.Required(), mcp.Description("ULID of the subtree root.")),
			mcp.WithNumber("depth", mcp.Description("Levels to descend, default 3.")),
		)
	case "kanban/relations.set":
		edgeSchema := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{"type": "string", "enum": []string{"parent", "depends", "relates"}},
				"from": map[string]any{"type": "string"},
				"to":   map[string]any{"type": "string"},
			},
			"required": []string{"type", "from", "to"},
		}
		return mcp.NewTool(name,
			mcp.WithDescription("Add or remove parent/depends/relates edges between cards."),
			mcp.WithArray("add", mcp.Description("Edges to add."), mcp.Items(edgeSchema)),
			mcp.WithArray("remove", mcp.Description("Edges to remove; to:'*' clears all parent edges for a child."), mcp.Items(edgeSchema)),
		)
	case "kanban/watch.start":
		return mcp.NewTool(name, mcp.WithDescription("Start the board's filesystem watcher."))
	case "kanban/watch.stop":
		return mcp.NewTool(name, mcp.WithDescription("Stop the board's filesystem watcher, flushing pending notifications."))
	default:
		return mcp.NewTool(name, mcp.WithDescription(canonical))
	}
}
