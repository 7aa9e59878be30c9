package mcpserver

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kanban-mcp/kanban/internal/render"
	"github.com/kanban-mcp/kanban/internal/store"
)

// registerResources registers the five resource URIs spec §6 names
// against board: three static (manual, board, columns) and two
// ULID-templated (cards/{id}, cards/{id}/state).
func registerResources(s *server.MCPServer, board *store.Board) {
	base := "kanban://" + board.BoardID()

	s.AddResource(
		mcp.NewResource(base+"/manual", "Manual", mcp.WithMIMEType("text/markdown")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return textResource(req.Params.URI, "text/markdown", render.Manual()), nil
		},
	)

	s.AddResource(
		mcp.NewResource(base+"/board", "Board", mcp.WithMIMEType("text/markdown")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			records, err := board.List(store.ListQuery{IncludeDone: true, Limit: 1 << 30})
			if err != nil {
				return nil, err
			}
			md, err := render.Board(board.Columns(), records.Items)
			if err != nil {
				return nil, err
			}
			return textResource(req.Params.URI, "text/markdown", md), nil
		},
	)

	s.AddResource(
		mcp.NewResource(base+"/columns", "Columns", mcp.WithMIMEType("application/toml")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			data, err := board.ColumnsTOML()
			if err != nil {
				return nil, err
			}
			return textResource(req.Params.URI, "application/toml", string(data)), nil
		},
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(base+"/cards/{id}", "Card", mcp.WithTemplateMIMEType("text/markdown")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id, _, _, err := parseCardURI(req.Params.URI)
			if err != nil {
				return nil, err
			}
			data, err := board.CardMarkdown(id)
			if err != nil {
				return nil, err
			}
			return textResource(req.Params.URI, "text/markdown", string(data)), nil
		},
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(base+"/cards/{id}/state", "Card state", mcp.WithTemplateMIMEType("application/json")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id, mode, limit, err := parseCardURI(req.Params.URI)
			if err != nil {
				return nil, err
			}
			data, err := cardState(board, id, mode, limit)
			if err != nil {
				return nil, err
			}
			return textResource(req.Params.URI, "application/json", string(data)), nil
		},
	)
}

func textResource(uri, mime, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: mime, Text: text},
	}
}

// parseCardURI extracts the card id from a kanban://{board}/cards/{id}
// or kanban://{board}/cards/{id}/state URI, plus the mode and limit
// query parameters the state resource accepts (spec §6), defaulting to
// mode=brief, limit=3.
func parseCardURI(raw string) (id, mode string, limit int, err error) {
	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", "", 0, parseErr
	}
	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimPrefix(path, "/")
	segs := strings.Split(path, "/")

	// u.Path is empty for opaque kanban:// URIs; fall back to u.Opaque.
	if path == "" {
		path = strings.TrimPrefix(u.Opaque, "//")
		segs = strings.Split(path, "/")
	}

	idx := -1
	for i, s := range segs {
		if s == "cards" && i+1 < len(segs) {
			idx = i + 1
			break
		}
	}
	if idx == -1 {
		return "", "", 0, errBadCardURI(raw)
	}
	id = strings.ToUpper(segs[idx])

	mode = "brief"
	if v := u.Query().Get("mode"); v != "" {
		mode = v
	}
	limit = 3
	if v := u.Query().Get("limit"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			limit = n
		}
	}
	return id, mode, limit, nil
}

func errBadCardURI(uri string) error {
	return &badURIError{uri: uri}
}

type badURIError struct{ uri string }

func (e *badURIError) Error() string { return "malformed card resource URI: " + e.uri }

// cardState renders the JSON state payload for the cards/{id}/state
// resource: brief mode omits the body and embedded notes; full mode
// includes the body and up to limit most-recent notes.
func cardState(board *store.Board, id, mode string, limit int) ([]byte, error) {
	res, err := board.Get(id)
	if err != nil {
		return nil, err
	}

	state := map[string]any{
		"id":           res.Card.ID,
		"title":        res.Card.Title,
		"column":       res.Column,
		"lane":         res.Card.Lane,
		"priority":     res.Card.Priority,
		"size":         res.Card.Size,
		"status":       res.Card.Status,
		"assignees":    res.Card.Assignees,
		"labels":       res.Card.Labels,
		"depends_on":   res.Card.DependsOn,
		"parent":       res.Card.Parent,
		"relates_to":   res.Card.RelatesTo,
		"created_at":   formatTime(res.Card.CreatedAt),
		"completed_at": formatTime(res.Card.CompletedAt),
	}

	if mode == "full" {
		state["body"] = res.Card.Body
		state["resume_hint"] = res.Card.ResumeHint
		state["next_steps"] = res.Card.NextSteps
		state["blockers"] = res.Card.Blockers

		notes, err := board.NotesList(id, limit)
		if err != nil {
			return nil, err
		}
		state["notes"] = notes
	}

	return json.Marshal(state)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
