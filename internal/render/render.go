// Package render produces the read-only Markdown views spec §6 serves as
// resources: the aggregate board view (kanban://{board}/board) and the
// static usage manual (kanban://{board}/manual). Both are flat Markdown
// text with no parse step, so rendering is done with text/template
// rather than a markdown-AST library (see DESIGN.md).
package render

import (
	"sort"
	"strings"
	"text/template"

	"github.com/kanban-mcp/kanban/internal/cardindex"
	"github.com/kanban-mcp/kanban/internal/columns"
)

var boardTmpl = template.Must(template.New("board").Parse(
	`# Board

{{range .Columns}}## {{.Title}} ({{len .Cards}})
{{range .Cards}}- {{.ID}} {{.Title}}{{if .Lane}} [{{.Lane}}]{{end}}
{{else}}_empty_
{{end}}
{{end}}`))

type boardColumn struct {
	Title string
	Cards []cardindex.Record
}

type boardView struct {
	Columns []boardColumn
}

// Board renders an aggregate Markdown view of every declared column in
// declaration order, cards ordered as List() would order them within a
// column (created_at asc, id asc); done cards appear under the done
// column wherever it is declared.
func Board(cols *columns.Config, records []cardindex.Record) (string, error) {
	byColumn := map[string][]cardindex.Record{}
	for _, r := range records {
		byColumn[strings.ToLower(r.Column)] = append(byColumn[strings.ToLower(r.Column)], r)
	}

	view := boardView{}
	for _, col := range cols.Columns {
		cards := byColumn[strings.ToLower(col.Key)]
		sort.SliceStable(cards, func(i, j int) bool {
			if cards[i].CreatedAt != cards[j].CreatedAt {
				return cards[i].CreatedAt < cards[j].CreatedAt
			}
			return cards[i].ID < cards[j].ID
		})
		view.Columns = append(view.Columns, boardColumn{Title: col.Title, Cards: cards})
	}

	var buf strings.Builder
	if err := boardTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Manual is the static Markdown help text served at
// kanban://{board}/manual.
func Manual() string {
	return manualText
}

const manualText = `# kanban-mcp

A file-backed Kanban board. Cards are Markdown files with YAML front
matter, one per file, grouped into column directories under ` + "`.kanban/`" + `.

## Tools

- ` + "`kanban/new`" + ` — create a card.
- ` + "`kanban/move`" + ` — move a card between columns.
- ` + "`kanban/done`" + ` — mark a card complete and file it under ` + "`done/`" + `.
- ` + "`kanban/update`" + ` — patch a card's front matter and/or body.
- ` + "`kanban/list`" + ` — query cards with filters and pagination.
- ` + "`kanban/get`" + ` — fetch one card in full.
- ` + "`kanban/tree`" + ` — walk a card's parent/child subtree.
- ` + "`kanban/relations.set`" + ` — add or remove parent/depends/relates edges.
- ` + "`kanban/watch.start`" + `, ` + "`kanban/watch.stop`" + ` — control the FS watcher.

## Resources

- ` + "`kanban://{board}/manual`" + ` — this document.
- ` + "`kanban://{board}/board`" + ` — an aggregate view of every column.
- ` + "`kanban://{board}/columns`" + ` — the board's ` + "`columns.toml`" + ` verbatim.
- ` + "`kanban://{board}/cards/{ULID}`" + ` — one card's Markdown source.
- ` + "`kanban://{board}/cards/{ULID}/state`" + ` — one card's JSON state;
  ` + "`?mode=full`" + ` adds the body and a slice of its most recent notes.
`
