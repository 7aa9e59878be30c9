// Package dispatch routes a {name, arguments} tool-call request to the
// appropriate board or watcher operation. Tool names are accepted in
// either of two surface forms — namespaced ("kanban/new",
// "kanban/relations.set") or flat ("kanban_new",
// "kanban_relations_set") — and normalized to one internal form before
// lookup (spec §4.9).
package dispatch

import (
	"strings"

	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/relations"
	"github.com/kanban-mcp/kanban/internal/store"
	"github.com/kanban-mcp/kanban/internal/watcher"
)

// Args is the decoded {name, arguments} request payload.
type Args map[string]any

func (a Args) str(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Args) strPtr(key string) *string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	if v == nil {
		s := ""
		return &s
	}
	s, _ := v.(string)
	return &s
}

func (a Args) strSlice(key string) []string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a Args) intVal(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func (a Args) boolVal(key string) bool {
	v, _ := a[key].(bool)
	return v
}

// Tool is one entry in the dispatcher's catalog.
type Tool struct {
	Name    string
	Handler func(Args) (any, error)
}

// Dispatcher routes normalized tool names to Board/Watcher operations.
type Dispatcher struct {
	board   *store.Board
	watch   *watcher.Watcher
	tools   map[string]Tool
	ordered []string
}

// New builds a Dispatcher over board and watch, registering the full
// tool catalog from spec §4.9 (new, move, done, update, list, get,
// tree, relations.set, watch.start, watch.stop).
func New(board *store.Board, watch *watcher.Watcher) *Dispatcher {
	d := &Dispatcher{board: board, watch: watch, tools: map[string]Tool{}}
	d.register("kanban/new", d.doNew)
	d.register("kanban/move", d.doMove)
	d.register("kanban/done", d.doDone)
	d.register("kanban/update", d.doUpdate)
	d.register("kanban/list", d.doList)
	d.register("kanban/get", d.doGet)
	d.register("kanban/tree", d.doTree)
	d.register("kanban/relations.set", d.doRelationsSet)
	d.register("kanban/watch.start", d.doWatchStart)
	d.register("kanban/watch.stop", d.doWatchStop)
	return d
}

func (d *Dispatcher) register(canonical string, handler func(Args) (any, error)) {
	d.tools[Normalize(canonical)] = Tool{Name: canonical, Handler: handler}
	d.ordered = append(d.ordered, canonical)
}

// Tools lists every registered tool in its canonical namespaced form,
// registration order.
func (d *Dispatcher) Tools() []string {
	return append([]string(nil), d.ordered...)
}

// Normalize maps either surface form of a tool name to the internal
// lookup key: "/" and "." both become "_".
func Normalize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return name
}

// Dispatch looks up name (either surface form) and invokes its handler
// with args. An unknown tool name is invalid-argument.
func (d *Dispatcher) Dispatch(name string, args Args) (any, error) {
	tool, ok := d.tools[Normalize(name)]
	if !ok {
		return nil, kerr.Invalid("unknown tool %q", name)
	}
	if args == nil {
		args = Args{}
	}
	return tool.Handler(args)
}

func (d *Dispatcher) doNew(a Args) (any, error) {
	return d.board.New(store.NewOptions{
		Title:     a.str("title"),
		Column:    a.str("column"),
		Lane:      a.str("lane"),
		Priority:  a.str("priority"),
		Size:      a.intVal("size", 0),
		Labels:    a.strSlice("labels"),
		Assignees: a.strSlice("assignees"),
		Body:      a.str("body"),
	})
}

func (d *Dispatcher) doMove(a Args) (any, error) {
	cardID := a.str("cardId")
	if cardID == "" {
		return nil, kerr.Invalid("cardId is required")
	}
	return d.board.Move(cardID, a.str("column"))
}

func (d *Dispatcher) doDone(a Args) (any, error) {
	cardID := a.str("cardId")
	if cardID == "" {
		return nil, kerr.Invalid("cardId is required")
	}
	return d.board.Done(cardID)
}

func (d *Dispatcher) doUpdate(a Args) (any, error) {
	cardID := a.str("cardId")
	if cardID == "" {
		return nil, kerr.Invalid("cardId is required")
	}
	patchArg, _ := a["patch"].(map[string]any)
	fmArg, _ := patchArg["fm"].(map[string]any)
	patch := Args(fmArg)

	fm := store.FrontMatterPatch{
		Title:      patch.strPtr("title"),
		Lane:       patch.strPtr("lane"),
		Priority:   patch.strPtr("priority"),
		Status:     patch.strPtr("status"),
		ResumeHint: patch.strPtr("resume_hint"),
	}
	if _, ok := fmArg["size"]; ok {
		n := patch.intVal("size", 0)
		fm.Size = &n
	}
	if _, ok := fmArg["assignees"]; ok {
		s := patch.strSlice("assignees")
		fm.Assignees = &s
	}
	if _, ok := fmArg["labels"]; ok {
		s := patch.strSlice("labels")
		fm.Labels = &s
	}
	if _, ok := fmArg["next_steps"]; ok {
		s := patch.strSlice("next_steps")
		fm.NextSteps = &s
	}
	if _, ok := fmArg["blockers"]; ok {
		s := patch.strSlice("blockers")
		fm.Blockers = &s
	}

	var body *store.BodyPatch
	if raw, present := patchArg["body"]; present {
		rawBody, ok := raw.(map[string]any)
		if !ok {
			return nil, kerr.Invalid("patch.body must be an object")
		}
		b := Args(rawBody)
		text, hasText := rawBody["text"].(string)
		if !hasText {
			return nil, kerr.Invalid("patch.body.text is required")
		}
		body = &store.BodyPatch{Text: text, Replace: b.boolVal("replace")}
	}

	return d.board.Update(cardID, store.UpdatePatch{FM: fm, Body: body})
}

func (d *Dispatcher) doList(a Args) (any, error) {
	return d.board.List(store.ListQuery{
		Columns:     a.strSlice("columns"),
		Lane:        a.str("lane"),
		Assignee:    a.str("assignee"),
		Label:       a.str("label"),
		Priority:    a.str("priority"),
		Query:       a.str("query"),
		IncludeDone: a.boolVal("includeDone"),
		Offset:      a.intVal("offset", 0),
		Limit:       a.intVal("limit", 200),
	})
}

func (d *Dispatcher) doGet(a Args) (any, error) {
	cardID := a.str("cardId")
	if cardID == "" {
		return nil, kerr.Invalid("cardId is required")
	}
	return d.board.Get(cardID)
}

func (d *Dispatcher) doTree(a Args) (any, error) {
	root := a.str("root")
	if root == "" {
		return nil, kerr.Invalid("root is required")
	}
	return d.board.Tree(root, a.intVal("depth", 3))
}

func (d *Dispatcher) doRelationsSet(a Args) (any, error) {
	return d.board.RelationsSet(decodeEdges(a["add"]), decodeEdges(a["remove"]))
}

func decodeEdges(raw any) []relations.Edge {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	edges := make([]relations.Edge, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		e := Args(m)
		edges = append(edges, relations.Edge{
			Type: relations.EdgeType(e.str("type")),
			From: e.str("from"),
			To:   e.str("to"),
		})
	}
	return edges
}

func (d *Dispatcher) doWatchStart(a Args) (any, error) {
	return d.watch.Start()
}

func (d *Dispatcher) doWatchStop(a Args) (any, error) {
	return d.watch.Stop(), nil
}
