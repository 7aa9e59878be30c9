// Package cardfile parses and serializes a card's Markdown file: a YAML
// front-matter block delimited by "---" lines followed by a free-form
// Markdown body. Round-trip fidelity on unknown front-matter keys (R1) is
// a first-class property: parse-then-serialize must reproduce any key
// this package does not itself understand, in the order it first saw it.
package cardfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kanban-mcp/kanban/internal/kerr"
)

// orderedKnown lists the front-matter keys this package understands, in
// the exact order spec §4.3 requires on serialize: required fields first
// (§3's required list), then recommended fields, "status" placed with
// them since spec §3 describes it as an advisory card field without
// assigning it to either bucket explicitly.
var orderedKnown = []string{
	"id", "title", "lane", "priority", "size",
	"status", "assignees", "labels", "created_at", "completed_at",
	"depends_on", "parent", "relates_to",
	"resume_hint", "next_steps", "blockers", "last_note_at",
}

// Card is the parsed (front matter, body) pair for one card file.
type Card struct {
	ID          string
	Title       string
	Lane        string
	Priority    string // P0..P3
	Size        int
	Status      string
	Assignees   []string
	Labels      []string
	CreatedAt   *time.Time
	CompletedAt *time.Time
	DependsOn   []string
	Parent      string // "" means no parent
	RelatesTo   []string
	ResumeHint  string
	NextSteps   []string
	Blockers    []string
	LastNoteAt  *time.Time

	Body string

	// seenOptional records which optional scalar keys were present in
	// the source document (even as null), so Serialize can round-trip
	// an explicit "key: null" instead of silently dropping the key.
	seenOptional map[string]bool

	// unknownOrder/unknownNodes preserve any front-matter key this
	// package doesn't model, in first-seen order, for round-trip R1.
	unknownOrder []string
	unknownNodes map[string]*yaml.Node
}

func (c *Card) markSeen(key string) {
	if c.seenOptional == nil {
		c.seenOptional = map[string]bool{}
	}
	c.seenOptional[key] = true
}

func (c *Card) wasSeen(key string) bool {
	return c.seenOptional != nil && c.seenOptional[key]
}

const delim = "---"

// Parse splits raw file bytes into front matter and body. Line endings
// are normalized from CRLF to LF on read per spec §4.1.
func Parse(data []byte) (*Card, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != delim {
		return nil, kerr.Invalid("card file missing leading front-matter delimiter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, kerr.Invalid("card file front matter never closed with %q", delim)
	}

	fmText := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(fmText), &root); err != nil {
		return nil, kerr.Invalid("parse front matter: %v", err)
	}
	if len(root.Content) == 0 {
		return &Card{Body: body, unknownNodes: map[string]*yaml.Node{}}, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, kerr.Invalid("front matter is not a mapping")
	}

	c := &Card{Body: body, unknownNodes: map[string]*yaml.Node{}}
	known := map[string]bool{}
	for _, k := range orderedKnown {
		known[k] = true
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode := mapping.Content[i]
		valNode := mapping.Content[i+1]
		key := keyNode.Value

		if !known[key] {
			c.unknownOrder = append(c.unknownOrder, key)
			c.unknownNodes[key] = valNode
			continue
		}

		if err := c.assign(key, valNode); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Card) assign(key string, v *yaml.Node) error {
	switch key {
	case "id":
		c.ID = strings.ToUpper(v.Value)
	case "title":
		c.Title = v.Value
	case "lane":
		c.Lane = v.Value
	case "priority":
		c.Priority = v.Value
	case "size":
		n, err := strconv.Atoi(v.Value)
		if err != nil {
			return kerr.Invalid("size is not an integer: %q", v.Value)
		}
		c.Size = n
	case "status":
		c.markSeen("status")
		c.Status = v.Value
	case "assignees":
		return v.Decode(&c.Assignees)
	case "labels":
		return v.Decode(&c.Labels)
	case "created_at":
		return decodeTimePtr(v, &c.CreatedAt)
	case "completed_at":
		c.markSeen("completed_at")
		return decodeTimePtr(v, &c.CompletedAt)
	case "depends_on":
		return v.Decode(&c.DependsOn)
	case "parent":
		c.markSeen("parent")
		if v.Tag == "!!null" {
			c.Parent = ""
			return nil
		}
		c.Parent = strings.ToUpper(v.Value)
	case "relates_to":
		return v.Decode(&c.RelatesTo)
	case "resume_hint":
		c.markSeen("resume_hint")
		c.ResumeHint = v.Value
	case "next_steps":
		return v.Decode(&c.NextSteps)
	case "blockers":
		return v.Decode(&c.Blockers)
	case "last_note_at":
		c.markSeen("last_note_at")
		return decodeTimePtr(v, &c.LastNoteAt)
	}
	return nil
}

func decodeTimePtr(v *yaml.Node, dst **time.Time) error {
	if v.Tag == "!!null" || v.Value == "" {
		*dst = nil
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.Value)
	if err != nil {
		return kerr.Invalid("invalid RFC3339 timestamp %q", v.Value)
	}
	*dst = &t
	return nil
}

// Serialize renders the card back to file bytes: "---\n" <front matter>
// "---\n" <body>. Known fields are emitted in the fixed order from spec
// §4.3; unmodeled keys follow in first-seen order; LF line endings only.
func (c *Card) Serialize() []byte {
	var mapping yaml.Node
	mapping.Kind = yaml.MappingNode

	add := func(key string, val *yaml.Node) {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		mapping.Content = append(mapping.Content, keyNode, val)
	}
	scalar := func(s string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	}
	nullNode := func() *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	seqNode := func(items []string) *yaml.Node {
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range items {
			n.Content = append(n.Content, scalar(it))
		}
		return n
	}
	timeNode := func(t *time.Time) *yaml.Node {
		if t == nil {
			return nullNode()
		}
		return scalar(t.UTC().Format(time.RFC3339))
	}

	add("id", scalar(strings.ToUpper(c.ID)))
	add("title", scalar(c.Title))
	add("lane", scalar(c.Lane))
	add("priority", scalar(c.Priority))
	add("size", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(c.Size)})
	if c.Status != "" || c.wasSeen("status") {
		add("status", scalar(c.Status))
	}
	if c.Assignees != nil {
		add("assignees", seqNode(c.Assignees))
	}
	if c.Labels != nil {
		add("labels", seqNode(c.Labels))
	}
	if c.CreatedAt != nil {
		add("created_at", timeNode(c.CreatedAt))
	}
	if c.CompletedAt != nil {
		add("completed_at", timeNode(c.CompletedAt))
	} else if c.wasSeen("completed_at") {
		add("completed_at", nullNode())
	}
	if c.DependsOn != nil {
		add("depends_on", seqNode(c.DependsOn))
	}
	if c.Parent != "" {
		add("parent", scalar(strings.ToUpper(c.Parent)))
	} else if c.wasSeen("parent") {
		add("parent", nullNode())
	}
	if c.RelatesTo != nil {
		add("relates_to", seqNode(c.RelatesTo))
	}
	if c.ResumeHint != "" || c.wasSeen("resume_hint") {
		add("resume_hint", scalar(c.ResumeHint))
	}
	if c.NextSteps != nil {
		add("next_steps", seqNode(c.NextSteps))
	}
	if c.Blockers != nil {
		add("blockers", seqNode(c.Blockers))
	}
	if c.LastNoteAt != nil {
		add("last_note_at", timeNode(c.LastNoteAt))
	} else if c.wasSeen("last_note_at") {
		add("last_note_at", nullNode())
	}

	for _, k := range c.unknownOrder {
		add(k, c.unknownNodes[k])
	}

	out, err := yaml.Marshal(&mapping)
	if err != nil {
		// Marshalling a well-formed node tree cannot fail in practice;
		// surface it loudly rather than emit a truncated card.
		panic(fmt.Sprintf("cardfile: marshal front matter: %v", err))
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(out)
	buf.WriteString(delim + "\n")
	if c.Body != "" {
		buf.WriteString(c.Body)
		if !strings.HasSuffix(c.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes()
}

// MarkOptionalSeen exposes seenOptional bookkeeping to callers (the
// store layer) that programmatically clear a scalar field to null and
// need Serialize to emit "key: null" rather than omit the key.
func (c *Card) MarkOptionalSeen(key string) { c.markSeen(key) }

// AtomicWriteOptions controls the write contract of WriteFile.
type AtomicWriteOptions struct {
	TmpSuffix string // default ".tmp"
}

// WriteFile writes data to target via a temp file + fsync + rename, so a
// crash mid-write never leaves a partial file at target.
func WriteFile(target string, data []byte, opts AtomicWriteOptions) error {
	suffix := opts.TmpSuffix
	if suffix == "" {
		suffix = ".tmp"
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kerr.Wrap(err, "create directory %q", dir)
	}

	tmp := target + suffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return kerr.Wrap(err, "open temp file %q", tmp)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return kerr.Wrap(err, "write temp file %q", tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return kerr.Wrap(err, "fsync temp file %q", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return kerr.Wrap(err, "close temp file %q", tmp)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return kerr.Wrap(err, "rename %q to %q", tmp, target)
	}
	return nil
}

// ReadFile reads and parses a card file from disk.
func ReadFile(path string) (*Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerr.NotFoundf("card file %q does not exist", path)
		}
		return nil, kerr.Wrap(err, "read card file %q", path)
	}
	return Parse(data)
}
