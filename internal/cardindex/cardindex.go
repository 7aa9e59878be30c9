// Package cardindex maintains .kanban/cards.ndjson: one JSON object per
// line holding the minimal metadata needed to list and locate a card
// without opening its file. Every mutation is a full read-modify-write
// rewrite through a temp file and rename, so a reader always observes
// either the complete old file or the complete new one (spec §4.5, §5).
package cardindex

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/pathguard"
)

// Record is one line of cards.ndjson.
type Record struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Column      string   `json:"column"`
	Lane        string   `json:"lane"`
	Assignees   []string `json:"assignees,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
	Path        string   `json:"path"`
}

// Index wraps one cards.ndjson file on disk.
type Index struct {
	path string
}

// Open returns an Index bound to path; it does not need to exist yet.
func Open(path string) *Index {
	return &Index{path: path}
}

// Load reads every record currently on disk, sorted by id for
// deterministic iteration. A missing file is treated as empty.
func (idx *Index) Load() ([]Record, error) {
	f, err := os.Open(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kerr.Wrap(err, "open card index %q", idx.path)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, kerr.Wrap(err, "parse card index line")
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, kerr.Wrap(err, "scan card index %q", idx.path)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Save rewrites the whole index atomically with records sorted by id.
func (idx *Index) Save(records []Record) error {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var buf bytes.Buffer
	for _, r := range sorted {
		line, err := json.Marshal(r)
		if err != nil {
			return kerr.Wrap(err, "marshal card index record %q", r.ID)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return cardfile.WriteFile(idx.path, buf.Bytes(), cardfile.AtomicWriteOptions{})
}

// Upsert replaces the record with a matching id (case-fold), or appends
// it if no such record exists, then rewrites the index atomically.
func (idx *Index) Upsert(rec Record) error {
	records, err := idx.Load()
	if err != nil {
		return err
	}
	rec.ID = strings.ToUpper(rec.ID)
	replaced := false
	for i, r := range records {
		if pathguard.EqualID(r.ID, rec.ID) {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return idx.Save(records)
}

// Remove drops the record with the given id, if present.
func (idx *Index) Remove(id string) error {
	records, err := idx.Load()
	if err != nil {
		return err
	}
	out := records[:0]
	for _, r := range records {
		if !pathguard.EqualID(r.ID, id) {
			out = append(out, r)
		}
	}
	return idx.Save(out)
}

// Lookup does an O(n) linear scan for id; acceptable at the tens-of-
// thousands scale spec §4.5 targets. Callers doing many lookups in one
// operation should Load once and scan themselves.
func (idx *Index) Lookup(id string) (Record, bool, error) {
	records, err := idx.Load()
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if pathguard.EqualID(r.ID, id) {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}
