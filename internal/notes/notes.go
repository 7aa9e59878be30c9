// Package notes implements the append-only NDJSON notes journal kept
// alongside each card: one file per card, one JSON object per line, no
// invariant logic beyond append and bounded-tail read.
package notes

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kanban-mcp/kanban/internal/kerr"
)

// Entry is one line of a card's notes journal.
type Entry struct {
	At     string `json:"at"`
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// Journal wraps one card's notes.ndjson file on disk.
type Journal struct {
	path string
}

// Open returns a Journal bound to path; it does not need to exist yet.
func Open(path string) *Journal {
	return &Journal{path: path}
}

// Append writes entry as a new line, creating the journal file and its
// parent directory if needed.
func (j *Journal) Append(entry Entry) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return kerr.Wrap(err, "create notes directory for %q", j.path)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return kerr.Wrap(err, "open notes journal %q", j.path)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return kerr.Wrap(err, "marshal note entry")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return kerr.Wrap(err, "append notes journal %q", j.path)
	}
	return f.Sync()
}

// List returns up to limit entries, most recent first. limit <= 0 means
// unbounded. A missing journal is treated as empty.
func (j *Journal) List(limit int) ([]Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kerr.Wrap(err, "open notes journal %q", j.path)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, kerr.Wrap(err, "parse notes journal line")
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, kerr.Wrap(err, "scan notes journal %q", j.path)
	}

	reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func reverse(es []Entry) {
	for i, j := 0, len(es)-1; i < j; i, j = i+1, j-1 {
		es[i], es[j] = es[j], es[i]
	}
}

