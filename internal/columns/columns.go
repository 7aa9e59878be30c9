// Package columns loads columns.toml: the declared column list, WIP
// limits, and the watch/writer/render/board tuning sections.
package columns

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kanban-mcp/kanban/internal/kerr"
)

// Column is one declared board column.
type Column struct {
	Key      string `toml:"key"`
	Title    string `toml:"title"`
	WIPLimit int    `toml:"wip_limit"`
}

// DonePartition selects how the done column is physically partitioned.
type DonePartition string

const (
	PartitionMonth DonePartition = "yyyy-mm"
	PartitionQuarter DonePartition = "yyyy-q"
	PartitionNone  DonePartition = "none"
)

// WIPEnforce selects move's behavior on a WIP limit violation.
type WIPEnforce string

const (
	WIPWarn  WIPEnforce = "warn"
	WIPError WIPEnforce = "error"
)

// ParentDonePolicy selects done's behavior when a child isn't done yet.
type ParentDonePolicy string

const (
	ParentDoneEnforce ParentDonePolicy = "enforce"
	ParentDoneWarn    ParentDonePolicy = "warn"
	ParentDoneIgnore  ParentDonePolicy = "ignore"
)

type doneSection struct {
	Partition string `toml:"partition"`
}

type watchSection struct {
	HotColumns  []string `toml:"hot_columns"`
	DebounceMs  int      `toml:"debounce_ms"`
	MaxBatch    int      `toml:"max_batch"`
}

type writerSection struct {
	AutoRenameOnConflict bool   `toml:"auto_rename_on_conflict"`
	RenameSuffix         string `toml:"rename_suffix"`
}

type renderSection struct {
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

type boardSection struct {
	WIPEnforce       string `toml:"wip_enforce"`
	ParentDonePolicy string `toml:"parent_done_policy"`
}

// raw mirrors the on-disk columns.toml layout for BurntSushi/toml.
type raw struct {
	Columns []Column      `toml:"columns"`
	Done    doneSection   `toml:"done"`
	Watch   watchSection  `toml:"watch"`
	Writer  writerSection `toml:"writer"`
	Render  renderSection `toml:"render"`
	Board   boardSection  `toml:"board"`
}

// Config is the fully-defaulted, validated columns.toml.
type Config struct {
	Columns []Column

	DonePartition DonePartition

	HotColumns []string
	DebounceMs int
	MaxBatch   int

	AutoRenameOnConflict bool
	RenameSuffix         string

	RenderEnabled    bool
	RenderDebounceMs int

	WIPEnforce       WIPEnforce
	ParentDonePolicy ParentDonePolicy
}

// Load reads and validates columns.toml at path, applying the defaults
// from spec §4.4 for every section a board omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerr.Wrap(err, "read columns config %q", path)
	}
	return Parse(data)
}

// Parse validates raw TOML bytes into a defaulted Config.
func Parse(data []byte) (*Config, error) {
	var r raw
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, kerr.Invalid("parse columns.toml: %v", err)
	}
	if len(r.Columns) == 0 {
		return nil, kerr.Invalid("columns.toml declares no [[columns]]")
	}

	seen := map[string]bool{}
	var keys []string
	for _, c := range r.Columns {
		if c.Key == "" {
			return nil, kerr.Invalid("column declared with empty key")
		}
		if seen[c.Key] {
			return nil, kerr.Invalid("duplicate column key %q", c.Key)
		}
		seen[c.Key] = true
		keys = append(keys, c.Key)
	}
	if !seen["done"] {
		return nil, kerr.Invalid("columns.toml must declare a %q column", "done")
	}

	cfg := &Config{Columns: r.Columns}

	switch DonePartition(r.Done.Partition) {
	case PartitionMonth, PartitionQuarter:
		cfg.DonePartition = DonePartition(r.Done.Partition)
	case PartitionNone, "":
		cfg.DonePartition = PartitionNone
	default:
		return nil, kerr.Invalid("unknown done.partition %q", r.Done.Partition)
	}

	cfg.HotColumns = r.Watch.HotColumns
	if len(cfg.HotColumns) == 0 {
		if len(keys) <= 1 {
			cfg.HotColumns = keys
		} else {
			cfg.HotColumns = []string{"backlog", "doing"}
			// Only keep defaults that are actually declared columns.
			var filtered []string
			for _, k := range cfg.HotColumns {
				if seen[k] {
					filtered = append(filtered, k)
				}
			}
			if len(filtered) == 0 {
				filtered = keys
			}
			cfg.HotColumns = filtered
		}
	}

	cfg.DebounceMs = r.Watch.DebounceMs
	if cfg.DebounceMs == 0 {
		cfg.DebounceMs = 300
	}
	cfg.MaxBatch = r.Watch.MaxBatch
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 50
	}

	cfg.AutoRenameOnConflict = r.Writer.AutoRenameOnConflict
	cfg.RenameSuffix = r.Writer.RenameSuffix
	if cfg.RenameSuffix == "" {
		cfg.RenameSuffix = "-dup"
	}

	cfg.RenderEnabled = r.Render.Enabled
	cfg.RenderDebounceMs = r.Render.DebounceMs
	if cfg.RenderDebounceMs == 0 {
		cfg.RenderDebounceMs = 800
	}

	switch WIPEnforce(r.Board.WIPEnforce) {
	case WIPError:
		cfg.WIPEnforce = WIPError
	default:
		cfg.WIPEnforce = WIPWarn
	}
	switch ParentDonePolicy(r.Board.ParentDonePolicy) {
	case ParentDoneEnforce:
		cfg.ParentDonePolicy = ParentDoneEnforce
	case ParentDoneIgnore:
		cfg.ParentDonePolicy = ParentDoneIgnore
	default:
		cfg.ParentDonePolicy = ParentDoneWarn
	}

	return cfg, nil
}

// HasColumn reports whether key is a declared column (case-fold).
func (c *Config) HasColumn(key string) bool {
	_, ok := c.Order(key)
	return ok
}

// Order returns the declaration-order index of key, or ok=false.
func (c *Config) Order(key string) (int, bool) {
	for i, col := range c.Columns {
		if strings.EqualFold(col.Key, key) {
			return i, true
		}
	}
	return 0, false
}

// WIPLimit returns the WIP limit for key (0 = unlimited), or ok=false if
// key is not a declared column.
func (c *Config) WIPLimit(key string) (int, bool) {
	for _, col := range c.Columns {
		if strings.EqualFold(col.Key, key) {
			return col.WIPLimit, true
		}
	}
	return 0, false
}
