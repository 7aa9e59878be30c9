// Package logging builds the *log.Logger every long-running component
// (the MCP server, the watcher, the board) is handed, following the
// teacher's log.New(os.Stderr, "[component] ", log.LstdFlags) pattern.
// When KANBAN_MCP_LOG names a file, output is teed to a
// lumberjack-rotated file alongside stderr.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Prefix is the bracketed component tag, e.g. "mcp", "watcher".
	Prefix string
	// FilePath, if non-empty, is the rotating log file path
	// (KANBAN_MCP_LOG). Rotation defaults mirror typical daemon usage:
	// 10MB per file, 5 backups, 28 days retention.
	FilePath string
}

// New builds a *log.Logger writing to stderr, and additionally to a
// rotating file when opts.FilePath is set.
func New(opts Options) *log.Logger {
	var out io.Writer = os.Stderr
	if opts.FilePath != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     28,
		})
	}
	prefix := ""
	if opts.Prefix != "" {
		prefix = "[" + opts.Prefix + "] "
	}
	return log.New(out, prefix, log.LstdFlags)
}
