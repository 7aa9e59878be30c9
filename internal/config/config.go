// Package config resolves the CLI flags and environment variables spec
// §6 names into one Config, following the teacher's viper-backed
// layered-load pattern (env vars override built-in defaults; flags
// override both).
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration for `kanban mcp`
// and the maintenance subcommands.
type Config struct {
	Board        string // --board
	LogLevel     string // --log-level
	OpenAICompat bool   // --openai
	FailOn       string // --fail-on (lint severity threshold)
	LogFile      string // KANBAN_MCP_LOG
	Watch        bool   // KANBAN_MCP_WATCH, default true
	IndexFormat  string // KANBAN_MCP_INDEX, default "ndjson"
}

// Load builds a Config from environment variables, defaulted, then
// overridden by any flags the caller already parsed onto v (the CLI
// layer binds cobra flags onto v before calling Load).
func Load(v *viper.Viper) Config {
	v.SetEnvPrefix("KANBAN_MCP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("watch", true)
	v.SetDefault("index", "ndjson")
	v.SetDefault("log-level", "info")
	v.SetDefault("fail-on", "error")

	return Config{
		Board:        v.GetString("board"),
		LogLevel:     v.GetString("log-level"),
		OpenAICompat: v.GetBool("openai"),
		FailOn:       v.GetString("fail-on"),
		LogFile:      v.GetString("log"),
		Watch:        v.GetBool("watch"),
		IndexFormat:  v.GetString("index"),
	}
}
