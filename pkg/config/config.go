// Package config loads recalld's YAML configuration file.
//
// Every field has a working default, and a missing config file is not an
// error: a bare `recalld` starts with defaults and API keys from the
// environment. A present but malformed file is an error; silently ignoring
// a config the operator wrote would be worse than refusing to start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds the HTTP listener settings.
type Server struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string `yaml:"addr"`

	// SeedPath optionally points at a ChatGPT-export conversations.json
	// to import at startup.
	SeedPath string `yaml:"seed_path"`
}

// Logging holds log-output settings.
type Logging struct {
	// Directory overrides where session log files are written.
	Directory string `yaml:"directory"`
}

// Models selects the backing models per concern.
type Models struct {
	// ReplyModel generates user-facing replies (Anthropic).
	ReplyModel string `yaml:"reply_model"`

	// ReplyMaxTokens caps reply length.
	ReplyMaxTokens int64 `yaml:"reply_max_tokens"`

	// StructuredModel handles summarization, selection, and consolidation
	// (OpenAI-compatible).
	StructuredModel string `yaml:"structured_model"`

	// OpenAIBaseURL points the structured model at an OpenAI-compatible
	// endpoint. Empty means api.openai.com.
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// Memory tunes the update scheduler and consolidator.
type Memory struct {
	// UpdateTimeout bounds one memory recomputation.
	UpdateTimeout Duration `yaml:"update_timeout"`

	// DigestTokens is the per-conversation token budget during
	// consolidation.
	DigestTokens int `yaml:"digest_tokens"`

	// RecentTurns is how many trailing messages each consolidation digest
	// includes.
	RecentTurns int `yaml:"recent_turns"`
}

// Selection tunes the context selector.
type Selection struct {
	// MaxSelections caps how many conversations one query pulls in.
	MaxSelections int `yaml:"max_selections"`

	// CacheTTL is how long relevance verdicts are reused. Zero disables
	// the cache.
	CacheTTL Duration `yaml:"cache_ttl"`
}

// Chat tunes turn handling.
type Chat struct {
	// HistoryWindow is how many trailing messages reply prompts include.
	HistoryWindow int `yaml:"history_window"`
}

// Config is the full recalld configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
	Models    Models    `yaml:"models"`
	Memory    Memory    `yaml:"memory"`
	Selection Selection `yaml:"selection"`
	Chat      Chat      `yaml:"chat"`
}

// Default returns the configuration recalld runs with when no file exists.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr: ":8000",
		},
		Models: Models{
			ReplyModel:      "claude-sonnet-4-20250514",
			ReplyMaxTokens:  8192,
			StructuredModel: "gpt-4o-mini",
		},
		Memory: Memory{
			UpdateTimeout: Duration(2 * time.Minute),
			DigestTokens:  600,
			RecentTurns:   6,
		},
		Selection: Selection{
			MaxSelections: 3,
			CacheTTL:      Duration(5 * time.Minute),
		},
		Chat: Chat{
			HistoryWindow: 6,
		},
	}
}

// DefaultPath returns the conventional config location, ~/.recall/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".recall", "config.yaml"), nil
}

// Load reads the config at path, layered over defaults. An empty path uses
// DefaultPath. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Duration is a time.Duration that unmarshals from YAML strings like "90s"
// or "2m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration must be a string like \"90s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}
