// Package config loads runtime configuration for the mindvault CLI.
//
// Sources & precedence (later overrides earlier):
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. MINDVAULT_* environment variables.
//  4. Command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the mindvault CLI.
//
// Durations accept Go syntax in JSON and environment sources ("30m", "5s").
type Config struct {
	VaultDir         string        `json:"vault_dir" env:"MINDVAULT_DIR"`
	InferenceBaseURL string        `json:"inference_base_url" env:"MINDVAULT_INFERENCE_BASE_URL"`
	ChatModel        string        `json:"chat_model" env:"MINDVAULT_CHAT_MODEL"`
	EmbedModel       string        `json:"embed_model" env:"MINDVAULT_EMBED_MODEL"`
	InferenceTimeout time.Duration `json:"inference_timeout" env:"MINDVAULT_INFERENCE_TIMEOUT"`
	SessionTimeout   time.Duration `json:"session_timeout" env:"MINDVAULT_SESSION_TIMEOUT"`
	LogLevel         string        `json:"log_level" env:"MINDVAULT_LOG_LEVEL"`
	HistoryTurns     int           `json:"history_turns" env:"MINDVAULT_HISTORY_TURNS"`
	TopK             int           `json:"top_k" env:"MINDVAULT_TOP_K"`
}

// LoadDefaults populates c with sensible defaults. The backend defaults
// target a local Ollama-style server's OpenAI-compatible endpoint.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.VaultDir = filepath.Join(home, ".mindvault")
	c.InferenceBaseURL = "http://127.0.0.1:11434/v1"
	c.ChatModel = "llama3.1"
	c.EmbedModel = "nomic-embed-text"
	c.InferenceTimeout = 5 * time.Minute
	c.SessionTimeout = 30 * time.Minute
	c.LogLevel = "warn"
	c.HistoryTurns = 10
	c.TopK = 5
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables, and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
