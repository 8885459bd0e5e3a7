package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   vault directory
//	-u string   inference backend base URL (OpenAI-compatible)
//	-m string   chat model name
//	-e string   embedding model name
//	-t int      session timeout in minutes
//	-l string   log level (debug, info, warn, error)
//
// The function filters os.Args to only the flags it owns, via
// flagx.FilterArgs, so other components can define their own.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-u", "-m", "-e", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.VaultDir, "d", cfg.VaultDir, "vault directory")
	fs.StringVar(&cfg.InferenceBaseURL, "u", cfg.InferenceBaseURL, "inference backend base URL")
	fs.StringVar(&cfg.ChatModel, "m", cfg.ChatModel, "chat model")
	fs.StringVar(&cfg.EmbedModel, "e", cfg.EmbedModel, "embedding model")
	sessionTimeout := fs.Int("t", int(cfg.SessionTimeout.Minutes()), "session timeout (in minutes)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SessionTimeout = time.Duration(*sessionTimeout) * time.Minute
}
