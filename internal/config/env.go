package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays cfg with MINDVAULT_* environment variables (see the env
// struct tags on Config). Unset variables leave values untouched.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
