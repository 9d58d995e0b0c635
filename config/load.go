package config

import (
	"os"

	"github.com/minnehack/checkchain/internal/log"
)

// Load composes configuration with the following precedence, lowest to
// highest: built-in defaults, an optional TOML file, command-line flags.
// A missing or malformed file is never fatal — it is logged as a warning
// and the defaults (or prior layers) stand.
func Load() *Config {
	flags := ParseFlags()
	cfg := Default()

	path := flags.ConfigFilePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	} else if err := LoadFile(cfg, path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not parse config file, using defaults")
	}

	ApplyFlags(cfg, flags)
	return cfg
}
